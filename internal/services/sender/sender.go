// Package sender превращает события из очередей уведомлений в письма.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/connection-engine/internal/lib/sl"
	"github.com/magabrotheeeer/connection-engine/internal/lib/smtp"
	"github.com/magabrotheeeer/connection-engine/internal/models"
)

// Service отправляет письма через SMTP-транспорт.
type Service struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// New создаёт сервис отправки писем.
func New(transport smtp.TransportInterface, log *slog.Logger) *Service {
	return &Service{transport: transport, log: log}
}

// HandleConnectionEvent обрабатывает события connection.requested и connection.accepted.
// Нечитаемые и неадресуемые сообщения отбрасываются, ошибка SMTP возвращается,
// чтобы сообщение вернулось в очередь.
func (s *Service) HandleConnectionEvent(body []byte) error {
	var ev models.ConnectionEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		s.log.Error("dropping malformed connection event", sl.Err(err))
		return nil
	}
	log := s.log.With(slog.String("type", ev.Type), slog.String("request_id", ev.RequestID))
	if ev.RecipientEmail == "" {
		log.Warn("dropping connection event without recipient email")
		return nil
	}

	var subject, text string
	switch ev.Type {
	case models.EventConnectionRequested:
		subject = "New connection request"
		text = fmt.Sprintf("Hi %s,\n\n%s would like to connect with you.\n\nOpen the app to accept or reject the request.",
			displayName(ev.RecipientName), displayName(ev.ActorName))
	case models.EventConnectionAccepted:
		subject = "Your connection request was accepted"
		text = fmt.Sprintf("Hi %s,\n\n%s accepted your connection request.",
			displayName(ev.RecipientName), displayName(ev.ActorName))
	default:
		log.Warn("dropping connection event of unknown type")
		return nil
	}

	if err := smtp.Send(s.transport, []string{ev.RecipientEmail}, subject, text); err != nil {
		log.Error("failed to send email", sl.Err(err))
		return err
	}
	log.Info("email sent successfully")
	return nil
}

// HandlePlanExpiring отправляет напоминание об окончании тарифа.
func (s *Service) HandlePlanExpiring(body []byte) error {
	var info models.PlanExpiringInfo
	if err := json.Unmarshal(body, &info); err != nil {
		s.log.Error("dropping malformed plan reminder", sl.Err(err))
		return nil
	}
	log := s.log.With(slog.String("user_id", info.UserID))
	if info.Email == "" {
		log.Warn("dropping plan reminder without email")
		return nil
	}

	subject := "Your plan expires tomorrow"
	text := fmt.Sprintf("Hi %s,\n\nYour %s plan expires on %s.\n\nRenew it to keep sending connection requests.",
		displayName(info.Name), info.PlanName, info.PlanExpiry.UTC().Format("02 Jan 2006 15:04 MST"))

	if err := smtp.Send(s.transport, []string{info.Email}, subject, text); err != nil {
		log.Error("failed to send email", sl.Err(err))
		return err
	}
	log.Info("email sent successfully")
	return nil
}

func displayName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
