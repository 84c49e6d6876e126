// Package connection управляет жизненным циклом запросов на связь:
// создание с проверкой квоты, решение получателя, удаление связи и списки.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/magabrotheeeer/connection-engine/internal/config"
	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
	"github.com/magabrotheeeer/connection-engine/internal/lib/sl"
	"github.com/magabrotheeeer/connection-engine/internal/metrics"
	"github.com/magabrotheeeer/connection-engine/internal/models"
	"github.com/magabrotheeeer/connection-engine/internal/services/quota"
)

// Repository определяет операции хранилища, нужные сервису связей.
type Repository interface {
	// WithTx выполняет fn в одной транзакции, передавая её через ctx.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetUserForUpdate(ctx context.Context, userUID string) (*models.User, error)
	GetEntitlement(ctx context.Context, id string) (*models.Entitlement, error)
	HasPendingRequest(ctx context.Context, fromUID, toUID string) (bool, error)
	CreateConnectionRequest(ctx context.Context, fromUID, toUID string) (*models.ConnectionRequest, error)
	IncrementConnectionsMade(ctx context.Context, userUID string) error
	SetConnectionsMade(ctx context.Context, userUID string, value int) error
	GetConnectionRequestForUpdate(ctx context.Context, id string) (*models.ConnectionRequest, error)
	UpdateConnectionStatus(ctx context.Context, id string, expected, next models.ConnectionStatus) (*models.ConnectionRequest, error)
	ListIncoming(ctx context.Context, userUID string) ([]*models.IncomingRequest, error)
	ListConnected(ctx context.Context, userUID string) ([]*models.Connection, error)
	CountDashboard(ctx context.Context, userUID string) (*models.Dashboard, error)
}

// Notifier публикует события для внешней доставки уведомлений.
type Notifier interface {
	Publish(routingKey string, message any) error
}

// Service реализует операции над запросами на связь.
type Service struct {
	repo         Repository
	notifier     Notifier
	log          *slog.Logger
	metrics      *metrics.Metrics
	creditPolicy string
	now          func() time.Time
}

// New создаёт сервис связей. notifier может быть nil, тогда события не публикуются.
func New(repo Repository, notifier Notifier, log *slog.Logger, m *metrics.Metrics, creditPolicy string) *Service {
	if creditPolicy == "" {
		creditPolicy = config.AcceptCreditBoth
	}
	return &Service{
		repo:         repo,
		notifier:     notifier,
		log:          log,
		metrics:      m,
		creditPolicy: creditPolicy,
		now:          time.Now,
	}
}

// RequestConnection создаёт pending-запрос от fromUID к toUID и списывает одну связь из квоты отправителя.
func (s *Service) RequestConnection(ctx context.Context, fromUID, toUID string) (*models.ConnectionRequest, error) {
	const op = "services.connection.RequestConnection"
	if fromUID == "" || toUID == "" || fromUID == toUID {
		s.metrics.ConnectionRequests.WithLabelValues(apperr.KindInvalidRequest).Inc()
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrInvalidRequest)
	}

	var created *models.ConnectionRequest
	var requester, target *models.User
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		var err error
		requester, err = s.repo.GetUserForUpdate(ctx, fromUID)
		if err != nil {
			return err
		}
		target, err = s.repo.GetUser(ctx, toUID)
		if err != nil {
			return err
		}

		duplicate, err := s.repo.HasPendingRequest(ctx, fromUID, toUID)
		if err != nil {
			return err
		}
		if duplicate {
			return apperr.ErrDuplicateRequest
		}

		ent, err := s.activeEntitlement(ctx, requester)
		if err != nil {
			return err
		}
		if err := quota.CanRequestConnection(requester, ent, s.now()).Err(); err != nil {
			return err
		}

		created, err = s.repo.CreateConnectionRequest(ctx, fromUID, toUID)
		if err != nil {
			return err
		}
		return s.repo.IncrementConnectionsMade(ctx, fromUID)
	})
	if err != nil {
		s.metrics.ConnectionRequests.WithLabelValues(apperr.Kind(err)).Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.ConnectionRequests.WithLabelValues("created").Inc()
	s.log.Info("connection request created",
		slog.String("request_id", created.ID),
		slog.String("from", fromUID),
		slog.String("to", toUID))

	s.notify(models.ConnectionEvent{
		Type:           models.EventConnectionRequested,
		RequestID:      created.ID,
		ActorID:        requester.UID,
		ActorName:      requester.Name,
		RecipientID:    target.UID,
		RecipientName:  target.Name,
		RecipientEmail: target.Email,
		OccurredAt:     s.now(),
	})
	return created, nil
}

// Decide применяет решение получателя к pending-запросу.
func (s *Service) Decide(ctx context.Context, requestID string, decision models.Decision) (*models.ConnectionRequest, error) {
	return s.decide(ctx, "", requestID, decision)
}

// DecideAs работает как Decide, но требует, чтобы actorUID был получателем запроса.
func (s *Service) DecideAs(ctx context.Context, actorUID, requestID string, decision models.Decision) (*models.ConnectionRequest, error) {
	if actorUID == "" {
		return nil, fmt.Errorf("services.connection.DecideAs: %w", apperr.ErrForbidden)
	}
	return s.decide(ctx, actorUID, requestID, decision)
}

func (s *Service) decide(ctx context.Context, actorUID, requestID string, decision models.Decision) (*models.ConnectionRequest, error) {
	const op = "services.connection.Decide"
	if requestID == "" || !decision.Valid() {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrInvalidRequest)
	}

	var updated *models.ConnectionRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		req, err := s.repo.GetConnectionRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if actorUID != "" && actorUID != req.ToUserID {
			return apperr.ErrForbidden
		}
		next := decision.Target()
		if !req.Status.CanTransitionTo(next) {
			return apperr.ErrInvalidState
		}
		updated, err = s.repo.UpdateConnectionStatus(ctx, req.ID, req.Status, next)
		if err != nil {
			return err
		}
		if decision == models.DecisionAccept {
			return s.creditAccept(ctx, updated)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.ConnectionDecisions.WithLabelValues(string(updated.Status)).Inc()
	s.log.Info("connection request decided",
		slog.String("request_id", updated.ID),
		slog.String("status", string(updated.Status)))

	if decision == models.DecisionAccept {
		s.notifyAccepted(ctx, updated)
	}
	return updated, nil
}

// creditAccept начисляет связь участникам по политике начисления.
// Строки пользователей блокируются в порядке uid, чтобы исключить взаимные блокировки.
func (s *Service) creditAccept(ctx context.Context, req *models.ConnectionRequest) error {
	uids := []string{req.ToUserID}
	if s.creditPolicy == config.AcceptCreditBoth {
		uids = append(uids, req.FromUserID)
	}
	sort.Strings(uids)

	for _, uid := range uids {
		u, err := s.repo.GetUserForUpdate(ctx, uid)
		if errors.Is(err, apperr.ErrNotFound) {
			s.log.Warn("skip crediting missing user", slog.String("uid", uid))
			continue
		}
		if err != nil {
			return err
		}
		ent, err := s.activeEntitlement(ctx, u)
		if err != nil {
			return err
		}
		next := quota.CreditAfterAccept(u, ent)
		if next == u.ConnectionsMade {
			continue
		}
		if err := s.repo.SetConnectionsMade(ctx, uid, next); err != nil {
			return err
		}
	}
	return nil
}

// Remove переводит принятую связь в removed. Повторное удаление ничего не меняет.
func (s *Service) Remove(ctx context.Context, connectionID string) (*models.ConnectionRequest, error) {
	return s.remove(ctx, "", connectionID)
}

// RemoveAs работает как Remove, но требует, чтобы actorUID был участником связи.
func (s *Service) RemoveAs(ctx context.Context, actorUID, connectionID string) (*models.ConnectionRequest, error) {
	if actorUID == "" {
		return nil, fmt.Errorf("services.connection.RemoveAs: %w", apperr.ErrForbidden)
	}
	return s.remove(ctx, actorUID, connectionID)
}

func (s *Service) remove(ctx context.Context, actorUID, connectionID string) (*models.ConnectionRequest, error) {
	const op = "services.connection.Remove"
	if connectionID == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrInvalidRequest)
	}

	var result *models.ConnectionRequest
	changed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		req, err := s.repo.GetConnectionRequestForUpdate(ctx, connectionID)
		if err != nil {
			return err
		}
		if actorUID != "" && actorUID != req.FromUserID && actorUID != req.ToUserID {
			return apperr.ErrForbidden
		}
		if req.Status == models.StatusRemoved {
			result = req
			return nil
		}
		if !req.Status.CanTransitionTo(models.StatusRemoved) {
			return apperr.ErrInvalidState
		}
		result, err = s.repo.UpdateConnectionStatus(ctx, req.ID, req.Status, models.StatusRemoved)
		changed = err == nil
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if changed {
		s.metrics.ConnectionDecisions.WithLabelValues(string(models.StatusRemoved)).Inc()
		s.log.Info("connection removed", slog.String("connection_id", result.ID))
	}
	return result, nil
}

// ListIncoming возвращает pending-запросы к userUID, от новых к старым.
func (s *Service) ListIncoming(ctx context.Context, userUID string) ([]*models.IncomingRequest, error) {
	const op = "services.connection.ListIncoming"
	if userUID == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrInvalidRequest)
	}
	list, err := s.repo.ListIncoming(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// ListConnected возвращает принятые связи userUID с карточками собеседников.
func (s *Service) ListConnected(ctx context.Context, userUID string) ([]*models.Connection, error) {
	const op = "services.connection.ListConnected"
	if userUID == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrInvalidRequest)
	}
	list, err := s.repo.ListConnected(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return list, nil
}

// Dashboard возвращает число ожидающих запросов и принятых связей пользователя.
func (s *Service) Dashboard(ctx context.Context, userUID string) (*models.Dashboard, error) {
	const op = "services.connection.Dashboard"
	if userUID == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrInvalidRequest)
	}
	d, err := s.repo.CountDashboard(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return d, nil
}

// activeEntitlement читает тариф, на который ссылается пользователь.
// Отсутствие ссылки или строки тарифа не ошибка: квота тогда запрещает запрос.
func (s *Service) activeEntitlement(ctx context.Context, u *models.User) (*models.Entitlement, error) {
	if u.ActiveEntitlementID == nil || *u.ActiveEntitlementID == "" {
		return nil, nil
	}
	ent, err := s.repo.GetEntitlement(ctx, *u.ActiveEntitlementID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	return ent, err
}

func (s *Service) notifyAccepted(ctx context.Context, req *models.ConnectionRequest) {
	event := models.ConnectionEvent{
		Type:        models.EventConnectionAccepted,
		RequestID:   req.ID,
		ActorID:     req.ToUserID,
		RecipientID: req.FromUserID,
		OccurredAt:  s.now(),
	}
	if actor, err := s.repo.GetUser(ctx, req.ToUserID); err == nil {
		event.ActorName = actor.Name
	}
	if recipient, err := s.repo.GetUser(ctx, req.FromUserID); err == nil {
		event.RecipientName = recipient.Name
		event.RecipientEmail = recipient.Email
	} else {
		s.log.Warn("failed to load notification recipient", slog.String("uid", req.FromUserID), sl.Err(err))
	}
	s.notify(event)
}

// notify публикует событие после фиксации транзакции. Ошибка публикации
// только логируется: изменения уже сохранены.
func (s *Service) notify(event models.ConnectionEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(event.Type, event); err != nil {
		s.metrics.PublishFailures.WithLabelValues(event.Type).Inc()
		s.log.Warn("failed to publish notification",
			slog.String("event", event.Type),
			slog.String("request_id", event.RequestID),
			sl.Err(err))
	}
}
