// Package scheduler периодически ищет тарифы, истекающие завтра,
// и публикует напоминания в очередь уведомлений.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/connection-engine/internal/lib/sl"
	"github.com/magabrotheeeer/connection-engine/internal/models"
)

// DefaultInterval период между проверками.
const DefaultInterval = 12 * time.Hour

// Repository ищет тарифы с окончанием в заданном интервале.
type Repository interface {
	FindPlansExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.PlanExpiringInfo, error)
}

// Publisher публикует сообщение с ключом маршрутизации.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Service планировщик напоминаний.
type Service struct {
	repo      Repository
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
}

// New создаёт планировщик.
func New(repo Repository, publisher Publisher, log *slog.Logger) *Service {
	return &Service{repo: repo, publisher: publisher, log: log, now: time.Now}
}

// Run выполняет проверку сразу и затем раз в interval, пока не отменён ctx.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s.runOnceLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.runOnceLogged(ctx)
		}
	}
}

func (s *Service) runOnceLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error("failed to find expiring plans", sl.Err(err))
	}
}

// RunOnce публикует напоминания для тарифов, истекающих в течение следующих
// календарных суток (UTC), и возвращает число опубликованных сообщений.
func (s *Service) RunOnce(ctx context.Context) (int, error) {
	const op = "services.scheduler.RunOnce"
	from, to := tomorrow(s.now())

	s.log.Info("looking for plans expiring tomorrow", slog.Time("from", from), slog.Time("to", to))
	infos, err := s.repo.FindPlansExpiringBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(infos) == 0 {
		s.log.Info("no expiring plans found")
		return 0, nil
	}

	published := 0
	for _, info := range infos {
		if err := s.publisher.Publish(models.EventPlanExpiring, info); err != nil {
			s.log.Error("failed to publish message", slog.String("user_id", info.UserID), sl.Err(err))
			continue
		}
		published++
	}
	s.log.Info("published plan reminders", slog.Int("count", published), slog.Int("found", len(infos)))
	return published, nil
}

func tomorrow(now time.Time) (time.Time, time.Time) {
	y, m, d := now.UTC().Date()
	from := time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}
