// Package entitlement отвечает на вопросы о правах пользователя:
// действует ли тариф, сколько связей осталось, и отдаёт саму подписку.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
	"github.com/magabrotheeeer/connection-engine/internal/lib/sl"
	"github.com/magabrotheeeer/connection-engine/internal/models"
	"github.com/magabrotheeeer/connection-engine/internal/services/quota"
)

// CacheTTL время жизни снимка подписки в кэше.
const CacheTTL = time.Hour

// Repository определяет операции чтения, нужные сервису.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetEntitlement(ctx context.Context, id string) (*models.Entitlement, error)
}

// Cache хранит неизменяемые снимки подписок.
type Cache interface {
	GetEntitlement(ctx context.Context, id string) (*models.Entitlement, bool, error)
	SetEntitlement(ctx context.Context, ent *models.Entitlement, ttl time.Duration) error
}

// Service реализует запросы прав.
type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
	now   func() time.Time
}

// New создаёт сервис. cache может быть nil, тогда чтение идёт напрямую из хранилища.
func New(repo Repository, cache Cache, log *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, log: log, now: time.Now}
}

// HasValidEntitlement читает пользователя из хранилища при каждом вызове
// и проверяет, что его тариф ещё действует.
func (s *Service) HasValidEntitlement(ctx context.Context, userUID string) (bool, error) {
	const op = "services.entitlement.HasValidEntitlement"
	u, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return quota.HasValidEntitlement(u, s.now()), nil
}

// Eligibility оценивает, может ли пользователь сейчас отправить запрос на связь.
// Ничего не меняет.
func (s *Service) Eligibility(ctx context.Context, userUID string) (quota.Decision, error) {
	const op = "services.entitlement.Eligibility"
	if userUID == "" {
		return quota.Decision{}, fmt.Errorf("%s: %w", op, apperr.ErrInvalidRequest)
	}
	u, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return quota.Decision{}, fmt.Errorf("%s: %w", op, err)
	}

	var ent *models.Entitlement
	if u.ActiveEntitlementID != nil {
		ent, err = s.Get(ctx, *u.ActiveEntitlementID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return quota.Decision{}, fmt.Errorf("%s: %w", op, err)
		}
	}
	return quota.CanRequestConnection(u, ent, s.now()), nil
}

// Get возвращает подписку по идентификатору, сначала пробуя кэш.
// Ошибки кэша не мешают чтению из хранилища.
func (s *Service) Get(ctx context.Context, id string) (*models.Entitlement, error) {
	const op = "services.entitlement.Get"
	if id == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrInvalidRequest)
	}

	if s.cache != nil {
		ent, found, err := s.cache.GetEntitlement(ctx, id)
		if err != nil {
			s.log.Warn("failed to read entitlement from cache", slog.String("id", id), sl.Err(err))
		}
		if found {
			return ent, nil
		}
	}

	ent, err := s.repo.GetEntitlement(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.Warm(ctx, ent)
	return ent, nil
}

// GetOwned возвращает подписку, только если пользователь ссылается на неё как на свой тариф.
func (s *Service) GetOwned(ctx context.Context, userUID, id string) (*models.Entitlement, error) {
	const op = "services.entitlement.GetOwned"
	if userUID == "" || id == "" {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrInvalidRequest)
	}

	u, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if u.ActiveEntitlementID == nil || *u.ActiveEntitlementID != id {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrForbidden)
	}
	return s.Get(ctx, id)
}

// Warm кладёт подписку в кэш.
func (s *Service) Warm(ctx context.Context, ent *models.Entitlement) {
	if s.cache == nil || ent == nil {
		return
	}
	if err := s.cache.SetEntitlement(ctx, ent, CacheTTL); err != nil {
		s.log.Warn("failed to cache entitlement", slog.String("id", ent.ID), sl.Err(err))
	}
}
