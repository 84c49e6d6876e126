// Package payment проверяет подтверждения оплаты и атомарно активирует тариф.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/connection-engine/internal/config"
	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
	"github.com/magabrotheeeer/connection-engine/internal/lib/sl"
	"github.com/magabrotheeeer/connection-engine/internal/metrics"
	"github.com/magabrotheeeer/connection-engine/internal/models"
	"github.com/magabrotheeeer/connection-engine/internal/paymentprovider"
)

// Repository определяет операции хранилища, выполняемые при активации.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetUserForUpdate(ctx context.Context, userUID string) (*models.User, error)
	IsPaymentVerified(ctx context.Context, paymentID string) (bool, error)
	CreateEntitlement(ctx context.Context, ent *models.Entitlement) (*models.Entitlement, error)
	UpdateActivePlan(ctx context.Context, userUID, entitlementID string, expiry time.Time) (*models.User, error)
}

// Provider создаёт заказы у платёжного провайдера.
type Provider interface {
	CreateOrder(ctx context.Context, amount int64, currency string) (*paymentprovider.Order, error)
}

// CacheWarmer кладёт свежую подписку в кэш после коммита.
type CacheWarmer interface {
	Warm(ctx context.Context, ent *models.Entitlement)
}

// Service реализует создание заказов и активацию тарифа.
type Service struct {
	repo     Repository
	provider Provider
	cache    CacheWarmer
	log      *slog.Logger
	metrics  *metrics.Metrics
	secret   []byte
	policy   config.Engine
	now      func() time.Time
}

// New создаёт сервис. secret: ключ магазина, которым провайдер подписывает платежи.
func New(
	repo Repository,
	provider Provider,
	cache CacheWarmer,
	log *slog.Logger,
	m *metrics.Metrics,
	secret string,
	policy config.Engine,
) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		cache:    cache,
		log:      log,
		metrics:  m,
		secret:   []byte(secret),
		policy:   policy,
		now:      time.Now,
	}
}

// Sign вычисляет hex HMAC-SHA256 от "orderID|paymentID".
func Sign(secret []byte, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature сравнивает подпись с hex-дайджестом провайдера побайтно и за
// постоянное время. Пустой секрет и любое отличие в записи, включая регистр, дают false.
func (s *Service) VerifySignature(orderID, paymentID, signature string) bool {
	if len(s.secret) == 0 || signature == "" {
		return false
	}
	return hmac.Equal([]byte(signature), []byte(Sign(s.secret, orderID, paymentID)))
}

// CreateOrder создаёт заказ у провайдера.
func (s *Service) CreateOrder(ctx context.Context, amount int64, currency string) (*paymentprovider.Order, error) {
	const op = "services.payment.CreateOrder"
	order, err := s.provider.CreateOrder(ctx, amount, currency)
	if err != nil {
		s.log.Error("failed to create order", slog.Int64("amount", amount), sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("order created", slog.String("order_id", order.ID))
	return order, nil
}

// Activate проверяет подпись и одной транзакцией создаёт подписку
// и назначает её пользователю. При любой ошибке состояние не меняется.
func (s *Service) Activate(ctx context.Context, req models.ActivationRequest) (*models.Activation, error) {
	const op = "services.payment.Activate"
	log := s.log.With(
		slog.String("op", op),
		slog.String("order_id", req.OrderID),
		slog.String("payment_id", req.PaymentID),
		slog.String("user_id", req.UserID),
	)

	if req.UserID == "" || req.OrderID == "" || req.PaymentID == "" || req.MaxConnections <= 0 {
		return nil, s.fail(fmt.Errorf("%s: %w", op, apperr.ErrInvalidRequest))
	}

	if !s.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		s.metrics.SignatureMismatches.Inc()
		log.Warn("payment verification failed", sl.Security("payment_signature_mismatch"))
		return nil, s.fail(fmt.Errorf("%s: %w", op, apperr.ErrSignatureMismatch))
	}

	var result models.Activation
	err := s.repo.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetUserForUpdate(ctx, req.UserID); err != nil {
			return err
		}
		verified, err := s.repo.IsPaymentVerified(ctx, req.PaymentID)
		if err != nil {
			return err
		}
		if verified {
			return apperr.ErrPaymentAlreadyProcessed
		}

		ent, err := s.repo.CreateEntitlement(ctx, &models.Entitlement{
			OrderID:        req.OrderID,
			PaymentID:      req.PaymentID,
			Signature:      req.Signature,
			Status:         models.EntitlementStatusVerified,
			Name:           req.PlanName,
			Price:          req.Price,
			DurationMonths: s.policy.PlanDurationMonths,
			MaxConnections: req.MaxConnections,
		})
		if err != nil {
			return err
		}

		user, err := s.repo.UpdateActivePlan(ctx, req.UserID, ent.ID, s.now().Add(s.policy.PlanWindow))
		if err != nil {
			return err
		}
		result = models.Activation{Entitlement: ent, User: user}
		return nil
	})
	if err != nil {
		log.Error("activation failed", sl.Err(err), sl.Kind(err))
		return nil, s.fail(fmt.Errorf("%s: %w", op, err))
	}

	s.metrics.Activations.WithLabelValues("ok").Inc()
	if s.cache != nil {
		s.cache.Warm(ctx, result.Entitlement)
	}
	log.Info("plan activated", slog.String("entitlement_id", result.Entitlement.ID))
	return &result, nil
}

func (s *Service) fail(err error) error {
	s.metrics.Activations.WithLabelValues(apperr.Kind(err)).Inc()
	return err
}
