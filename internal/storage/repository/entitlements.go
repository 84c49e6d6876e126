package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
	"github.com/magabrotheeeer/connection-engine/internal/models"
)

const entitlementColumns = `id, order_id, payment_id, signature, status, name, price,
			      duration_months, max_connections, created_at`

func scanEntitlement(row rowScanner) (*models.Entitlement, error) {
	e := &models.Entitlement{}
	if err := row.Scan(&e.ID, &e.OrderID, &e.PaymentID, &e.Signature, &e.Status, &e.Name, &e.Price,
		&e.DurationMonths, &e.MaxConnections, &e.CreatedAt); err != nil {
		return nil, err
	}
	return e, nil
}

// CreateEntitlement сохраняет подписку. Если ID пуст, он генерируется.
// Повторное использование payment_id возвращает ErrPaymentAlreadyProcessed.
func (s *Storage) CreateEntitlement(ctx context.Context, ent *models.Entitlement) (*models.Entitlement, error) {
	const op = "storage.CreateEntitlement"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	id := ent.ID
	if id == "" {
		id = uuid.NewString()
	}
	query := `INSERT INTO entitlements (id, order_id, payment_id, signature, status, name, price,
			      duration_months, max_connections)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  RETURNING ` + entitlementColumns
	created, err := scanEntitlement(s.conn(ctx).QueryRowContext(ctx, query,
		id, ent.OrderID, ent.PaymentID, ent.Signature, ent.Status, ent.Name, ent.Price,
		ent.DurationMonths, ent.MaxConnections))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrPaymentAlreadyProcessed)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

// GetEntitlement возвращает подписку по идентификатору.
func (s *Storage) GetEntitlement(ctx context.Context, id string) (*models.Entitlement, error) {
	const op = "storage.GetEntitlement"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrEntitlementNotFound)
	}

	e, err := scanEntitlement(s.conn(ctx).QueryRowContext(ctx,
		`SELECT `+entitlementColumns+` FROM entitlements WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrEntitlementNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return e, nil
}

// IsPaymentVerified проверяет, был ли платёж уже превращён в подписку.
func (s *Storage) IsPaymentVerified(ctx context.Context, paymentID string) (bool, error) {
	const op = "storage.IsPaymentVerified"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}

	var exists bool
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT EXISTS (
			SELECT 1 FROM entitlements WHERE payment_id = $1 AND status = $2
		)`, paymentID, models.EntitlementStatusVerified).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}
