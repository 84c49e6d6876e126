package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
	"github.com/magabrotheeeer/connection-engine/internal/models"
)

const userColumns = `uid, email, name, profile_pic, dob, city,
			      active_entitlement_id, plan_expiry, connections_made`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	var dob, planExpiry sql.NullTime
	var entitlementID sql.NullString
	if err := row.Scan(&u.UID, &u.Email, &u.Name, &u.ProfilePic, &dob, &u.City,
		&entitlementID, &planExpiry, &u.ConnectionsMade); err != nil {
		return nil, err
	}
	if dob.Valid {
		u.DateOfBirth = &dob.Time
	}
	if entitlementID.Valid {
		u.ActiveEntitlementID = &entitlementID.String
	}
	if planExpiry.Valid {
		u.PlanExpiry = &planExpiry.Time
	}
	return u, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	return s.getUser(ctx, op, `SELECT `+userColumns+` FROM users WHERE uid = $1`, userUID)
}

// GetUserForUpdate читает пользователя и блокирует строку до конца транзакции.
// Проверка квоты и увеличение счётчика выполняются под этой блокировкой.
func (s *Storage) GetUserForUpdate(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUserForUpdate"
	return s.getUser(ctx, op, `SELECT `+userColumns+` FROM users WHERE uid = $1 FOR UPDATE`, userUID)
}

func (s *Storage) getUser(ctx context.Context, op, query, userUID string) (*models.User, error) {
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	u, err := scanUser(s.conn(ctx).QueryRowContext(ctx, query, userUID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// IncrementConnectionsMade увеличивает счётчик израсходованных связей на единицу.
func (s *Storage) IncrementConnectionsMade(ctx context.Context, userUID string) error {
	const op = "storage.IncrementConnectionsMade"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE users SET connections_made = connections_made + 1 WHERE uid = $1`, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOneRow(res, op, apperr.ErrUserNotFound)
}

// SetConnectionsMade записывает значение счётчика связей.
func (s *Storage) SetConnectionsMade(ctx context.Context, userUID string, value int) error {
	const op = "storage.SetConnectionsMade"
	if err := ctxDone(ctx, op); err != nil {
		return err
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE users SET connections_made = $2 WHERE uid = $1`, userUID, value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return expectOneRow(res, op, apperr.ErrUserNotFound)
}

// UpdateActivePlan привязывает пользователю действующий тариф и дату его окончания.
// Счётчик связей не сбрасывается, но ограничивается лимитом нового тарифа.
func (s *Storage) UpdateActivePlan(ctx context.Context, userUID, entitlementID string, expiry time.Time) (*models.User, error) {
	const op = "storage.UpdateActivePlan"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	query := `UPDATE users SET active_entitlement_id = $2, plan_expiry = $3,
			  connections_made = LEAST(connections_made,
				  (SELECT max_connections FROM entitlements WHERE id = $2))
			  WHERE uid = $1
			  RETURNING ` + userColumns
	u, err := scanUser(s.conn(ctx).QueryRowContext(ctx, query, userUID, entitlementID, expiry))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// FindPlansExpiringBetween находит пользователей, чей тариф истекает в интервале [from, to).
func (s *Storage) FindPlansExpiringBetween(ctx context.Context, from, to time.Time) ([]*models.PlanExpiringInfo, error) {
	const op = "storage.FindPlansExpiringBetween"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT u.uid, u.email, u.name, e.name, u.plan_expiry
			  FROM users u
			  JOIN entitlements e ON e.id = u.active_entitlement_id
			  WHERE u.plan_expiry >= $1 AND u.plan_expiry < $2
			  ORDER BY u.plan_expiry`
	rows, err := s.conn(ctx).QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.PlanExpiringInfo
	for rows.Next() {
		var info models.PlanExpiringInfo
		if err := rows.Scan(&info.UserID, &info.Email, &info.Name, &info.PlanName, &info.PlanExpiry); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func expectOneRow(res sql.Result, op string, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, notFound)
	}
	return nil
}
