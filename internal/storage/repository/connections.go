package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/connection-engine/internal/lib/age"
	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
	"github.com/magabrotheeeer/connection-engine/internal/models"
)

const requestColumns = `id, from_user_id, to_user_id, status, created_at, updated_at`

func scanRequest(row rowScanner) (*models.ConnectionRequest, error) {
	r := &models.ConnectionRequest{}
	if err := row.Scan(&r.ID, &r.FromUserID, &r.ToUserID, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return r, nil
}

// CreateConnectionRequest вставляет запрос в состоянии pending.
// Повторный pending-запрос той же пары отклоняется уникальным индексом.
func (s *Storage) CreateConnectionRequest(ctx context.Context, fromUID, toUID string) (*models.ConnectionRequest, error) {
	const op = "storage.CreateConnectionRequest"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	query := `INSERT INTO connection_requests (id, from_user_id, to_user_id, status)
			  VALUES ($1, $2, $3, $4)
			  RETURNING ` + requestColumns
	r, err := scanRequest(s.conn(ctx).QueryRowContext(ctx, query,
		uuid.NewString(), fromUID, toUID, string(models.StatusPending)))
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrDuplicateRequest)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// HasPendingRequest проверяет наличие pending-запроса от fromUID к toUID.
func (s *Storage) HasPendingRequest(ctx context.Context, fromUID, toUID string) (bool, error) {
	const op = "storage.HasPendingRequest"
	if err := ctxDone(ctx, op); err != nil {
		return false, err
	}

	var exists bool
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT EXISTS (
			SELECT 1 FROM connection_requests
			WHERE from_user_id = $1 AND to_user_id = $2 AND status = $3
		)`, fromUID, toUID, string(models.StatusPending)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// GetConnectionRequest возвращает запрос по идентификатору.
func (s *Storage) GetConnectionRequest(ctx context.Context, id string) (*models.ConnectionRequest, error) {
	const op = "storage.GetConnectionRequest"
	return s.getRequest(ctx, op, `SELECT `+requestColumns+` FROM connection_requests WHERE id = $1`, id)
}

// GetConnectionRequestForUpdate читает запрос и блокирует его строку до конца транзакции.
func (s *Storage) GetConnectionRequestForUpdate(ctx context.Context, id string) (*models.ConnectionRequest, error) {
	const op = "storage.GetConnectionRequestForUpdate"
	return s.getRequest(ctx, op, `SELECT `+requestColumns+` FROM connection_requests WHERE id = $1 FOR UPDATE`, id)
}

func (s *Storage) getRequest(ctx context.Context, op, query, id string) (*models.ConnectionRequest, error) {
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrRequestNotFound)
	}
	r, err := scanRequest(s.conn(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) || isInvalidID(err) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrRequestNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// UpdateConnectionStatus переводит запрос из expected в next.
// Обновление условное: если статус уже изменён другим вызовом, возвращается ErrInvalidState.
func (s *Storage) UpdateConnectionStatus(ctx context.Context, id string, expected, next models.ConnectionStatus) (*models.ConnectionRequest, error) {
	const op = "storage.UpdateConnectionStatus"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	query := `UPDATE connection_requests
			  SET status = $3, updated_at = NOW()
			  WHERE id = $1 AND status = $2
			  RETURNING ` + requestColumns
	r, err := scanRequest(s.conn(ctx).QueryRowContext(ctx, query, id, string(expected), string(next)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrInvalidState)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// ListIncoming возвращает pending-запросы, адресованные userUID, от новых к старым.
func (s *Storage) ListIncoming(ctx context.Context, userUID string) ([]*models.IncomingRequest, error) {
	const op = "storage.ListIncoming"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT cr.id, cr.from_user_id, cr.to_user_id, cr.status, cr.created_at, cr.updated_at,
			      u.name, u.profile_pic, u.dob, u.city
			  FROM connection_requests cr
			  LEFT JOIN users u ON u.uid = cr.from_user_id
			  WHERE cr.to_user_id = $1 AND cr.status = $2
			  ORDER BY cr.created_at DESC, cr.id`
	rows, err := s.conn(ctx).QueryContext(ctx, query, userUID, string(models.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.IncomingRequest, 0)
	for rows.Next() {
		var in models.IncomingRequest
		var p profileColumns
		if err := rows.Scan(&in.ID, &in.FromUserID, &in.ToUserID, &in.Status, &in.CreatedAt, &in.UpdatedAt,
			&p.name, &p.pic, &p.dob, &p.city); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		in.FromUser = p.summary(in.FromUserID, s.now())
		result = append(result, &in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListConnected возвращает принятые связи пользователя с карточкой собеседника.
func (s *Storage) ListConnected(ctx context.Context, userUID string) ([]*models.Connection, error) {
	const op = "storage.ListConnected"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT c.id, c.updated_at, c.other_uid, u.name, u.profile_pic, u.dob, u.city
			  FROM (
			      SELECT id, updated_at,
			          CASE WHEN from_user_id = $1 THEN to_user_id ELSE from_user_id END AS other_uid
			      FROM connection_requests
			      WHERE status = $2 AND (from_user_id = $1 OR to_user_id = $1)
			  ) c
			  LEFT JOIN users u ON u.uid = c.other_uid
			  ORDER BY c.updated_at DESC, c.id`
	rows, err := s.conn(ctx).QueryContext(ctx, query, userUID, string(models.StatusAccepted))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.Connection, 0)
	for rows.Next() {
		var c models.Connection
		var otherUID string
		var p profileColumns
		if err := rows.Scan(&c.ID, &c.ConnectedAt, &otherUID, &p.name, &p.pic, &p.dob, &p.city); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		c.ConnectedUser = p.summary(otherUID, s.now())
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountDashboard считает pending-запросы пользователя (входящие и исходящие) и принятые связи.
func (s *Storage) CountDashboard(ctx context.Context, userUID string) (*models.Dashboard, error) {
	const op = "storage.CountDashboard"
	if err := ctxDone(ctx, op); err != nil {
		return nil, err
	}

	var d models.Dashboard
	err := s.conn(ctx).QueryRowContext(ctx, `SELECT
			    COUNT(*) FILTER (WHERE status = $2),
			    COUNT(*) FILTER (WHERE status = $3)
			  FROM connection_requests
			  WHERE from_user_id = $1 OR to_user_id = $1`,
		userUID, string(models.StatusPending), string(models.StatusAccepted)).Scan(&d.PendingRequests, &d.TotalConnections)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &d, nil
}

// profileColumns поля карточки из LEFT JOIN, все могут отсутствовать.
type profileColumns struct {
	name sql.NullString
	pic  sql.NullString
	dob  sql.NullTime
	city sql.NullString
}

func (p profileColumns) summary(uid string, now time.Time) models.ProfileSummary {
	if !p.name.Valid {
		return models.ProfileSummary{UID: uid, Name: models.UnknownUserName}
	}
	summary := models.ProfileSummary{
		UID:        uid,
		Name:       p.name.String,
		ProfilePic: p.pic.String,
		City:       p.city.String,
	}
	if p.dob.Valid {
		summary.Age = age.Years(p.dob.Time, now)
	}
	return summary
}
