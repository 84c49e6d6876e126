// Package repository реализует хранилище движка связей на основе PostgreSQL:
// пользователей, запросы на связь и активированные подписки. Транзакция
// передаётся через context, поэтому методы одинаково работают внутри WithTx и вне его.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	// Регистрация драйвера pgx для использования с database/sql.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
)

// Storage инкапсулирует соединение с базой данных PostgreSQL.
type Storage struct {
	DB  *sql.DB
	now func() time.Time
}

type txKey struct{}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New создаёт подключение к PostgreSQL и проверяет его.
func New(storageConnectionString string) (*Storage, error) {
	const op = "storage.New"

	db, err := sql.Open("pgx", storageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewWithDB(db), nil
}

// NewWithDB оборачивает уже открытое соединение.
func NewWithDB(db *sql.DB) *Storage {
	return &Storage{DB: db, now: time.Now}
}

// CheckDatabaseReady проверяет, что соединение живо и схема применена.
func (s *Storage) CheckDatabaseReady(ctx context.Context) error {
	const op = "storage.CheckDatabaseReady"
	var exists bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
        SELECT FROM information_schema.tables
        WHERE table_name = 'connection_requests'
    )`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return fmt.Errorf("%s: required table connection_requests missing", op)
	}
	return nil
}

// WaitReady повторяет CheckDatabaseReady до attempts раз с паузой delay.
func (s *Storage) WaitReady(ctx context.Context, attempts int, delay time.Duration) error {
	var err error
	for range attempts {
		if err = s.CheckDatabaseReady(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("database not ready after retries: %w", err)
}

// WithTx выполняет fn в одной транзакции. Транзакция кладётся в ctx,
// вложенный вызов переиспользует внешнюю. При конфликте сериализации,
// взаимной блокировке или недоступной блокировке fn выполняется ещё раз.
// Бизнес-ошибки возвращаются как есть, прочие сбои оборачиваются в
// apperr.ErrTransactionFailure.
func (s *Storage) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	const op = "storage.WithTx"
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	var err error
	for attempt := 0; attempt < 2; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isTransient(err) || ctx.Err() != nil {
			break
		}
	}

	switch {
	case err == nil:
		return nil
	case apperr.IsBusiness(err), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrTransactionFailure, err)
	}
}

func (s *Storage) runTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Storage) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return s.DB
}

func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgerrcode.IsTransactionRollback(pgErr.Code) || pgErr.Code == pgerrcode.LockNotAvailable
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// isInvalidID сообщает, что идентификатор не является корректным uuid.
func isInvalidID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation
}

func ctxDone(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}
