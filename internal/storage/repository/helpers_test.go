package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/connection-engine/internal/migrations"
	"github.com/magabrotheeeer/connection-engine/internal/models"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя без тарифа
func (f *TestDataFactory) CreateUser(t *testing.T, uid, name string) {
	t.Helper()
	_, err := f.storage.DB.Exec(`INSERT INTO users (uid, email, name, dob, city)
		VALUES ($1, $2, $3, $4, $5)`,
		uid, uid+"@example.com", name, time.Date(1996, 3, 10, 0, 0, 0, 0, time.UTC), "Mumbai")
	require.NoError(t, err)
}

// CreateUserWithPlan создает пользователя с действующим тарифом на maxConnections связей
func (f *TestDataFactory) CreateUserWithPlan(t *testing.T, uid, name string, maxConnections, used int, expiry time.Time) *models.Entitlement {
	t.Helper()
	f.CreateUser(t, uid, name)
	ent, err := f.storage.CreateEntitlement(context.Background(), &models.Entitlement{
		OrderID:        "order_" + uid,
		PaymentID:      "pay_" + uid,
		Signature:      "sig",
		Status:         models.EntitlementStatusVerified,
		Name:           "Gold",
		Price:          999,
		DurationMonths: 3,
		MaxConnections: maxConnections,
	})
	require.NoError(t, err)
	_, err = f.storage.DB.Exec(`UPDATE users
		SET active_entitlement_id = $2, plan_expiry = $3, connections_made = $4
		WHERE uid = $1`, uid, ent.ID, expiry, used)
	require.NoError(t, err)
	return ent
}

// CreateRequest создает запрос на связь в заданном статусе
func (f *TestDataFactory) CreateRequest(t *testing.T, from, to string, status models.ConnectionStatus, createdAt time.Time) string {
	t.Helper()
	id := uuid.NewString()
	_, err := f.storage.DB.Exec(`INSERT INTO connection_requests
		(id, from_user_id, to_user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)`, id, from, to, string(status), createdAt)
	require.NoError(t, err)
	return id
}

// TestVerification содержит общие функции для проверки результатов тестов
type TestVerification struct {
	storage *Storage
}

// NewTestVerification создает новый объект для проверки результатов
func NewTestVerification(storage *Storage) *TestVerification {
	return &TestVerification{storage: storage}
}

// ConnectionsMade возвращает счётчик связей пользователя
func (v *TestVerification) ConnectionsMade(t *testing.T, uid string) int {
	t.Helper()
	var n int
	require.NoError(t, v.storage.DB.QueryRow(`SELECT connections_made FROM users WHERE uid = $1`, uid).Scan(&n))
	return n
}

// CountRows возвращает число строк в таблице по условию
func (v *TestVerification) CountRows(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, v.storage.DB.QueryRow(query, args...).Scan(&n))
	return n
}

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start container")

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(dsn)
	require.NoError(t, err, "failed to create storage")

	migrationsDB, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	projectRoot, err := filepath.Abs("../../..")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(migrationsDB, filepath.Join(projectRoot, "migrations")))
	_ = migrationsDB.Close()

	cleanup := func() {
		_ = storage.DB.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return storage, cleanup
}
