package payment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/connection-engine/internal/config"
	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
	"github.com/magabrotheeeer/connection-engine/internal/metrics"
	"github.com/magabrotheeeer/connection-engine/internal/models"
	"github.com/magabrotheeeer/connection-engine/internal/paymentprovider"
)

const testSecret = "rzp_secret"

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type MockRepository struct{ mock.Mock }

func (m *MockRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}

func (m *MockRepository) GetUserForUpdate(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

func (m *MockRepository) IsPaymentVerified(ctx context.Context, paymentID string) (bool, error) {
	args := m.Called(ctx, paymentID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) CreateEntitlement(ctx context.Context, ent *models.Entitlement) (*models.Entitlement, error) {
	args := m.Called(ctx, ent)
	e, _ := args.Get(0).(*models.Entitlement)
	return e, args.Error(1)
}

func (m *MockRepository) UpdateActivePlan(ctx context.Context, userUID, entitlementID string, expiry time.Time) (*models.User, error) {
	args := m.Called(ctx, userUID, entitlementID, expiry)
	u, _ := args.Get(0).(*models.User)
	return u, args.Error(1)
}

type MockProvider struct{ mock.Mock }

func (m *MockProvider) CreateOrder(ctx context.Context, amount int64, currency string) (*paymentprovider.Order, error) {
	args := m.Called(ctx, amount, currency)
	o, _ := args.Get(0).(*paymentprovider.Order)
	return o, args.Error(1)
}

type MockWarmer struct{ mock.Mock }

func (m *MockWarmer) Warm(ctx context.Context, ent *models.Entitlement) {
	m.Called(ctx, ent)
}

func newService(repo Repository, provider Provider, warmer CacheWarmer, secret string) (*Service, *metrics.Metrics) {
	m := metrics.NewNop()
	s := New(repo, provider, warmer, slog.New(slog.NewTextHandler(io.Discard, nil)), m, secret, config.Engine{
		PlanDurationMonths: 3,
		PlanWindow:         90 * 24 * time.Hour,
		AcceptCreditPolicy: config.AcceptCreditBoth,
	})
	s.now = func() time.Time { return testNow }
	return s, m
}

func validRequest() models.ActivationRequest {
	return models.ActivationRequest{
		OrderID:        "order_1",
		PaymentID:      "pay_1",
		Signature:      Sign([]byte(testSecret), "order_1", "pay_1"),
		UserID:         "u1",
		PlanName:       "Pro",
		Price:          499,
		MaxConnections: 10,
	}
}

func TestVerifySignature(t *testing.T) {
	s, _ := newService(nil, nil, nil, testSecret)
	good := Sign([]byte(testSecret), "order_1", "pay_1")

	tests := []struct {
		name      string
		orderID   string
		paymentID string
		signature string
		want      bool
	}{
		{name: "valid", orderID: "order_1", paymentID: "pay_1", signature: good, want: true},
		{name: "other payment", orderID: "order_1", paymentID: "pay_2", signature: good, want: false},
		{name: "swapped fields", orderID: "pay_1", paymentID: "order_1", signature: good, want: false},
		{name: "tampered", orderID: "order_1", paymentID: "pay_1", signature: flipFirst(good), want: false},
		{name: "not hex", orderID: "order_1", paymentID: "pay_1", signature: "zz" + good[2:], want: false},
		{name: "short", orderID: "order_1", paymentID: "pay_1", signature: good[:32], want: false},
		{name: "empty", orderID: "order_1", paymentID: "pay_1", signature: "", want: false},
		{name: "uppercase hex", orderID: "order_1", paymentID: "pay_1", signature: upper(good), want: false},
		{name: "trailing space", orderID: "order_1", paymentID: "pay_1", signature: good + " ", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.VerifySignature(tt.orderID, tt.paymentID, tt.signature))
		})
	}
}

func TestVerifySignature_EmptySecret(t *testing.T) {
	s, _ := newService(nil, nil, nil, "")
	assert.False(t, s.VerifySignature("order_1", "pay_1", Sign(nil, "order_1", "pay_1")))
}

func flipFirst(s string) string {
	if s[0] == 'a' {
		return "b" + s[1:]
	}
	return "a" + s[1:]
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func TestActivate_Success(t *testing.T) {
	req := validRequest()
	ent := &models.Entitlement{ID: "ent-1", PaymentID: req.PaymentID, Status: models.EntitlementStatusVerified, MaxConnections: 10}
	expiry := testNow.Add(90 * 24 * time.Hour)
	user := &models.User{UID: "u1", ActiveEntitlementID: &ent.ID, PlanExpiry: &expiry}

	repo := &MockRepository{}
	repo.On("WithTx", mock.Anything).Return(nil)
	repo.On("GetUserForUpdate", mock.Anything, "u1").Return(&models.User{UID: "u1"}, nil)
	repo.On("IsPaymentVerified", mock.Anything, "pay_1").Return(false, nil)
	repo.On("CreateEntitlement", mock.Anything, mock.MatchedBy(func(e *models.Entitlement) bool {
		return e.OrderID == "order_1" &&
			e.PaymentID == "pay_1" &&
			e.Signature == req.Signature &&
			e.Status == models.EntitlementStatusVerified &&
			e.Name == "Pro" &&
			e.Price == 499 &&
			e.DurationMonths == 3 &&
			e.MaxConnections == 10
	})).Return(ent, nil)
	repo.On("UpdateActivePlan", mock.Anything, "u1", "ent-1", expiry).Return(user, nil)

	warmer := &MockWarmer{}
	warmer.On("Warm", mock.Anything, ent).Return()

	s, m := newService(repo, nil, warmer, testSecret)
	got, err := s.Activate(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, ent, got.Entitlement)
	assert.Equal(t, user, got.User)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Activations.WithLabelValues("ok")))
	repo.AssertExpectations(t)
	warmer.AssertExpectations(t)
}

func TestActivate_SignatureMismatch(t *testing.T) {
	req := validRequest()
	req.PaymentID = "pay_other"

	repo := &MockRepository{}
	warmer := &MockWarmer{}
	s, m := newService(repo, nil, warmer, testSecret)

	_, err := s.Activate(context.Background(), req)

	require.ErrorIs(t, err, apperr.ErrSignatureMismatch)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignatureMismatches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Activations.WithLabelValues(apperr.KindSignatureMismatch)))
	repo.AssertNotCalled(t, "WithTx", mock.Anything)
	warmer.AssertNotCalled(t, "Warm", mock.Anything, mock.Anything)
}

func TestActivate_Failures(t *testing.T) {
	dbErr := errors.New("connection reset")

	tests := []struct {
		name    string
		setup   func(r *MockRepository)
		wantErr error
	}{
		{
			name: "unknown user",
			setup: func(r *MockRepository) {
				r.On("GetUserForUpdate", mock.Anything, "u1").Return(nil, apperr.ErrUserNotFound)
			},
			wantErr: apperr.ErrNotFound,
		},
		{
			name: "payment already verified",
			setup: func(r *MockRepository) {
				r.On("GetUserForUpdate", mock.Anything, "u1").Return(&models.User{UID: "u1"}, nil)
				r.On("IsPaymentVerified", mock.Anything, "pay_1").Return(true, nil)
			},
			wantErr: apperr.ErrPaymentAlreadyProcessed,
		},
		{
			name: "concurrent duplicate insert",
			setup: func(r *MockRepository) {
				r.On("GetUserForUpdate", mock.Anything, "u1").Return(&models.User{UID: "u1"}, nil)
				r.On("IsPaymentVerified", mock.Anything, "pay_1").Return(false, nil)
				r.On("CreateEntitlement", mock.Anything, mock.Anything).Return(nil, apperr.ErrPaymentAlreadyProcessed)
			},
			wantErr: apperr.ErrPaymentAlreadyProcessed,
		},
		{
			name: "user update fails",
			setup: func(r *MockRepository) {
				r.On("GetUserForUpdate", mock.Anything, "u1").Return(&models.User{UID: "u1"}, nil)
				r.On("IsPaymentVerified", mock.Anything, "pay_1").Return(false, nil)
				r.On("CreateEntitlement", mock.Anything, mock.Anything).Return(&models.Entitlement{ID: "ent-1"}, nil)
				r.On("UpdateActivePlan", mock.Anything, "u1", "ent-1", mock.Anything).
					Return(nil, errors.Join(apperr.ErrTransactionFailure, dbErr))
			},
			wantErr: apperr.ErrTransactionFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockRepository{}
			repo.On("WithTx", mock.Anything).Return(nil)
			tt.setup(repo)
			warmer := &MockWarmer{}

			s, m := newService(repo, nil, warmer, testSecret)
			got, err := s.Activate(context.Background(), validRequest())

			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)
			assert.Equal(t, 0.0, testutil.ToFloat64(m.Activations.WithLabelValues("ok")))
			warmer.AssertNotCalled(t, "Warm", mock.Anything, mock.Anything)
		})
	}
}

func TestActivate_InvalidRequest(t *testing.T) {
	req := validRequest()
	req.UserID = ""
	s, _ := newService(&MockRepository{}, nil, nil, testSecret)

	_, err := s.Activate(context.Background(), req)
	require.ErrorIs(t, err, apperr.ErrInvalidRequest)
}

func TestCreateOrder(t *testing.T) {
	provider := &MockProvider{}
	provider.On("CreateOrder", mock.Anything, int64(499), "INR").Return(&paymentprovider.Order{ID: "order_1", Amount: 49900}, nil).Once()
	provider.On("CreateOrder", mock.Anything, int64(1), "").Return(nil, apperr.ErrProvider).Once()
	s, _ := newService(nil, provider, nil, testSecret)

	order, err := s.CreateOrder(context.Background(), 499, "INR")
	require.NoError(t, err)
	assert.Equal(t, "order_1", order.ID)

	_, err = s.CreateOrder(context.Background(), 1, "")
	require.ErrorIs(t, err, apperr.ErrProvider)
}
