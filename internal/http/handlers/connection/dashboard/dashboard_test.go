package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/connection-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/connection-engine/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Dashboard(ctx context.Context, userUID string) (*models.Dashboard, error) {
	args := m.Called(ctx, userUID)
	if res := args.Get(0); res != nil {
		return res.(*models.Dashboard), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestDashboardHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		url            string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "счётчики",
			url:  "/connections/dashboard?userId=alice",
			setupMock: func(m *MockService) {
				m.On("Dashboard", mock.Anything, "alice").Return(&models.Dashboard{PendingRequests: 2, TotalConnections: 5}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `{"status":"OK","data":{"pending_requests":2,"total_connections":5}}`,
		},
		{
			name:           "нет userId",
			url:            "/connections/dashboard",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "ошибка сервиса",
			url:  "/connections/dashboard?userId=alice",
			setupMock: func(m *MockService) {
				m.On("Dashboard", mock.Anything, "alice").Return(nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"kind":"internal"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, "alice"))
			rr := httptest.NewRecorder()

			New(logger, svc).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, rr.Body.String(), tt.expectedBody)
			}
		})
	}
}
