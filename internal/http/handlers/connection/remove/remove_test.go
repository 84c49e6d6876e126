package remove

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/connection-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
	"github.com/magabrotheeeer/connection-engine/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) RemoveAs(ctx context.Context, actorUID, connectionID string) (*models.ConnectionRequest, error) {
	args := m.Called(ctx, actorUID, connectionID)
	if res := args.Get(0); res != nil {
		return res.(*models.ConnectionRequest), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestRemoveHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешное удаление",
			body: `{"connectionId":"r1"}`,
			setupMock: func(m *MockService) {
				m.On("RemoveAs", mock.Anything, "alice", "r1").
					Return(&models.ConnectionRequest{ID: "r1", Status: models.StatusRemoved}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"removed"`,
		},
		{
			name:           "нет connectionId",
			body:           `{}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `field ConnectionID is a required field`,
		},
		{
			name: "связь не найдена",
			body: `{"connectionId":"r404"}`,
			setupMock: func(m *MockService) {
				m.On("RemoveAs", mock.Anything, "alice", "r404").Return(nil, apperr.ErrRequestNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "запрос ещё не принят",
			body: `{"connectionId":"r1"}`,
			setupMock: func(m *MockService) {
				m.On("RemoveAs", mock.Anything, "alice", "r1").Return(nil, apperr.ErrInvalidState)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"kind":"invalid_state"`,
		},
		{
			name: "не участник",
			body: `{"connectionId":"r1"}`,
			setupMock: func(m *MockService) {
				m.On("RemoveAs", mock.Anything, "alice", "r1").Return(nil, apperr.ErrForbidden)
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name: "ошибка хранилища",
			body: `{"connectionId":"r1"}`,
			setupMock: func(m *MockService) {
				m.On("RemoveAs", mock.Anything, "alice", "r1").Return(nil, errors.New("db down"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			req := httptest.NewRequest(http.MethodDelete, "/connections/connected", strings.NewReader(tt.body))
			req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserUID, "alice"))
			rr := httptest.NewRecorder()

			New(logger, svc).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedBody != "" {
				assert.Contains(t, rr.Body.String(), tt.expectedBody)
			}
			svc.AssertExpectations(t)
		})
	}
}
