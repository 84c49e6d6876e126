// Package connected реализует HTTP-обработчик списка принятых связей с карточками собеседников.
package connected

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/connection-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/connection-engine/internal/http/response"
	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
	"github.com/magabrotheeeer/connection-engine/internal/lib/sl"
	"github.com/magabrotheeeer/connection-engine/internal/models"
)

// Handler отдаёт принятые связи пользователя.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает операцию, нужную обработчику.
type Service interface {
	ListConnected(ctx context.Context, userUID string) ([]*models.Connection, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Принятые связи пользователя
// @Tags Connections
// @Produce  json
// @Param userId query string true "Идентификатор пользователя"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Не указан userId"
// @Failure 403 {object} response.ErrorResponse "Данные другого пользователя"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /connections/connected [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.connection.connected"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		log.Error("userId is missing")
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ErrorWithKind("userId is required", apperr.KindInvalidRequest))
		return
	}
	if uid, ok := middlewarectx.UserUIDFromContext(r.Context()); !ok || uid != userID {
		log.Warn("userId does not match token", slog.String("user_id", userID))
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.FromError(apperr.ErrForbidden))
		return
	}

	res, err := h.service.ListConnected(r.Context(), userID)
	if err != nil {
		log.Error("failed to list connections", sl.Err(err), sl.Kind(err))
		render.Status(r, statusFor(err))
		render.JSON(w, r, response.FromError(err))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"connections": res,
	}))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
