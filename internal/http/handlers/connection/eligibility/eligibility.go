// Package eligibility реализует HTTP-обработчик проверки права отправить запрос на связь.
package eligibility

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
	"github.com/magabrotheeeer/connection-engine/internal/services/quota"
)

// Handler отдаёт решение проверки квоты без изменения состояния.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает операцию, нужную обработчику.
type Service interface {
	Eligibility(ctx context.Context, userUID string) (quota.Decision, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Может ли пользователь отправить запрос на связь
// @Tags Connections
// @Produce  json
// @Param userId query string true "Идентификатор пользователя"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse "Не указан userId"
// @Failure 403 {object} response.ErrorResponse "Данные другого пользователя"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /connections/eligibility [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.connection.eligibility"
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

	res, err := h.service.Eligibility(r.Context(), userID)
	if err != nil {
		log.Error("failed to evaluate eligibility", sl.Err(err), sl.Kind(err))
		render.Status(r, statusFor(err))
		render.JSON(w, r, response.FromError(err))
		return
	}

	log.Debug("eligibility evaluated", slog.Bool("allowed", res.Allowed), slog.String("reason", res.Reason))
	render.JSON(w, r, response.StatusOKWithData(res))
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
