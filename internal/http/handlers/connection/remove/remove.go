// Package remove реализует HTTP-обработчик удаления принятой связи.
//
// Удаление мягкое: запрос переводится в статус removed, повторное удаление
// считается успешным.
package remove

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/connection-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/connection-engine/internal/http/response"
	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
	"github.com/magabrotheeeer/connection-engine/internal/lib/sl"
	"github.com/magabrotheeeer/connection-engine/internal/models"
)

// Request тело запроса на удаление связи.
type Request struct {
	ConnectionID string `json:"connectionId" validate:"required"`
}

// Handler обрабатывает удаление связей.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает операцию движка, нужную обработчику.
type Service interface {
	RemoveAs(ctx context.Context, actorUID, connectionID string) (*models.ConnectionRequest, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Удалить связь
// @Tags Connections
// @Accept  json
// @Produce  json
// @Param request body Request true "Идентификатор связи"
// @Success 200 {object} response.Response "Связь удалена"
// @Failure 400 {object} response.ErrorResponse "Не указан connectionId"
// @Failure 403 {object} response.ErrorResponse "Пользователь не участник связи"
// @Failure 404 {object} response.ErrorResponse "Связь не найдена"
// @Failure 409 {object} response.ErrorResponse "Запрос ещё не принят"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /connections/connected [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.connection.remove"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ErrorWithKind("invalid request body", apperr.KindInvalidRequest))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	userUID, ok := middlewarectx.UserUIDFromContext(r.Context())
	if !ok {
		log.Error("user uid not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	removed, err := h.service.RemoveAs(r.Context(), userUID, req.ConnectionID)
	if err != nil {
		log.Info("remove refused", slog.String("connection_id", req.ConnectionID), sl.Err(err), sl.Kind(err))
		render.Status(r, statusFor(err))
		render.JSON(w, r, response.FromError(err))
		return
	}

	log.Info("connection removed", slog.String("connection_id", removed.ID))
	render.JSON(w, r, response.StatusOKWithData(removed))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
