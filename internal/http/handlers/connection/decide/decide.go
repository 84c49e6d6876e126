// Package decide реализует HTTP-обработчик решения по входящему запросу на связь.
package decide

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

// Request тело решения: accept или reject.
type Request struct {
	RequestID string `json:"requestId" validate:"required"`
	Action    string `json:"action" validate:"required,oneof=accept reject"`
}

// Handler обрабатывает решения получателя.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает операцию движка, нужную обработчику.
type Service interface {
	DecideAs(ctx context.Context, actorUID, requestID string, decision models.Decision) (*models.ConnectionRequest, error)
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
// @Summary Принять или отклонить запрос на связь
// @Tags Connections
// @Accept  json
// @Produce  json
// @Param request body Request true "Идентификатор запроса и действие"
// @Success 200 {object} response.Response "Обновлённый запрос"
// @Failure 400 {object} response.ErrorResponse "Некорректное действие"
// @Failure 403 {object} response.ErrorResponse "Запрос адресован другому пользователю"
// @Failure 404 {object} response.ErrorResponse "Запрос не найден или уже обработан"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /connections/requests [put]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.connection.decide"
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

	updated, err := h.service.DecideAs(r.Context(), userUID, req.RequestID, models.Decision(req.Action))
	if err != nil {
		log.Info("decision refused", slog.String("connection_request_id", req.RequestID), sl.Err(err), sl.Kind(err))
		render.Status(r, statusFor(err))
		render.JSON(w, r, response.FromError(err))
		return
	}

	log.Info("decision applied", slog.String("connection_request_id", updated.ID), slog.String("status", string(updated.Status)))
	render.JSON(w, r, response.StatusOKWithData(updated))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrInvalidState):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
