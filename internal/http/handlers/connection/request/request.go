// Package request реализует HTTP-обработчик отправки запроса на связь.
//
// Handler принимает JSON с отправителем и получателем, сверяет отправителя
// с пользователем из JWT и вызывает движок связей. Отказы квоты и тарифа
// возвращаются как 403 с машиночитаемым видом ошибки.
package request

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

// Request тело запроса на связь.
type Request struct {
	FromUserID string `json:"fromUserId" validate:"required"`
	ToUserID   string `json:"toUserId" validate:"required"`
}

// Handler обрабатывает создание запросов на связь.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает операцию движка, нужную обработчику.
type Service interface {
	RequestConnection(ctx context.Context, fromUID, toUID string) (*models.ConnectionRequest, error)
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
// @Summary Отправить запрос на связь
// @Description Создает запрос в статусе pending и списывает единицу квоты отправителя.
// @Tags Connections
// @Accept  json
// @Produce  json
// @Param request body Request true "Отправитель и получатель"
// @Success 201 {object} response.Response "Созданный запрос"
// @Failure 400 {object} response.ErrorResponse "Некорректное тело, запрос самому себе или повторный запрос"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Квота исчерпана, нет тарифа или чужой отправитель"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /connections/requests [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.connection.request"
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
	if userUID != req.FromUserID {
		log.Warn("requester does not match token", slog.String("user_id", userUID), slog.String("from_user_id", req.FromUserID))
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.FromError(apperr.ErrForbidden))
		return
	}

	created, err := h.service.RequestConnection(r.Context(), req.FromUserID, req.ToUserID)
	if err != nil {
		log.Info("connection request refused", sl.Err(err), sl.Kind(err))
		render.Status(r, statusFor(err))
		render.JSON(w, r, response.FromError(err))
		return
	}

	log.Info("connection request created", slog.String("id", created.ID))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.StatusOKWithData(created))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidRequest), errors.Is(err, apperr.ErrDuplicateRequest):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrQuotaExceeded), errors.Is(err, apperr.ErrNoActivePlan), errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
