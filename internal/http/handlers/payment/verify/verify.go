// Package verify реализует HTTP-обработчик подтверждения оплаты.
//
// Handler принимает идентификаторы заказа и платежа с подписью провайдера
// и параметры тарифа, проверяет подпись и атомарно активирует тариф пользователя.
package verify

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

// Request тело подтверждения оплаты в формате клиента провайдера.
type Request struct {
	OrderID           string `json:"orderId" validate:"required"`
	RazorpayPaymentID string `json:"razorpayPaymentId" validate:"required"`
	RazorpaySignature string `json:"razorpaySignature" validate:"required"`
	UserID            string `json:"userId" validate:"required"`
	MaxConnections    int    `json:"maxConnections" validate:"gt=0"`
	Name              string `json:"name" validate:"required"`
	Price             int64  `json:"price" validate:"gte=0"`
}

// Handler обрабатывает подтверждения оплаты.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает активацию тарифа.
type Service interface {
	Activate(ctx context.Context, req models.ActivationRequest) (*models.Activation, error)
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
// @Summary Подтвердить оплату и активировать тариф
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body Request true "Подтверждение оплаты"
// @Success 200 {object} response.Response "Подписка и обновлённый пользователь"
// @Failure 400 {object} response.ErrorResponse "Некорректное тело или неверная подпись"
// @Failure 403 {object} response.ErrorResponse "Оплата за другого пользователя"
// @Failure 404 {object} response.ErrorResponse "Пользователь не найден"
// @Failure 409 {object} response.ErrorResponse "Платёж уже обработан"
// @Failure 500 {object} response.ErrorResponse "Ошибка транзакции"
// @Security BearerAuth
// @Router /payments/verify [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.verify"
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

	if uid, ok := middlewarectx.UserUIDFromContext(r.Context()); !ok || uid != req.UserID {
		log.Warn("payment user does not match token", slog.String("user_id", req.UserID))
		render.Status(r, http.StatusForbidden)
		render.JSON(w, r, response.FromError(apperr.ErrForbidden))
		return
	}

	res, err := h.service.Activate(r.Context(), models.ActivationRequest{
		OrderID:        req.OrderID,
		PaymentID:      req.RazorpayPaymentID,
		Signature:      req.RazorpaySignature,
		UserID:         req.UserID,
		PlanName:       req.Name,
		Price:          req.Price,
		MaxConnections: req.MaxConnections,
	})
	if err != nil {
		render.Status(r, statusFor(err))
		render.JSON(w, r, response.FromError(err))
		return
	}

	log.Info("payment verified", slog.String("entitlement_id", res.Entitlement.ID))
	render.JSON(w, r, response.StatusOKWithData(res))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrSignatureMismatch), errors.Is(err, apperr.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrPaymentAlreadyProcessed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
