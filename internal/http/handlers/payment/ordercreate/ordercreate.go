// Package ordercreate реализует HTTP-обработчик создания заказа у платёжного провайдера.
package ordercreate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/connection-engine/internal/http/response"
	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
	"github.com/magabrotheeeer/connection-engine/internal/lib/sl"
	"github.com/magabrotheeeer/connection-engine/internal/paymentprovider"
)

// Request тело запроса: сумма в основных единицах и необязательная валюта.
type Request struct {
	Amount   int64  `json:"amount" validate:"gt=0"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

// Handler создаёт заказы.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает создание заказа.
type Service interface {
	CreateOrder(ctx context.Context, amount int64, currency string) (*paymentprovider.Order, error)
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
// @Summary Создать заказ на оплату тарифа
// @Tags Payments
// @Accept  json
// @Produce  json
// @Param request body Request true "Сумма и валюта"
// @Success 200 {object} paymentprovider.Order
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Ошибка провайдера"
// @Security BearerAuth
// @Router /payments/orders [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.ordercreate"
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
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	order, err := h.service.CreateOrder(r.Context(), req.Amount, req.Currency)
	if err != nil {
		log.Error("failed to create order", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.ErrorWithKind("unable to create order", apperr.Kind(err)))
		return
	}

	log.Info("order created", slog.String("order_id", order.ID))
	render.JSON(w, r, order)
}
