// Package read реализует HTTP-обработчик получения подписки по ID.
//
// Handler извлекает ID из URL-параметров, читает подписку через кэш
// и возвращает её в JSON-формате. Чужую подписку прочитать нельзя.
package read

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/connection-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/connection-engine/internal/http/response"
	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
	"github.com/magabrotheeeer/connection-engine/internal/lib/sl"
	"github.com/magabrotheeeer/connection-engine/internal/models"
)

// Handler обрабатывает запросы на получение подписки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает интерфейс чтения подписки.
type Service interface {
	GetOwned(ctx context.Context, userUID, id string) (*models.Entitlement, error)
}

// New создает новый Handler с переданным логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Получить подписку
// @Tags Entitlements
// @Produce  json
// @Param id path string true "ID подписки"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Нет пользователя в токене"
// @Failure 403 {object} response.ErrorResponse "Подписка принадлежит другому пользователю"
// @Failure 404 {object} response.ErrorResponse "Подписка не найдена"
// @Failure 500 {object} response.ErrorResponse "Ошибка сервера"
// @Security BearerAuth
// @Router /entitlements/{id} [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.entitlement.read"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	uid, ok := middlewarectx.UserUIDFromContext(r.Context())
	if !ok {
		log.Error("user uid not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	id := chi.URLParam(r, "id")
	res, err := h.service.GetOwned(r.Context(), uid, id)
	if err != nil {
		log.Error("failed to read entitlement", slog.String("id", id), sl.Err(err))
		switch {
		case errors.Is(err, apperr.ErrForbidden):
			render.Status(r, http.StatusForbidden)
		case errors.Is(err, apperr.ErrNotFound):
			render.Status(r, http.StatusNotFound)
		case errors.Is(err, apperr.ErrInvalidRequest):
			render.Status(r, http.StatusBadRequest)
		default:
			render.Status(r, http.StatusInternalServerError)
		}
		render.JSON(w, r, response.FromError(err))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(res))
}
