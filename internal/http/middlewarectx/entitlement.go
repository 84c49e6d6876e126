package middlewarectx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/connection-engine/internal/http/response"
	"github.com/magabrotheeeer/connection-engine/internal/lib/apperr"
	"github.com/magabrotheeeer/connection-engine/internal/lib/sl"
)

// EntitlementChecker проверяет, действует ли тариф пользователя.
type EntitlementChecker interface {
	HasValidEntitlement(ctx context.Context, userUID string) (bool, error)
}

// EntitlementMiddleware пропускает запрос только при действующем тарифе.
// Тариф проверяется по свежему чтению на каждый запрос.
func EntitlementMiddleware(log *slog.Logger, checker EntitlementChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.EntitlementMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			userUID, ok := UserUIDFromContext(r.Context())
			if !ok {
				log.Error("user identification missing")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("user identification missing"))
				return
			}

			valid, err := checker.HasValidEntitlement(r.Context(), userUID)
			switch {
			case errors.Is(err, apperr.ErrNotFound):
				log.Warn("user not found", slog.String("user_id", userUID))
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, response.FromError(err))
				return
			case err != nil:
				log.Error("failed to check entitlement", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.ErrorWithKind("internal service error", apperr.KindInternal))
				return
			case !valid:
				log.Info("no active plan, access denied", slog.String("user_id", userUID))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.FromError(apperr.ErrNoActivePlan))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
