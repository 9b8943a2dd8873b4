package controllers

import (
	"net/http"

	"github.com/shoplinehq/shopline-backend/api/responses"
	"github.com/shoplinehq/shopline-backend/pkg/config"
	"github.com/shoplinehq/shopline-backend/pkg/db"
	pkgerrors "github.com/shoplinehq/shopline-backend/pkg/errors"
	"github.com/shoplinehq/shopline-backend/pkg/logger"
	"github.com/shoplinehq/shopline-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Shopline-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports readiness only when both backing stores answer.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Shopline-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true

		if dbP == nil {
			checks["db"] = "unconfigured"
			healthy = false
		} else if err := dbP.Ping(r.Context()); err != nil {
			checks["db"] = "down"
			healthy = false
			logg.Error(r.Context(), "db readiness check failed", err)
		} else {
			checks["db"] = "ok"
		}

		if redisP == nil {
			checks["redis"] = "unconfigured"
			healthy = false
		} else if err := redisP.Ping(r.Context()); err != nil {
			checks["redis"] = "down"
			healthy = false
			logg.Error(r.Context(), "redis readiness check failed", err)
		} else {
			checks["redis"] = "ok"
		}

		if !healthy {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "service not ready").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
