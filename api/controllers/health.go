package controllers

import (
	"net/http"

	"github.com/gomartvn/gomart-backend/api/responses"
	"github.com/gomartvn/gomart-backend/pkg/config"
	"github.com/gomartvn/gomart-backend/pkg/db"
	pkgerrors "github.com/gomartvn/gomart-backend/pkg/errors"
	"github.com/gomartvn/gomart-backend/pkg/logger"
	"github.com/gomartvn/gomart-backend/pkg/redis"
)

const envHeader = "X-GoMart-Env"

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the hard dependencies and reports per-component status.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		components := map[string]string{}
		healthy := true

		if dbP != nil {
			components["database"] = "ok"
			if err := dbP.Ping(r.Context()); err != nil {
				components["database"] = "unavailable"
				healthy = false
			}
		}
		if redisP != nil {
			components["redis"] = "ok"
			if err := redisP.Ping(r.Context()); err != nil {
				components["redis"] = "unavailable"
				healthy = false
			}
		}

		if !healthy {
			err := pkgerrors.New(pkgerrors.CodeDependency, "dependency unavailable").WithDetails(components)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "components": components})
	}
}
