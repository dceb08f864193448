package controllers

import (
	"context"
	"net/http"

	"github.com/poofware/homeservices/backend/services/booking-service/internal/dtos"
	"github.com/poofware/homeservices/backend/shared/go-utils"
)

// Pinger is satisfied by *app.App.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	deps Pinger
}

func NewHealthController(deps Pinger) *HealthController {
	return &HealthController{deps}
}

func (c *HealthController) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if err := c.deps.Ping(r.Context()); err != nil {
		utils.Logger.WithError(err).Error("booking-service dependency unreachable")
		utils.RespondErrorWithCode(w, http.StatusServiceUnavailable, utils.ErrCodeInternal, "Dependency unreachable", nil, err)
		return
	}
	resp := dtos.HealthCheckResponse{Status: "OK"}
	utils.RespondWithJSON(w, http.StatusOK, resp)
}
