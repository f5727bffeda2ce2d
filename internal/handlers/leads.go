package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"image-studio-backend/internal/middleware"
	"image-studio-backend/internal/models"
)

type LeadStore interface {
	SetLeadEmail(ctx context.Context, networkAddress, email string) (*models.AnonymousLead, error)
}

type LeadsHandler struct {
	store LeadStore
	log   *logrus.Entry
}

func NewLeadsHandler(store LeadStore, log *logrus.Entry) *LeadsHandler {
	return &LeadsHandler{store: store, log: log}
}

// RegisterEmail godoc
// @Summary     Register an email for the anonymous trial
// @Description Attaches an email address to the caller's network address. Anonymous callers must do this before their first submission.
// @Tags        leads
// @Accept      json
// @Produce     json
// @Param       request body models.RegisterEmailRequest true "Email address"
// @Success     200 {object} models.LeadResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /leads/email [post]
func (h *LeadsHandler) RegisterEmail(c *gin.Context) {
	if _, ok := middleware.UserID(c); ok {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "already signed in",
			Message: "authenticated accounts do not use the anonymous trial",
		})
		return
	}

	var req models.RegisterEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	addr := middleware.NetworkAddress(c)
	lead, err := h.store.SetLeadEmail(c.Request.Context(), addr, req.Email)
	if err != nil {
		h.log.WithError(err).WithField("network_address", addr).Error("failed to register lead email")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to register email", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.LeadResponse{
		NetworkAddress: lead.NetworkAddress,
		Email:          lead.Email.String,
		UsageCount:     lead.UsageCount,
	})
}
