package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"image-studio-backend/internal/gate"
	"image-studio-backend/internal/models"
	"image-studio-backend/internal/services"
)

type UsageHandler struct {
	submissions    *services.SubmissionService
	anonymousLimit int
}

func NewUsageHandler(submissions *services.SubmissionService, anonymousLimit int) *UsageHandler {
	return &UsageHandler{submissions: submissions, anonymousLimit: anonymousLimit}
}

// GetUsage godoc
// @Summary     Current usage
// @Description Returns the caller's usage counters and whether the next submission would be allowed. Has no side effects on the counters.
// @Tags        usage
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.UsageResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /usage [get]
func (h *UsageHandler) GetUsage(c *gin.Context) {
	identity, outcome, err := h.submissions.Check(c.Request.Context(), callerFrom(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load usage", Message: err.Error()})
		return
	}

	resp := models.UsageResponse{
		Identity: identity.Ref().String(),
		Allowed:  outcome.Allowed(),
	}
	if outcome != gate.Allowed {
		resp.Reason = string(outcome)
	}

	switch id := identity.(type) {
	case *models.AnonymousLead:
		resp.Used = id.UsageCount
		resp.Limit = h.anonymousLimit
		resp.HasEmail = id.Email.Valid && id.Email.String != ""
		resp.IsPro = id.IsPro
	case *models.AuthenticatedAccount:
		resp.Used = id.ImagesUsed
		resp.Limit = id.ImagesQuota
		resp.Tier = id.Tier
		resp.Metered = id.Metered()
	}

	c.JSON(http.StatusOK, resp)
}
