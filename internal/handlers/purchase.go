package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"image-studio-backend/internal/middleware"
	"image-studio-backend/internal/models"
	"image-studio-backend/internal/purchase"
	"image-studio-backend/internal/services"
	"image-studio-backend/internal/supabase"
)

type PurchaseHandler struct {
	purchases *services.PurchaseService
}

func NewPurchaseHandler(purchases *services.PurchaseService) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases}
}

// ListTiers godoc
// @Summary     List purchasable tiers
// @Tags        purchase
// @Produce     json
// @Success     200 {array} models.TierResponse
// @Router      /tiers [get]
func (h *PurchaseHandler) ListTiers(c *gin.Context) {
	tiers := purchase.Tiers()
	resp := make([]models.TierResponse, 0, len(tiers))
	for _, t := range tiers {
		resp = append(resp, models.TierResponse{
			ID:     t.ID,
			Name:   t.Name,
			Images: t.Images,
			Price:  t.Price.StringFixed(2),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// SimulateCheckout godoc
// @Summary     Simulate a completed checkout
// @Description Issues an encrypted, time-limited purchase token for the requested tier as if payment had succeeded.
// @Tags        purchase
// @Accept      json
// @Produce     json
// @Param       request body models.SimulateCheckoutRequest true "Tier to purchase"
// @Success     200 {object} models.CheckoutResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /checkout/simulate [post]
func (h *PurchaseHandler) SimulateCheckout(c *gin.Context) {
	var req models.SimulateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	token, expiresAt, err := h.purchases.SimulateCheckout(req.Tier)
	if err != nil {
		if errors.Is(err, purchase.ErrUnknownTier) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "unknown tier", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "checkout failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.CheckoutResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
	})
}

// VerifyPurchase godoc
// @Summary     Verify a purchase token
// @Description Decrypts the token and checks payment status and expiry. Invalid tokens return 200 with valid=false and a reason of malformed, not paid or expired.
// @Tags        purchase
// @Accept      json
// @Produce     json
// @Param       request body models.PurchaseTokenRequest true "Purchase token"
// @Success     200 {object} models.PurchaseVerifyResponse
// @Failure     400 {object} models.ErrorResponse
// @Router      /purchase/verify [post]
func (h *PurchaseHandler) VerifyPurchase(c *gin.Context) {
	var req models.PurchaseTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	receipt, err := h.purchases.Verify(req.Token)
	if err != nil {
		c.JSON(http.StatusOK, models.PurchaseVerifyResponse{Valid: false, Reason: purchase.Reason(err)})
		return
	}

	c.JSON(http.StatusOK, models.PurchaseVerifyResponse{
		Valid:         true,
		Tier:          receipt.Tier,
		TierName:      receipt.TierName,
		ImagesGranted: receipt.ImagesGranted,
		Price:         receipt.Price.StringFixed(2),
	})
}

// ClaimPurchase godoc
// @Summary     Redeem a purchase token
// @Description Adds the token's images to the signed-in account's quota and sets its tier. Each token can be redeemed once.
// @Tags        purchase
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.PurchaseTokenRequest true "Purchase token"
// @Success     200 {object} models.PurchaseClaimResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /purchase/claim [post]
func (h *PurchaseHandler) ClaimPurchase(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "authentication required"})
		return
	}

	var req models.PurchaseTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body", Message: err.Error()})
		return
	}

	account, err := h.purchases.Claim(c.Request.Context(), userID, req.Token)
	if err != nil {
		switch {
		case errors.Is(err, supabase.ErrAlreadyClaimed):
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: "purchase already claimed"})
		case errors.Is(err, purchase.ErrMalformed), errors.Is(err, purchase.ErrNotPaid), errors.Is(err, purchase.ErrExpired):
			reason := purchase.Reason(err)
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid purchase token", Message: reason, Reason: reason})
		default:
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to claim purchase", Message: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, models.PurchaseClaimResponse{
		Tier:        account.Tier,
		ImagesQuota: account.ImagesQuota,
		ImagesUsed:  account.ImagesUsed,
	})
}
