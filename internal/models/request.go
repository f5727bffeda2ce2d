package models

type RegisterEmailRequest struct {
	Email string `json:"email" binding:"required,email" example:"someone@example.com"`
}

type SimulateCheckoutRequest struct {
	// Tier is one of the catalog tiers: starter, pro, studio.
	Tier string `json:"tier" binding:"required" example:"pro"`
}

type PurchaseTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	// Reason is the machine-readable refusal reason, set only for entitlement refusals.
	Reason string `json:"reason,omitempty"`
}
