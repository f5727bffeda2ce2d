package models

type SubmitResponse struct {
	Mode        string `json:"mode"`
	ResultRef   string `json:"result_ref"`
	ContentType string `json:"content_type"`
	ImagesUsed  int    `json:"images_used"`
}

type UsageResponse struct {
	Identity string `json:"identity"`
	Used     int    `json:"used"`
	Limit    int    `json:"limit,omitempty"`
	Tier     string `json:"tier,omitempty"`
	Metered  bool   `json:"metered"`
	HasEmail bool   `json:"has_email,omitempty"`
	IsPro    bool   `json:"is_pro,omitempty"`
	Allowed  bool   `json:"allowed"`
	Reason   string `json:"reason,omitempty"`
}

type LeadResponse struct {
	NetworkAddress string `json:"network_address"`
	Email          string `json:"email"`
	UsageCount     int    `json:"usage_count"`
}

type CheckoutResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type PurchaseVerifyResponse struct {
	Valid         bool   `json:"valid"`
	Reason        string `json:"reason,omitempty"`
	Tier          string `json:"tier,omitempty"`
	TierName      string `json:"tier_name,omitempty"`
	ImagesGranted int    `json:"images_granted,omitempty"`
	Price         string `json:"price,omitempty"`
}

type PurchaseClaimResponse struct {
	Tier        string `json:"tier"`
	ImagesQuota int    `json:"images_quota"`
	ImagesUsed  int    `json:"images_used"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type TierResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Images int    `json:"images"`
	Price  string `json:"price" example:"29.99"`
}
