// Package gate decides whether an identity may submit one more image.
package gate

import (
	"fmt"
	"net/http"

	"image-studio-backend/internal/models"
)

// Outcome is the decision returned by Decide. Every non-Allowed value is a
// machine-readable refusal reason.
type Outcome string

const (
	Allowed       Outcome = "allowed"
	EmailRequired Outcome = "email_required"
	LimitReached  Outcome = "limit_reached"
	QuotaExceeded Outcome = "quota_exceeded"
	UserNotFound  Outcome = "user_not_found"
)

// DefaultAnonymousLimit is the number of free submissions per anonymous lead.
const DefaultAnonymousLimit = 3

func (o Outcome) Allowed() bool { return o == Allowed }

// HTTPStatus maps a refusal to the status class returned by the submission endpoint.
func (o Outcome) HTTPStatus() int {
	switch o {
	case Allowed:
		return http.StatusOK
	case EmailRequired:
		return http.StatusUnauthorized
	case LimitReached:
		return http.StatusForbidden
	case QuotaExceeded:
		return http.StatusPaymentRequired
	case UserNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Message is the human-readable text paired with the refusal reason.
func (o Outcome) Message() string {
	switch o {
	case EmailRequired:
		return "an email address is required before submitting images"
	case LimitReached:
		return "free trial limit reached"
	case QuotaExceeded:
		return "image quota exceeded"
	case UserNotFound:
		return "account usage record not found"
	default:
		return string(o)
	}
}

// ParseOutcome returns the refusal reason for a wire value.
func ParseOutcome(s string) (Outcome, bool) {
	switch o := Outcome(s); o {
	case Allowed, EmailRequired, LimitReached, QuotaExceeded, UserNotFound:
		return o, true
	}
	return "", false
}

// Controller holds the anonymous trial limit. Decide never mutates its input.
type Controller struct {
	anonymousLimit int
}

func NewController(anonymousLimit int) *Controller {
	return &Controller{anonymousLimit: anonymousLimit}
}

// Decide returns the outcome for identity given its current ledger state.
func (c *Controller) Decide(identity models.Identity) Outcome {
	switch id := identity.(type) {
	case *models.AnonymousLead:
		if id == nil || !id.Email.Valid || id.Email.String == "" {
			return EmailRequired
		}
		if id.UsageCount >= c.anonymousLimit && !id.IsPro {
			return LimitReached
		}
		return Allowed
	case *models.AuthenticatedAccount:
		if id == nil {
			return UserNotFound
		}
		// Overage needs a meter to bill against; an enabled flag alone is not enough.
		if id.ImagesUsed >= id.ImagesQuota && !id.Metered() {
			return QuotaExceeded
		}
		return Allowed
	case *models.MissingAccount:
		return UserNotFound
	default:
		return UserNotFound
	}
}

// RefusalError carries a non-Allowed outcome through error returns.
type RefusalError struct {
	Outcome Outcome
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("submission refused: %s", e.Outcome)
}

func Refuse(o Outcome) error {
	return &RefusalError{Outcome: o}
}
