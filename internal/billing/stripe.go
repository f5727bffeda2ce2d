// Package billing reports metered image consumption to Stripe.
//
// Reporting is best-effort: failures are logged and counted, never returned to
// the submission path, and never roll back the ledger.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/usagerecord"
)

// Usage is one billable unit against a metered subscription item.
type Usage struct {
	AccountID   string
	MeterHandle string
	Quantity    int64
	// Sequence is the account's usage count after the increment. Together with
	// AccountID it makes the report idempotent on Stripe's side.
	Sequence int
	At       time.Time
}

func (u Usage) IdempotencyKey() string {
	if u.Sequence <= 0 {
		return ""
	}
	return fmt.Sprintf("usage-%s-%d", u.AccountID, u.Sequence)
}

type Reporter interface {
	Report(ctx context.Context, u Usage) error
}

type recordFunc func(params *stripe.UsageRecordParams) (*stripe.UsageRecord, error)

type StripeReporter struct {
	record recordFunc
}

func NewStripeReporter(secretKey string) *StripeReporter {
	client := usagerecord.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey}
	return &StripeReporter{record: client.New}
}

func (r *StripeReporter) Report(ctx context.Context, u Usage) error {
	if u.MeterHandle == "" {
		return errors.New("missing metered subscription item")
	}
	if u.Quantity <= 0 {
		u.Quantity = 1
	}
	if u.At.IsZero() {
		u.At = time.Now()
	}

	params := &stripe.UsageRecordParams{
		SubscriptionItem: stripe.String(u.MeterHandle),
		Quantity:         stripe.Int64(u.Quantity),
		Timestamp:        stripe.Int64(u.At.Unix()),
		Action:           stripe.String("increment"),
	}
	params.Context = ctx
	if key := u.IdempotencyKey(); key != "" {
		params.SetIdempotencyKey(key)
	}

	if _, err := r.record(params); err != nil {
		return fmt.Errorf("create usage record for %s: %w", u.MeterHandle, err)
	}
	return nil
}
