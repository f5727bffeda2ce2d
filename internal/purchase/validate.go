package purchase

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrMalformed   = errors.New("malformed")
	ErrNotPaid     = errors.New("not paid")
	ErrExpired     = errors.New("expired")
	ErrUnknownTier = errors.New("unknown tier")
)

// Validate applies the business checks a decrypted receipt must pass before
// it grants anything.
func Validate(r Receipt, now time.Time) error {
	if r.SessionID == "" || r.Tier == "" || r.ImagesGranted <= 0 || r.Price.IsNegative() {
		return ErrMalformed
	}
	if r.PaymentStatus != StatusPaid {
		return ErrNotPaid
	}
	if !now.Before(r.ExpiresAt) {
		return ErrExpired
	}
	return nil
}

// Reason returns the machine-readable invalidity reason for an error from
// Validate, or "malformed" for anything else.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrExpired):
		return ErrExpired.Error()
	case errors.Is(err, ErrNotPaid):
		return ErrNotPaid.Error()
	default:
		return ErrMalformed.Error()
	}
}

type Tier struct {
	ID     string
	Name   string
	Images int
	Price  decimal.Decimal
}

var catalog = map[string]Tier{
	"starter": {ID: "starter", Name: "Starter", Images: 50, Price: decimal.RequireFromString("9.99")},
	"pro":     {ID: "pro", Name: "Pro", Images: 200, Price: decimal.RequireFromString("29.99")},
	"studio":  {ID: "studio", Name: "Studio", Images: 1000, Price: decimal.RequireFromString("99.00")},
}

func LookupTier(id string) (Tier, error) {
	t, ok := catalog[id]
	if !ok {
		return Tier{}, fmt.Errorf("%w: %q", ErrUnknownTier, id)
	}
	return t, nil
}

// Tiers returns the catalog ordered by price.
func Tiers() []Tier {
	out := make([]Tier, 0, len(catalog))
	for _, t := range catalog {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out
}

// NewPaidReceipt builds the receipt the simulated checkout hands out.
func NewPaidReceipt(tier Tier, now time.Time, ttl time.Duration) Receipt {
	return Receipt{
		SessionID:     "sim_" + uuid.NewString(),
		Tier:          tier.ID,
		TierName:      tier.Name,
		ImagesGranted: tier.Images,
		Price:         tier.Price,
		PaymentStatus: StatusPaid,
		CreatedAt:     now.UTC().Truncate(time.Second),
		ExpiresAt:     now.Add(ttl).UTC().Truncate(time.Second),
	}
}
