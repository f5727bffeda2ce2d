package gate_test

import (
	"database/sql"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"image-studio-backend/internal/gate"
	"image-studio-backend/internal/models"
)

func lead(email string, used int, pro bool) *models.AnonymousLead {
	return &models.AnonymousLead{
		NetworkAddress: "203.0.113.7",
		Email:          sql.NullString{String: email, Valid: email != ""},
		UsageCount:     used,
		IsPro:          pro,
	}
}

func account(used, quota int, metered bool) *models.AuthenticatedAccount {
	return &models.AuthenticatedAccount{
		ID:                    uuid.New(),
		ImagesUsed:            used,
		ImagesQuota:           quota,
		Tier:                  "pro",
		MeteredBillingEnabled: metered,
		MeteredBillingHandle:  sql.NullString{String: "si_test", Valid: metered},
	}
}

func TestDecide_AnonymousLead(t *testing.T) {
	c := gate.NewController(gate.DefaultAnonymousLimit)

	tests := []struct {
		name string
		lead *models.AnonymousLead
		want gate.Outcome
	}{
		{"no email", lead("", 0, false), gate.EmailRequired},
		{"no email even when pro", lead("", 0, true), gate.EmailRequired},
		{"fresh lead", lead("a@b.co", 0, false), gate.Allowed},
		{"last free image", lead("a@b.co", 2, false), gate.Allowed},
		{"trial exhausted", lead("a@b.co", 3, false), gate.LimitReached},
		{"well past trial", lead("a@b.co", 9, false), gate.LimitReached},
		{"pro lead past trial", lead("a@b.co", 9, true), gate.Allowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Decide(tt.lead))
		})
	}
}

func TestDecide_Account(t *testing.T) {
	c := gate.NewController(gate.DefaultAnonymousLimit)

	assert.Equal(t, gate.Allowed, c.Decide(account(0, 50, false)))
	assert.Equal(t, gate.Allowed, c.Decide(account(49, 50, false)))
	assert.Equal(t, gate.QuotaExceeded, c.Decide(account(50, 50, false)))
	assert.Equal(t, gate.Allowed, c.Decide(account(50, 50, true)))
	assert.Equal(t, gate.Allowed, c.Decide(account(500, 50, true)))
	assert.Equal(t, gate.UserNotFound, c.Decide(&models.MissingAccount{ID: uuid.New()}))
}

func TestDecide_MeteringWithoutHandleStopsAtQuota(t *testing.T) {
	c := gate.NewController(gate.DefaultAnonymousLimit)

	noHandle := account(50, 50, true)
	noHandle.MeteredBillingHandle = sql.NullString{}
	assert.Equal(t, gate.QuotaExceeded, c.Decide(noHandle))

	emptyHandle := account(50, 50, true)
	emptyHandle.MeteredBillingHandle = sql.NullString{Valid: true}
	assert.Equal(t, gate.QuotaExceeded, c.Decide(emptyHandle))

	noHandle.ImagesUsed = 49
	assert.Equal(t, gate.Allowed, c.Decide(noHandle))
}

func TestDecide_QuotaExceededForAllExhaustedPairs(t *testing.T) {
	c := gate.NewController(gate.DefaultAnonymousLimit)

	for quota := 1; quota <= 60; quota++ {
		for used := quota; used <= quota+15; used++ {
			assert.Equal(t, gate.QuotaExceeded, c.Decide(account(used, quota, false)),
				"used=%d quota=%d", used, quota)
		}
	}
}

func TestDecide_IsPure(t *testing.T) {
	c := gate.NewController(gate.DefaultAnonymousLimit)
	a := account(50, 50, false)
	snapshot := *a
	l := lead("a@b.co", 3, false)
	leadSnapshot := *l

	first := c.Decide(a)
	second := c.Decide(a)
	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, *a)

	assert.Equal(t, c.Decide(l), c.Decide(l))
	assert.Equal(t, leadSnapshot, *l)
}

func TestOutcome_HTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, gate.EmailRequired.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, gate.LimitReached.HTTPStatus())
	assert.Equal(t, http.StatusPaymentRequired, gate.QuotaExceeded.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, gate.UserNotFound.HTTPStatus())
}

func TestRefusalError(t *testing.T) {
	err := gate.Refuse(gate.QuotaExceeded)

	var refusal *gate.RefusalError
	assert.True(t, errors.As(err, &refusal))
	assert.Equal(t, gate.QuotaExceeded, refusal.Outcome)
	assert.Contains(t, err.Error(), "quota_exceeded")

	o, ok := gate.ParseOutcome("limit_reached")
	assert.True(t, ok)
	assert.Equal(t, gate.LimitReached, o)
	_, ok = gate.ParseOutcome("bogus")
	assert.False(t, ok)
}
