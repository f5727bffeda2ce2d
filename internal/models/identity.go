package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Identity is the unit against which usage is tracked. Exactly one of
// AnonymousLead, AuthenticatedAccount or MissingAccount.
type Identity interface {
	Ref() IdentityRef
}

type IdentityKind string

const (
	IdentityLead    IdentityKind = "lead"
	IdentityAccount IdentityKind = "account"
)

// IdentityRef addresses one ledger row.
type IdentityRef struct {
	Kind IdentityKind
	Key  string
}

func (r IdentityRef) String() string {
	return string(r.Kind) + ":" + r.Key
}

func LeadRef(networkAddress string) IdentityRef {
	return IdentityRef{Kind: IdentityLead, Key: networkAddress}
}

func AccountRef(id uuid.UUID) IdentityRef {
	return IdentityRef{Kind: IdentityAccount, Key: id.String()}
}

type AnonymousLead struct {
	NetworkAddress string
	Email          sql.NullString
	UsageCount     int
	IsPro          bool
	CreatedAt      time.Time
}

func (l *AnonymousLead) Ref() IdentityRef { return LeadRef(l.NetworkAddress) }

type AuthenticatedAccount struct {
	ID                    uuid.UUID
	ImagesUsed            int
	ImagesQuota           int
	Tier                  string
	MeteredBillingEnabled bool
	MeteredBillingHandle  sql.NullString
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (a *AuthenticatedAccount) Ref() IdentityRef { return AccountRef(a.ID) }

// Metered reports whether consumption beyond quota is billed instead of refused.
func (a *AuthenticatedAccount) Metered() bool {
	return a.MeteredBillingEnabled && a.MeteredBillingHandle.Valid && a.MeteredBillingHandle.String != ""
}

// MissingAccount is an authenticated caller without a ledger row.
type MissingAccount struct {
	ID uuid.UUID
}

func (m *MissingAccount) Ref() IdentityRef { return AccountRef(m.ID) }
