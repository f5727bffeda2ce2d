package supabase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"image-studio-backend/internal/models"
)

const pqUniqueViolation = "23505"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyClaimed = errors.New("purchase already claimed")
)

const accountColumns = `id, images_used, images_quota, tier, metered_billing_enabled, metered_billing_item_id, created_at, updated_at`

const leadColumns = `network_address, email, usage_count, is_pro, created_at`

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(db *sql.DB) *DatabaseClient {
	return &DatabaseClient{db: db}
}

func (d *DatabaseClient) DB() *sql.DB { return d.db }

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*models.AuthenticatedAccount, error) {
	var a models.AuthenticatedAccount
	err := row.Scan(
		&a.ID, &a.ImagesUsed, &a.ImagesQuota, &a.Tier,
		&a.MeteredBillingEnabled, &a.MeteredBillingHandle, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanLead(row rowScanner) (*models.AnonymousLead, error) {
	var l models.AnonymousLead
	if err := row.Scan(&l.NetworkAddress, &l.Email, &l.UsageCount, &l.IsPro, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// GetAccount returns ErrNotFound when the account has no ledger row.
func (d *DatabaseClient) GetAccount(ctx context.Context, id uuid.UUID) (*models.AuthenticatedAccount, error) {
	a, err := scanAccount(d.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

// GetOrCreateLead returns the lead for networkAddress, creating an empty one
// on first sight.
func (d *DatabaseClient) GetOrCreateLead(ctx context.Context, networkAddress string) (*models.AnonymousLead, error) {
	l, err := scanLead(d.db.QueryRowContext(ctx, `
		INSERT INTO leads (network_address)
		VALUES ($1)
		ON CONFLICT (network_address) DO UPDATE SET network_address = EXCLUDED.network_address
		RETURNING `+leadColumns+`
	`, networkAddress))
	if err != nil {
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return l, nil
}

func (d *DatabaseClient) SetLeadEmail(ctx context.Context, networkAddress, email string) (*models.AnonymousLead, error) {
	l, err := scanLead(d.db.QueryRowContext(ctx, `
		INSERT INTO leads (network_address, email)
		VALUES ($1, $2)
		ON CONFLICT (network_address) DO UPDATE SET email = EXCLUDED.email
		RETURNING `+leadColumns+`
	`, networkAddress, email))
	if err != nil {
		return nil, fmt.Errorf("failed to set lead email: %w", err)
	}
	return l, nil
}

// Claim is a validated purchase receipt being redeemed.
type Claim struct {
	SessionID     string
	Tier          string
	ImagesGranted int
	Price         decimal.Decimal
}

// ClaimPurchase adds the granted images to the account's quota and records
// the session id. A session id can be claimed once; later attempts return
// ErrAlreadyClaimed and change nothing. The account row is created if missing.
func (d *DatabaseClient) ClaimPurchase(ctx context.Context, accountID uuid.UUID, c Claim) (*models.AuthenticatedAccount, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	a, err := scanAccount(tx.QueryRowContext(ctx, `
		INSERT INTO accounts (id, images_quota, tier)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET images_quota = accounts.images_quota + EXCLUDED.images_quota,
		    tier = EXCLUDED.tier,
		    updated_at = NOW()
		RETURNING `+accountColumns+`
	`, accountID, c.ImagesGranted, c.Tier))
	if err != nil {
		return nil, fmt.Errorf("failed to grant quota: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO purchase_claims (session_id, account_id, tier, images_granted, price)
		VALUES ($1, $2, $3, $4, $5)
	`, c.SessionID, accountID, c.Tier, c.ImagesGranted, c.Price); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return nil, ErrAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to record purchase claim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit purchase claim: %w", err)
	}
	return a, nil
}

func (d *DatabaseClient) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}
