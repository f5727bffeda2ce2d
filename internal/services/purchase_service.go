package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"image-studio-backend/internal/models"
	"image-studio-backend/internal/purchase"
	"image-studio-backend/internal/supabase"
)

type PurchaseStore interface {
	ClaimPurchase(ctx context.Context, accountID uuid.UUID, c supabase.Claim) (*models.AuthenticatedAccount, error)
}

// PurchaseService issues and redeems purchase tokens for the simulated
// checkout.
type PurchaseService struct {
	codec *purchase.Codec
	store PurchaseStore
	ttl   time.Duration
	log   *logrus.Entry
	now   func() time.Time
}

func NewPurchaseService(codec *purchase.Codec, store PurchaseStore, ttl time.Duration, log *logrus.Entry) *PurchaseService {
	return &PurchaseService{
		codec: codec,
		store: store,
		ttl:   ttl,
		log:   log,
		now:   time.Now,
	}
}

// SimulateCheckout returns a paid token for tierID, as if the hosted checkout
// had completed.
func (s *PurchaseService) SimulateCheckout(tierID string) (string, time.Time, error) {
	tier, err := purchase.LookupTier(tierID)
	if err != nil {
		return "", time.Time{}, err
	}

	receipt := purchase.NewPaidReceipt(tier, s.now(), s.ttl)
	token, err := s.codec.Encrypt(receipt)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("issue purchase token: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"session_id": receipt.SessionID,
		"tier":       tier.ID,
	}).Info("simulated checkout completed")
	return token, receipt.ExpiresAt, nil
}

// Verify decodes token and applies the business checks. The error is one of
// purchase.ErrMalformed, ErrNotPaid or ErrExpired.
func (s *PurchaseService) Verify(token string) (purchase.Receipt, error) {
	receipt, ok := s.codec.Decrypt(token)
	if !ok {
		return purchase.Receipt{}, purchase.ErrMalformed
	}
	if err := purchase.Validate(receipt, s.now()); err != nil {
		return receipt, err
	}
	return receipt, nil
}

// Claim grants a verified token's images to accountID. Each token can be
// claimed once.
func (s *PurchaseService) Claim(ctx context.Context, accountID uuid.UUID, token string) (*models.AuthenticatedAccount, error) {
	receipt, err := s.Verify(token)
	if err != nil {
		return nil, err
	}

	account, err := s.store.ClaimPurchase(ctx, accountID, supabase.Claim{
		SessionID:     receipt.SessionID,
		Tier:          receipt.Tier,
		ImagesGranted: receipt.ImagesGranted,
		Price:         receipt.Price,
	})
	if err != nil {
		if !errors.Is(err, supabase.ErrAlreadyClaimed) {
			s.log.WithError(err).WithField("session_id", receipt.SessionID).Error("purchase claim failed")
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"session_id": receipt.SessionID,
		"account_id": accountID.String(),
		"granted":    receipt.ImagesGranted,
	}).Info("purchase claimed")
	return account, nil
}
