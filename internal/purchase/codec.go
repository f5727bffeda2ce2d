// Package purchase handles the self-contained purchase receipts handed out by
// the simulated checkout and consumed by the claim flow.
package purchase

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const StatusPaid = "paid"

var (
	hkdfSalt = []byte("image-studio")
	hkdfInfo = []byte("purchase-receipt/v1")
)

// Receipt is the payload carried inside a purchase token.
type Receipt struct {
	SessionID     string
	Tier          string
	TierName      string
	ImagesGranted int
	Price         decimal.Decimal
	PaymentStatus string
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// wireReceipt is the serialized form. Times are unix seconds so a decrypted
// receipt compares equal to the one that was encrypted.
type wireReceipt struct {
	SessionID     string `json:"sid"`
	Tier          string `json:"tier"`
	TierName      string `json:"tier_name"`
	ImagesGranted int    `json:"images"`
	Price         string `json:"price"`
	PaymentStatus string `json:"status"`
	CreatedAt     int64  `json:"iat"`
	ExpiresAt     int64  `json:"exp"`
}

// Codec seals receipts with XChaCha20-Poly1305. Every token gets a fresh
// random nonce, so identical receipts never produce identical tokens.
type Codec struct {
	aead cipher.AEAD
	rand io.Reader
}

func NewCodec(secret []byte) (*Codec, error) {
	if len(secret) < 16 {
		return nil, errors.New("purchase token secret must be at least 16 bytes")
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, hkdfSalt, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("derive purchase token key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("init purchase token cipher: %w", err)
	}
	return &Codec{aead: aead, rand: rand.Reader}, nil
}

// Encrypt returns base64url(nonce || ciphertext).
//
// CreatedAt and ExpiresAt are stored as whole seconds. Decrypt returns them
// truncated to the second and in UTC, so a round trip is exact only for
// receipts already at that precision (NewPaidReceipt builds them that way).
func (c *Codec) Encrypt(r Receipt) (string, error) {
	r.CreatedAt = r.CreatedAt.UTC().Truncate(time.Second)
	r.ExpiresAt = r.ExpiresAt.UTC().Truncate(time.Second)
	plain, err := json.Marshal(wireReceipt{
		SessionID:     r.SessionID,
		Tier:          r.Tier,
		TierName:      r.TierName,
		ImagesGranted: r.ImagesGranted,
		Price:         r.Price.String(),
		PaymentStatus: r.PaymentStatus,
		CreatedAt:     r.CreatedAt.Unix(),
		ExpiresAt:     r.ExpiresAt.Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encode receipt: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plain)+c.aead.Overhead())
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, plain, hkdfInfo)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decrypt reports false for anything that was not produced by Encrypt with
// the same secret. It does not check expiry or payment status; see Validate.
func (c *Codec) Decrypt(token string) (Receipt, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return Receipt{}, false
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, hkdfInfo)
	if err != nil {
		return Receipt{}, false
	}

	var w wireReceipt
	if err := json.Unmarshal(plain, &w); err != nil {
		return Receipt{}, false
	}
	price, err := decimal.NewFromString(w.Price)
	if err != nil {
		return Receipt{}, false
	}

	return Receipt{
		SessionID:     w.SessionID,
		Tier:          w.Tier,
		TierName:      w.TierName,
		ImagesGranted: w.ImagesGranted,
		Price:         price,
		PaymentStatus: w.PaymentStatus,
		CreatedAt:     time.Unix(w.CreatedAt, 0).UTC(),
		ExpiresAt:     time.Unix(w.ExpiresAt, 0).UTC(),
	}, true
}
