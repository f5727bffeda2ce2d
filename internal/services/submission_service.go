package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"image-studio-backend/internal/billing"
	"image-studio-backend/internal/gate"
	"image-studio-backend/internal/metrics"
	"image-studio-backend/internal/models"
	"image-studio-backend/internal/supabase"
	"image-studio-backend/internal/transform"
)

// ErrTransformFailed wraps failures of the external transformation service.
var ErrTransformFailed = errors.New("transformation failed")

type IdentityStore interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*models.AuthenticatedAccount, error)
	GetOrCreateLead(ctx context.Context, networkAddress string) (*models.AnonymousLead, error)
}

type Transformer interface {
	Transform(ctx context.Context, image []byte, contentType string, mode transform.Mode, options map[string]string) (*transform.Result, error)
}

type ResultStore interface {
	UploadResult(ref models.IdentityRef, data []byte, contentType string) (string, string, error)
}

type UsageLedger interface {
	Increment(ctx context.Context, ref models.IdentityRef) (int, error)
}

type UsageReporter interface {
	Enqueue(u billing.Usage)
}

// Caller is who is asking, as established by the identity middleware.
type Caller struct {
	UserID         uuid.UUID
	Authenticated  bool
	NetworkAddress string
}

type Submission struct {
	Image       []byte
	ContentType string
	Mode        transform.Mode
	Options     map[string]string
}

type SubmissionResult struct {
	Mode        transform.Mode
	ResultRef   string
	ContentType string
	ImagesUsed  int
}

type SubmissionService struct {
	identities  IdentityStore
	gate        *gate.Controller
	transformer Transformer
	results     ResultStore
	ledger      UsageLedger
	billing     UsageReporter
	log         *logrus.Entry
	now         func() time.Time
}

// NewSubmissionService wires the submission pipeline. results may be nil, in
// which case results are returned inline as data URIs.
func NewSubmissionService(
	identities IdentityStore,
	gateController *gate.Controller,
	transformer Transformer,
	results ResultStore,
	ledger UsageLedger,
	reporter UsageReporter,
	log *logrus.Entry,
) *SubmissionService {
	return &SubmissionService{
		identities:  identities,
		gate:        gateController,
		transformer: transformer,
		results:     results,
		ledger:      ledger,
		billing:     reporter,
		log:         log,
		now:         time.Now,
	}
}

// Resolve loads the caller's identity and current ledger state.
func (s *SubmissionService) Resolve(ctx context.Context, caller Caller) (models.Identity, error) {
	if caller.Authenticated {
		account, err := s.identities.GetAccount(ctx, caller.UserID)
		if errors.Is(err, supabase.ErrNotFound) {
			return &models.MissingAccount{ID: caller.UserID}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolve account: %w", err)
		}
		return account, nil
	}

	lead, err := s.identities.GetOrCreateLead(ctx, caller.NetworkAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve lead: %w", err)
	}
	return lead, nil
}

// Check resolves the caller and asks the gate. It has no side effects beyond
// lazily creating a lead row.
func (s *SubmissionService) Check(ctx context.Context, caller Caller) (models.Identity, gate.Outcome, error) {
	identity, err := s.Resolve(ctx, caller)
	if err != nil {
		return nil, "", err
	}
	return identity, s.gate.Decide(identity), nil
}

// Submit runs one image through the pipeline: gate, transform, store result,
// record usage, report metered usage.
//
// Refusals come back as *gate.RefusalError before any transformation work.
// Accounting failures after a successful transformation are logged and never
// returned; the caller keeps the result.
func (s *SubmissionService) Submit(ctx context.Context, caller Caller, sub Submission) (*SubmissionResult, error) {
	identity, outcome, err := s.Check(ctx, caller)
	if err != nil {
		return nil, err
	}

	ref := identity.Ref()
	metrics.RecordGateDecision(string(ref.Kind), string(outcome))
	log := s.log.WithField("identity", ref.String())

	if !outcome.Allowed() {
		log.WithField("reason", outcome).Debug("submission refused")
		return nil, gate.Refuse(outcome)
	}

	start := s.now()
	res, err := s.transformer.Transform(ctx, sub.Image, sub.ContentType, sub.Mode, sub.Options)
	metrics.RecordTransform(string(sub.Mode), s.now().Sub(start), err)
	if err != nil {
		log.WithError(err).WithField("mode", sub.Mode).Warn("transformation failed")
		return nil, fmt.Errorf("%w: %v", ErrTransformFailed, err)
	}

	resultRef := s.storeResult(log, ref, res)

	// Accounting must finish even if the client has gone away.
	acctCtx := context.WithoutCancel(ctx)
	used := priorUsage(identity) + 1
	n, err := s.ledger.Increment(acctCtx, ref)
	if err != nil {
		log.WithError(err).Error("usage increment failed, result already delivered")
	} else {
		used = n
	}

	if account, ok := identity.(*models.AuthenticatedAccount); ok && account.Metered() && used > account.ImagesQuota {
		s.reportOverage(log, account, used)
	}

	return &SubmissionResult{
		Mode:        sub.Mode,
		ResultRef:   resultRef,
		ContentType: res.ContentType,
		ImagesUsed:  used,
	}, nil
}

// reportOverage queues one metered usage report. Without a reporter the
// overage is logged at error level so it can be billed by hand.
func (s *SubmissionService) reportOverage(log *logrus.Entry, account *models.AuthenticatedAccount, used int) {
	if s.billing == nil {
		log.WithFields(logrus.Fields{
			"meter_item": account.MeteredBillingHandle.String,
			"sequence":   used,
		}).Error("metered usage not reported: billing disabled")
		return
	}
	s.billing.Enqueue(billing.Usage{
		AccountID:   account.ID.String(),
		MeterHandle: account.MeteredBillingHandle.String,
		Quantity:    1,
		Sequence:    used,
		At:          s.now(),
	})
}

func (s *SubmissionService) storeResult(log *logrus.Entry, ref models.IdentityRef, res *transform.Result) string {
	if s.results != nil {
		_, publicURL, err := s.results.UploadResult(ref, res.Data, res.ContentType)
		if err == nil {
			return publicURL
		}
		log.WithError(err).Warn("result upload failed, returning inline")
	}
	return "data:" + res.ContentType + ";base64," + base64.StdEncoding.EncodeToString(res.Data)
}

func priorUsage(identity models.Identity) int {
	switch id := identity.(type) {
	case *models.AuthenticatedAccount:
		return id.ImagesUsed
	case *models.AnonymousLead:
		return id.UsageCount
	}
	return 0
}
