// Package ledger records consumed images per identity.
//
// Increments go through an ordered list of strategies. The first strategy is
// expected to be race-free (a database-side atomic function); later ones are
// fallbacks used only when an earlier one provably did not write.
package ledger

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"syscall"

	"github.com/sirupsen/logrus"
	"image-studio-backend/internal/metrics"
	"image-studio-backend/internal/models"
)

var (
	// ErrUnavailable marks a strategy that cannot serve the request at all,
	// e.g. the atomic function is not installed.
	ErrUnavailable = errors.New("ledger strategy unavailable")

	// ErrRowNotFound means the identity has no ledger row. Falling back cannot help.
	ErrRowNotFound = errors.New("ledger row not found")

	errNoStrategies = errors.New("no ledger strategies configured")
)

type Incrementer interface {
	Name() string
	// Increment adds one consumed image for ref and returns the new count.
	Increment(ctx context.Context, ref models.IdentityRef) (int, error)
}

type Ledger struct {
	strategies []Incrementer
	log        *logrus.Entry
}

func New(log *logrus.Entry, strategies ...Incrementer) *Ledger {
	return &Ledger{strategies: strategies, log: log}
}

// Increment tries each strategy in order and returns the first success.
//
// It moves on to the next strategy only when the failed one cannot have
// written: the strategy is unavailable or the connection was never made.
// Any other error may have come after a commit, so retrying elsewhere could
// count the same image twice.
func (l *Ledger) Increment(ctx context.Context, ref models.IdentityRef) (int, error) {
	if len(l.strategies) == 0 {
		return 0, errNoStrategies
	}

	var errs []error
	for i, s := range l.strategies {
		n, err := s.Increment(ctx, ref)
		metrics.RecordLedgerIncrement(s.Name(), err)
		if err == nil {
			if i > 0 {
				l.log.WithFields(logrus.Fields{
					"identity": ref.String(),
					"strategy": s.Name(),
				}).Warn("usage recorded through fallback strategy")
			}
			return n, nil
		}

		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		entry := l.log.WithFields(logrus.Fields{
			"identity": ref.String(),
			"strategy": s.Name(),
		}).WithError(err)
		if !canFallBack(err) {
			if !errors.Is(err, ErrRowNotFound) {
				entry.Error("ledger strategy failed, outcome unknown")
			}
			break
		}
		entry.Warn("ledger strategy failed")
	}

	return 0, fmt.Errorf("increment %s: %w", ref, errors.Join(errs...))
}

func canFallBack(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

type target struct {
	table     string
	keyColumn string
	column    string
	function  string
}

func targetFor(ref models.IdentityRef) (target, error) {
	switch ref.Kind {
	case models.IdentityAccount:
		return target{table: "accounts", keyColumn: "id", column: "images_used", function: "increment_images_used"}, nil
	case models.IdentityLead:
		return target{table: "leads", keyColumn: "network_address", column: "usage_count", function: "increment_lead_usage"}, nil
	default:
		return target{}, fmt.Errorf("unknown identity kind %q", ref.Kind)
	}
}
