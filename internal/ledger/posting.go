package ledger

import (
	"context"
	"errors"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"pos-backend/internal/models"
)

type Outcome string

const (
	OutcomeCreated       Outcome = "created"
	OutcomeExisting      Outcome = "existing"
	OutcomeSkippedCredit Outcome = "skipped_credit"
)

// Source kinds used by the sale and expense workflows.
const (
	SourceSale    = "sale"
	SourceExpense = "expense"
)

type PostRequest struct {
	DayID           uint
	Kind            models.PostingKind
	SourceKind      string
	SourceID        uint
	PaymentMethodID uint
	Amount          decimal.Decimal
	Description     string
}

func (r PostRequest) validate() error {
	// Amounts are stored with two decimal places.
	if !r.Amount.IsPositive() || !r.Amount.Equal(r.Amount.Round(2)) {
		return ErrInvalidAmount
	}
	if !r.Kind.Valid() {
		return ErrInvalidKind
	}
	if r.Kind.RequiresSource() && (r.SourceKind == "" || r.SourceID == 0) {
		return ErrMissingSource
	}
	return nil
}

func (r PostRequest) key() PostingKey {
	return PostingKey{DayID: r.DayID, Kind: r.Kind, SourceKind: r.SourceKind, SourceID: r.SourceID}
}

// PostResult reports what Post did. Posting is nil only for
// OutcomeSkippedCredit. Day is the day as of the end of the call.
type PostResult struct {
	Outcome Outcome               `json:"outcome"`
	Posting *models.LedgerPosting `json:"posting,omitempty"`
	Day     *models.LedgerDay     `json:"-"`
}

// Post records a business event on a day at most once. Replaying an event
// that is already posted returns the stored posting, even after the day has
// closed. A closed day rejects any new event, credit included; credit
// payments on an open day are skipped without a write.
func (s *Service) Post(ctx context.Context, req PostRequest) (res PostResult, err error) {
	ctx, span := startSpan(ctx, "ledger.Post",
		attribute.Int64("ledger.day_id", int64(req.DayID)),
		attribute.String("ledger.kind", string(req.Kind)),
		attribute.String("ledger.source_kind", req.SourceKind),
		attribute.Int64("ledger.source_id", int64(req.SourceID)),
	)
	defer func() { endSpan(span, err) }()

	if err := req.validate(); err != nil {
		return PostResult{}, err
	}

	key := req.key()
	err = s.store.Tx(ctx, func(tx Tx) error {
		day, err := tx.LockDay(ctx, req.DayID)
		if err != nil {
			return err
		}

		existing, err := tx.FindPosting(ctx, key)
		if err == nil {
			res = PostResult{Outcome: OutcomeExisting, Posting: existing, Day: day}
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		if day.IsClosed() {
			return ErrDayClosed
		}

		mode, err := Classify(ctx, tx, req.PaymentMethodID)
		if err != nil {
			return err
		}
		if mode == models.PaymentModeCredit {
			res = PostResult{Outcome: OutcomeSkippedCredit, Day: day}
			return nil
		}

		posting := &models.LedgerPosting{
			DayID:           req.DayID,
			Kind:            req.Kind,
			SourceKind:      req.SourceKind,
			SourceID:        req.SourceID,
			PaymentMode:     mode,
			PaymentMethodID: req.PaymentMethodID,
			Amount:          req.Amount,
			Description:     req.Description,
			PostedAt:        s.now(),
		}
		if err := tx.CreatePosting(ctx, posting); err != nil {
			if !errors.Is(err, ErrDuplicate) {
				return err
			}
			existing, err := tx.FindPosting(ctx, key)
			if err != nil {
				return err
			}
			res = PostResult{Outcome: OutcomeExisting, Posting: existing, Day: day}
			return nil
		}

		if err := recompute(ctx, tx, day); err != nil {
			return err
		}
		res = PostResult{Outcome: OutcomeCreated, Posting: posting, Day: day}
		return nil
	})
	if err != nil {
		return PostResult{}, err
	}

	span.SetAttributes(attribute.String("ledger.outcome", string(res.Outcome)))
	if res.Outcome == OutcomeCreated {
		s.logger("Post").WithFields(logrus.Fields{
			"day_id":       req.DayID,
			"posting_id":   res.Posting.ID,
			"kind":         req.Kind,
			"payment_mode": res.Posting.PaymentMode,
			"amount":       req.Amount.StringFixed(2),
		}).Info("posting created")
	}
	return res, nil
}

// Reverse deletes a posting from an open day and recomputes the day. It
// returns the removed posting.
func (s *Service) Reverse(ctx context.Context, postingID uint, by string) (removed *models.LedgerPosting, err error) {
	ctx, span := startSpan(ctx, "ledger.Reverse", attribute.Int64("ledger.posting_id", int64(postingID)))
	defer func() { endSpan(span, err) }()

	err = s.store.Tx(ctx, func(tx Tx) error {
		p, err := tx.GetPosting(ctx, postingID)
		if err != nil {
			return err
		}
		day, err := tx.LockDay(ctx, p.DayID)
		if err != nil {
			return err
		}
		if day.IsClosed() {
			return ErrDayClosed
		}
		// Re-read under the lock, a concurrent reversal may have won.
		p, err = tx.GetPosting(ctx, postingID)
		if err != nil {
			return err
		}
		if err := tx.DeletePosting(ctx, p.ID); err != nil {
			return err
		}
		removed = p
		return recompute(ctx, tx, day)
	})
	if err != nil {
		return nil, err
	}

	s.logger("Reverse").WithFields(logrus.Fields{
		"day_id":     removed.DayID,
		"posting_id": removed.ID,
		"amount":     removed.Amount.StringFixed(2),
		"by":         by,
	}).Info("posting reversed")
	return removed, nil
}

func (s *Service) ListPostings(ctx context.Context, dayID uint) ([]models.LedgerPosting, error) {
	if _, err := s.store.GetDay(ctx, dayID); err != nil {
		return nil, err
	}
	return s.store.ListPostings(ctx, dayID)
}

// ListPostingsByKind returns postings of one kind across days, optionally
// bounded by day date. An empty kind matches every kind.
func (s *Service) ListPostingsByKind(ctx context.Context, kind models.PostingKind, from, to *civil.Date) ([]models.LedgerPosting, error) {
	if kind != "" && !kind.Valid() {
		return nil, ErrInvalidKind
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, ErrInvalidRange
	}
	return s.store.FilterPostings(ctx, PostingFilter{Kind: kind, From: from, To: to})
}
