package ledger

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/sirupsen/logrus"

	"pos-backend/internal/config"
	"pos-backend/internal/models"
)

// LedgerStatus is attached to sale and expense responses so the caller can
// see whether the event reached the daybook.
type LedgerStatus struct {
	Outcome   Outcome `json:"outcome,omitempty"`
	DayID     uint    `json:"day_id,omitempty"`
	PostingID uint    `json:"posting_id,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// Recorder posts sales onto the day they were paid and expenses onto today. A failure is logged
// and reported, never returned, so the parent record stands on its own.
type Recorder struct {
	svc *Service
	log *logrus.Logger
}

func NewRecorder(svc *Service, log *logrus.Logger) *Recorder {
	return &Recorder{svc: svc, log: log}
}

// RecordSale posts a paid sale on the date of PaidAt, so a replay on a later
// day finds the original posting. A sale without PaidAt goes on today.
func (r *Recorder) RecordSale(ctx context.Context, sale *models.Sale, by string) LedgerStatus {
	date := r.svc.TodayDate()
	if sale.PaidAt != nil {
		date = r.svc.DateOf(*sale.PaidAt)
	}
	return r.record(ctx, "RecordSale", date, by, PostRequest{
		Kind:            models.PostingKindSale,
		SourceKind:      SourceSale,
		SourceID:        sale.ID,
		PaymentMethodID: sale.PaymentMethodID,
		Amount:          sale.Total,
		Description:     saleDescription(sale),
	})
}

func (r *Recorder) RecordExpense(ctx context.Context, expense *models.Expense, by string) LedgerStatus {
	return r.record(ctx, "RecordExpense", r.svc.TodayDate(), by, PostRequest{
		Kind:            models.PostingKindExpense,
		SourceKind:      SourceExpense,
		SourceID:        expense.ID,
		PaymentMethodID: expense.PaymentMethodID,
		Amount:          expense.Amount,
		Description:     expense.Title,
	})
}

func (r *Recorder) record(ctx context.Context, funcName string, date civil.Date, by string, req PostRequest) LedgerStatus {
	fail := func(stage string, err error) LedgerStatus {
		config.LogError(r.log, "ledger", funcName, stage, logrus.Fields{
			"source_kind": req.SourceKind,
			"source_id":   req.SourceID,
			"amount":      req.Amount.StringFixed(2),
		}, err)
		return LedgerStatus{Error: err.Error()}
	}

	day, err := r.svc.ResolveDay(ctx, date, by)
	if err != nil {
		return fail("resolve day", err)
	}
	req.DayID = day.ID
	res, err := r.svc.Post(ctx, req)
	if err != nil {
		st := fail("post", err)
		st.DayID = day.ID
		return st
	}

	st := LedgerStatus{Outcome: res.Outcome, DayID: day.ID}
	if res.Posting != nil {
		st.PostingID = res.Posting.ID
	}
	return st
}

func saleDescription(sale *models.Sale) string {
	if sale.InvoiceNo != "" {
		return fmt.Sprintf("Sale %s", sale.InvoiceNo)
	}
	return fmt.Sprintf("Sale #%d", sale.ID)
}
