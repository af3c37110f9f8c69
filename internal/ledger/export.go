package ledger

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/xuri/excelize/v2"
)

const (
	daysSheet     = "Daybook"
	postingsSheet = "Postings"
)

// Export writes the daily summaries and postings of [from, to] into a
// workbook with one sheet each.
func (s *Service) Export(ctx context.Context, from, to civil.Date) (*excelize.File, error) {
	rng, err := s.SummaryRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	postings, err := s.store.FilterPostings(ctx, PostingFilter{From: &from, To: &to})
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", daysSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(postingsSheet); err != nil {
		return nil, err
	}

	header := []any{"Date", "Status", "Opening Cash", "Opening Online", "Cash Sales", "Online Sales",
		"Sales Count", "Cash Expenses", "Online Expenses", "Expense Count", "Net Cash", "Net Online", "Total Net"}
	if err := f.SetSheetRow(daysSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, d := range rng.Days {
		row := []any{
			d.Date.String(), string(d.Status),
			d.Opening.Cash.InexactFloat64(), d.Opening.Online.InexactFloat64(),
			d.Sales.Cash.InexactFloat64(), d.Sales.Online.InexactFloat64(), d.Sales.Count,
			d.Expenses.Cash.InexactFloat64(), d.Expenses.Online.InexactFloat64(), d.Expenses.Count,
			d.NetCash.InexactFloat64(), d.NetOnline.InexactFloat64(), d.TotalNet.InexactFloat64(),
		}
		if err := f.SetSheetRow(daysSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}
	total := []any{"Total", "",
		rng.Opening.Cash.InexactFloat64(), rng.Opening.Online.InexactFloat64(),
		rng.Sales.Cash.InexactFloat64(), rng.Sales.Online.InexactFloat64(), rng.Sales.Count,
		rng.Expenses.Cash.InexactFloat64(), rng.Expenses.Online.InexactFloat64(), rng.Expenses.Count,
		rng.NetCash.InexactFloat64(), rng.NetOnline.InexactFloat64(), rng.TotalNet.InexactFloat64(),
	}
	if err := f.SetSheetRow(daysSheet, fmt.Sprintf("A%d", len(rng.Days)+2), &total); err != nil {
		return nil, err
	}

	pheader := []any{"ID", "Day ID", "Kind", "Payment Mode", "Source", "Source ID", "Amount", "Description", "Posted At"}
	if err := f.SetSheetRow(postingsSheet, "A1", &pheader); err != nil {
		return nil, err
	}
	for i, p := range postings {
		row := []any{
			p.ID, p.DayID, string(p.Kind), string(p.PaymentMode), p.SourceKind, p.SourceID,
			p.Amount.InexactFloat64(), p.Description, p.PostedAt.In(s.loc).Format("2006-01-02 15:04:05"),
		}
		if err := f.SetSheetRow(postingsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, err
		}
	}
	return f, nil
}
