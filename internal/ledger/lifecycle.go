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

// ResolveDay returns the day for date, creating it when missing. A new day
// opens with the closing balances of the most recent closed day before it.
// Concurrent callers for the same date all get the same row.
func (s *Service) ResolveDay(ctx context.Context, date civil.Date, openedBy string) (day *models.LedgerDay, err error) {
	ctx, span := startSpan(ctx, "ledger.ResolveDay", attribute.String("ledger.date", date.String()))
	defer func() { endSpan(span, err) }()

	day, err = s.store.FindDayByDate(ctx, date)
	if err == nil {
		return day, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	created := false
	err = s.store.Tx(ctx, func(tx Tx) error {
		existing, err := tx.FindDayByDate(ctx, date)
		if err == nil {
			day = existing
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		nd, err := s.createDay(ctx, tx, date, openedBy)
		if errors.Is(err, ErrDuplicate) {
			day, err = tx.FindDayByDate(ctx, date)
			return err
		}
		if err != nil {
			return err
		}
		day, created = nd, true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.logDayOpened(day)
	}
	return day, nil
}

// Today resolves the day for the current date in the service location.
func (s *Service) Today(ctx context.Context, openedBy string) (*models.LedgerDay, error) {
	return s.ResolveDay(ctx, s.TodayDate(), openedBy)
}

// OpenDay creates the day for date ahead of any activity. It fails with
// ErrDayExists when the day is already there.
func (s *Service) OpenDay(ctx context.Context, date civil.Date, openedBy string) (day *models.LedgerDay, err error) {
	ctx, span := startSpan(ctx, "ledger.OpenDay", attribute.String("ledger.date", date.String()))
	defer func() { endSpan(span, err) }()

	err = s.store.Tx(ctx, func(tx Tx) error {
		_, err := tx.FindDayByDate(ctx, date)
		if err == nil {
			return ErrDayExists
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		day, err = s.createDay(ctx, tx, date, openedBy)
		if errors.Is(err, ErrDuplicate) {
			return ErrDayExists
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logDayOpened(day)
	return day, nil
}

func (s *Service) createDay(ctx context.Context, tx Tx, date civil.Date, openedBy string) (*models.LedgerDay, error) {
	openCash, openOnline := decimal.Zero, decimal.Zero
	prev, err := tx.LatestClosedDayBefore(ctx, date)
	switch {
	case err == nil:
		openCash, openOnline = closingBalances(prev)
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	day := &models.LedgerDay{
		Date:                 dateValue(date),
		OpeningCashBalance:   openCash,
		OpeningOnlineBalance: openOnline,
		TotalCashBalance:     openCash,
		TotalOnlineBalance:   openOnline,
		Status:               models.LedgerDayOpen,
		OpenedAt:             s.now(),
		OpenedBy:             openedBy,
	}
	if err := tx.CreateDay(ctx, day); err != nil {
		return nil, err
	}
	return day, nil
}

// closingBalances falls back to the running balances for a closed day that
// somehow lacks a snapshot.
func closingBalances(d *models.LedgerDay) (cash, online decimal.Decimal) {
	cash, online = d.TotalCashBalance, d.TotalOnlineBalance
	if d.ClosingCashBalance != nil {
		cash = *d.ClosingCashBalance
	}
	if d.ClosingOnlineBalance != nil {
		online = *d.ClosingOnlineBalance
	}
	return cash, online
}

func (s *Service) logDayOpened(day *models.LedgerDay) {
	s.logger("OpenDay").WithFields(logrus.Fields{
		"day_id":         day.ID,
		"date":           day.CivilDate().String(),
		"opening_cash":   day.OpeningCashBalance.StringFixed(2),
		"opening_online": day.OpeningOnlineBalance.StringFixed(2),
		"opened_by":      day.OpenedBy,
	}).Info("ledger day opened")
}

// CloseDay recomputes the day one last time and freezes its running
// balances as the closing balances.
func (s *Service) CloseDay(ctx context.Context, dayID uint, closedBy, notes string) (day *models.LedgerDay, err error) {
	ctx, span := startSpan(ctx, "ledger.CloseDay", attribute.Int64("ledger.day_id", int64(dayID)))
	defer func() { endSpan(span, err) }()

	release, gateErr := s.gate.Acquire(ctx, dayID)
	if gateErr != nil {
		s.logger("CloseDay").WithError(gateErr).WithField("day_id", dayID).Warn("close gate unavailable, relying on row lock")
	} else {
		defer release()
	}

	err = s.store.Tx(ctx, func(tx Tx) error {
		d, err := tx.LockDay(ctx, dayID)
		if err != nil {
			return err
		}
		if d.IsClosed() {
			return ErrAlreadyClosed
		}
		totals, err := tx.SumPostings(ctx, d.ID)
		if err != nil {
			return err
		}
		applyTotals(d, tallyOf(totals))

		closingCash, closingOnline := d.TotalCashBalance, d.TotalOnlineBalance
		closedAt := s.now()
		d.ClosingCashBalance = &closingCash
		d.ClosingOnlineBalance = &closingOnline
		d.Status = models.LedgerDayClosed
		d.ClosedAt = &closedAt
		d.ClosedBy = &closedBy
		if notes != "" {
			d.Notes = notes
		}
		if err := tx.SaveDay(ctx, d); err != nil {
			return err
		}
		day = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger("CloseDay").WithFields(logrus.Fields{
		"day_id":         day.ID,
		"date":           day.CivilDate().String(),
		"closing_cash":   day.ClosingCashBalance.StringFixed(2),
		"closing_online": day.ClosingOnlineBalance.StringFixed(2),
		"closed_by":      closedBy,
	}).Info("ledger day closed")
	return day, nil
}

// PurgeDay deletes a day and every posting on it. It returns the deleted day.
func (s *Service) PurgeDay(ctx context.Context, dayID uint) (day *models.LedgerDay, err error) {
	ctx, span := startSpan(ctx, "ledger.PurgeDay", attribute.Int64("ledger.day_id", int64(dayID)))
	defer func() { endSpan(span, err) }()

	err = s.store.Tx(ctx, func(tx Tx) error {
		d, err := tx.LockDay(ctx, dayID)
		if err != nil {
			return err
		}
		if err := tx.DeleteDay(ctx, d.ID); err != nil {
			return err
		}
		day = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	date := day.CivilDate()
	if err := s.cache.Invalidate(ctx, date); err != nil {
		s.logger("PurgeDay").WithError(err).WithField("date", date.String()).Warn("summary cache invalidation failed")
	}
	s.logger("PurgeDay").WithFields(logrus.Fields{"day_id": day.ID, "date": date.String()}).Info("ledger day purged")
	return day, nil
}

func (s *Service) GetDay(ctx context.Context, id uint) (*models.LedgerDay, error) {
	return s.store.GetDay(ctx, id)
}

func (s *Service) GetDayByDate(ctx context.Context, date civil.Date) (*models.LedgerDay, error) {
	return s.store.FindDayByDate(ctx, date)
}

// ListDays returns days newest first.
func (s *Service) ListDays(ctx context.Context, filter DayFilter) ([]models.LedgerDay, error) {
	if filter.Status != "" && filter.Status != models.LedgerDayOpen && filter.Status != models.LedgerDayClosed {
		return nil, ErrInvalidStatus
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, ErrInvalidRange
	}
	return s.store.ListDays(ctx, filter)
}
