// Package daybook is the HTTP surface of the ledger engine.
package daybook

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"pos-backend/internal/audit"
	"pos-backend/internal/auth"
	"pos-backend/internal/config"
	"pos-backend/internal/ledger"
	"pos-backend/internal/models"
	"pos-backend/internal/validation"
)

const defaultRangeDays = 7

type Deps struct {
	Ledger *ledger.Service
	Audit  audit.Writer
	Log    *logrus.Logger
}

// Register mounts the ledger routes on r. Static paths come before /:date.
func Register(r fiber.Router, h *Deps) {
	admin := auth.RequireRole(models.RoleAdmin)
	staff := auth.RequireRole(models.RoleAdmin, models.RoleCashier)

	r.Get("/today", staff, TodayHandler(h))
	r.Get("/days", staff, ListDaysHandler(h))
	r.Post("/days", admin, OpenDayHandler(h))
	r.Get("/days/:id/check", admin, CheckDayHandler(h))
	r.Delete("/days/:id", admin, PurgeDayHandler(h))
	r.Get("/summary", staff, SummaryRangeHandler(h))
	r.Get("/export", admin, ExportHandler(h))
	r.Get("/postings", staff, ListPostingsByKindHandler(h))
	r.Delete("/postings/:id", admin, ReversePostingHandler(h))
	r.Get("/:date", staff, GetDayByDateHandler(h))
	r.Post("/:date/close", staff, CloseDayHandler(h))
	r.Get("/:date/postings", staff, ListPostingsHandler(h))
}

type DayResponse struct {
	ID                   uint                   `json:"id"`
	Date                 string                 `json:"date"`
	Status               models.LedgerDayStatus `json:"status"`
	OpeningCashBalance   decimal.Decimal        `json:"opening_cash_balance"`
	OpeningOnlineBalance decimal.Decimal        `json:"opening_online_balance"`
	TotalCashSales       decimal.Decimal        `json:"total_cash_sales"`
	TotalOnlineSales     decimal.Decimal        `json:"total_online_sales"`
	TotalCashExpenses    decimal.Decimal        `json:"total_cash_expenses"`
	TotalOnlineExpenses  decimal.Decimal        `json:"total_online_expenses"`
	TotalCashBalance     decimal.Decimal        `json:"total_cash_balance"`
	TotalOnlineBalance   decimal.Decimal        `json:"total_online_balance"`
	ClosingCashBalance   *decimal.Decimal       `json:"closing_cash_balance"`
	ClosingOnlineBalance *decimal.Decimal       `json:"closing_online_balance"`
	Notes                string                 `json:"notes"`
	OpenedAt             time.Time              `json:"opened_at"`
	OpenedBy             string                 `json:"opened_by"`
	ClosedAt             *time.Time             `json:"closed_at"`
	ClosedBy             *string                `json:"closed_by"`
}

func toDayResponse(d *models.LedgerDay) *DayResponse {
	if d == nil {
		return nil
	}
	return &DayResponse{
		ID:                   d.ID,
		Date:                 d.CivilDate().String(),
		Status:               d.Status,
		OpeningCashBalance:   d.OpeningCashBalance,
		OpeningOnlineBalance: d.OpeningOnlineBalance,
		TotalCashSales:       d.TotalCashSales,
		TotalOnlineSales:     d.TotalOnlineSales,
		TotalCashExpenses:    d.TotalCashExpenses,
		TotalOnlineExpenses:  d.TotalOnlineExpenses,
		TotalCashBalance:     d.TotalCashBalance,
		TotalOnlineBalance:   d.TotalOnlineBalance,
		ClosingCashBalance:   d.ClosingCashBalance,
		ClosingOnlineBalance: d.ClosingOnlineBalance,
		Notes:                d.Notes,
		OpenedAt:             d.OpenedAt,
		OpenedBy:             d.OpenedBy,
		ClosedAt:             d.ClosedAt,
		ClosedBy:             d.ClosedBy,
	}
}

type PostingResponse struct {
	ID              uint               `json:"id"`
	DayID           uint               `json:"day_id"`
	Kind            models.PostingKind `json:"kind"`
	PaymentMode     models.PaymentMode `json:"payment_mode"`
	SourceKind      string             `json:"source_kind"`
	SourceID        uint               `json:"source_id"`
	PaymentMethodID uint               `json:"payment_method_id"`
	Amount          decimal.Decimal    `json:"amount"`
	Description     string             `json:"description"`
	PostedAt        time.Time          `json:"posted_at"`
}

func toPostingResponses(ps []models.LedgerPosting) []PostingResponse {
	out := make([]PostingResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, PostingResponse{
			ID:              p.ID,
			DayID:           p.DayID,
			Kind:            p.Kind,
			PaymentMode:     p.PaymentMode,
			SourceKind:      p.SourceKind,
			SourceID:        p.SourceID,
			PaymentMethodID: p.PaymentMethodID,
			Amount:          p.Amount,
			Description:     p.Description,
			PostedAt:        p.PostedAt,
		})
	}
	return out
}

type DayWithSummary struct {
	Day     *DayResponse       `json:"day"`
	Summary *ledger.DaySummary `json:"summary"`
}

type OpenDayRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

type CloseDayRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// fail turns engine errors into HTTP errors and logs the unexpected ones.
func (h *Deps) fail(funcName string, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe
	}
	he := ledger.HTTPError(err)
	if he.Code == fiber.StatusInternalServerError {
		config.LogError(h.Log, "daybook", funcName, "ledger call", nil, err)
	}
	return he
}

func (h *Deps) writeAudit(ctx context.Context, funcName string, opts audit.LogOptions) {
	if err := h.Audit.WriteLog(ctx, opts); err != nil {
		config.LogError(h.Log, "daybook", funcName, "audit log", opts.Description, err)
	}
}

func parseDate(s, name string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("%s must be YYYY-MM-DD", name))
	}
	return d, nil
}

func optionalDate(c *fiber.Ctx, name string) (*civil.Date, error) {
	s := c.Query(name)
	if s == "" {
		return nil, nil
	}
	d, err := parseDate(s, name)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

// GET /api/ledger/today
func TodayHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		ctx := c.UserContext()
		day, err := h.Ledger.Today(ctx, user.Name)
		if err != nil {
			return h.fail("Today", err)
		}
		sum, err := h.Ledger.Summary(ctx, day.CivilDate())
		if err != nil {
			return h.fail("Today", err)
		}
		return c.JSON(DayWithSummary{Day: toDayResponse(day), Summary: sum})
	}
}

// GET /api/ledger/:date
func GetDayByDateHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		date, err := parseDate(c.Params("date"), "date")
		if err != nil {
			return err
		}
		ctx := c.UserContext()
		day, err := h.Ledger.GetDayByDate(ctx, date)
		if err != nil && !errors.Is(err, ledger.ErrNotFound) {
			return h.fail("GetByDate", err)
		}
		sum, err := h.Ledger.Summary(ctx, date)
		if err != nil {
			return h.fail("GetByDate", err)
		}
		return c.JSON(DayWithSummary{Day: toDayResponse(day), Summary: sum})
	}
}

// POST /api/ledger/:date/close
func CloseDayHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		date, err := parseDate(c.Params("date"), "date")
		if err != nil {
			return err
		}
		var body CloseDayRequest
		if len(c.Body()) > 0 {
			if err := validation.ParseBody(c, &body); err != nil {
				return err
			}
		}

		ctx := c.UserContext()
		day, err := h.Ledger.GetDayByDate(ctx, date)
		if err != nil {
			return h.fail("CloseDay", err)
		}
		before := toDayResponse(day)
		closed, err := h.Ledger.CloseDay(ctx, day.ID, user.Name, body.Notes)
		if err != nil {
			return h.fail("CloseDay", err)
		}
		after := toDayResponse(closed)

		h.writeAudit(ctx, "CloseDay", audit.LogOptions{
			UserID:      user.UserID,
			UserName:    user.Name,
			EntityType:  "ledger_day",
			EntityID:    closed.ID,
			Action:      models.AuditActionClose,
			Description: fmt.Sprintf("Closed ledger day %s", after.Date),
			Before:      before,
			After:       after,
		})
		return c.JSON(after)
	}
}

// GET /api/ledger/:date/postings
func ListPostingsHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		date, err := parseDate(c.Params("date"), "date")
		if err != nil {
			return err
		}
		ctx := c.UserContext()
		day, err := h.Ledger.GetDayByDate(ctx, date)
		if err != nil {
			return h.fail("ListPostings", err)
		}
		postings, err := h.Ledger.ListPostings(ctx, day.ID)
		if err != nil {
			return h.fail("ListPostings", err)
		}
		return c.JSON(toPostingResponses(postings))
	}
}

// GET /api/ledger/days?status=closed&from=2025-01-01&to=2025-01-31
func ListDaysHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, err := optionalDate(c, "from")
		if err != nil {
			return err
		}
		to, err := optionalDate(c, "to")
		if err != nil {
			return err
		}
		days, err := h.Ledger.ListDays(c.UserContext(), ledger.DayFilter{
			Status: models.LedgerDayStatus(c.Query("status")),
			From:   from,
			To:     to,
		})
		if err != nil {
			return h.fail("ListDays", err)
		}
		resp := make([]*DayResponse, 0, len(days))
		for i := range days {
			resp = append(resp, toDayResponse(&days[i]))
		}
		return c.JSON(resp)
	}
}

// POST /api/ledger/days
func OpenDayHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		var body OpenDayRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		date, err := parseDate(body.Date, "date")
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		day, err := h.Ledger.OpenDay(ctx, date, user.Name)
		if err != nil {
			return h.fail("OpenDay", err)
		}
		resp := toDayResponse(day)
		h.writeAudit(ctx, "OpenDay", audit.LogOptions{
			UserID:      user.UserID,
			UserName:    user.Name,
			EntityType:  "ledger_day",
			EntityID:    day.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Opened ledger day %s", resp.Date),
			After:       resp,
		})
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// GET /api/ledger/days/:id/check
func CheckDayHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		report, err := h.Ledger.CheckDay(c.UserContext(), id)
		if err != nil {
			return h.fail("CheckDay", err)
		}
		return c.JSON(report)
	}
}

// DELETE /api/ledger/days/:id
func PurgeDayHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}
		ctx := c.UserContext()
		day, err := h.Ledger.PurgeDay(ctx, id)
		if err != nil {
			return h.fail("PurgeDay", err)
		}
		before := toDayResponse(day)
		h.writeAudit(ctx, "PurgeDay", audit.LogOptions{
			UserID:      user.UserID,
			UserName:    user.Name,
			EntityType:  "ledger_day",
			EntityID:    day.ID,
			Action:      models.AuditActionDelete,
			Description: fmt.Sprintf("Purged ledger day %s", before.Date),
			Before:      before,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}

func (h *Deps) rangeParams(c *fiber.Ctx) (civil.Date, civil.Date, error) {
	to := h.Ledger.TodayDate()
	if s := c.Query("to"); s != "" {
		d, err := parseDate(s, "to")
		if err != nil {
			return civil.Date{}, civil.Date{}, err
		}
		to = d
	}
	from := to.AddDays(-(defaultRangeDays - 1))
	if s := c.Query("from"); s != "" {
		d, err := parseDate(s, "from")
		if err != nil {
			return civil.Date{}, civil.Date{}, err
		}
		from = d
	}
	return from, to, nil
}

// GET /api/ledger/summary?from=2025-01-01&to=2025-01-07
func SummaryRangeHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := h.rangeParams(c)
		if err != nil {
			return err
		}
		rng, err := h.Ledger.SummaryRange(c.UserContext(), from, to)
		if err != nil {
			return h.fail("SummaryRange", err)
		}
		return c.JSON(rng)
	}
}

// GET /api/ledger/export?from=2025-01-01&to=2025-01-31
func ExportHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, to, err := h.rangeParams(c)
		if err != nil {
			return err
		}
		wb, err := h.Ledger.Export(c.UserContext(), from, to)
		if err != nil {
			return h.fail("Export", err)
		}
		defer wb.Close()

		buf, err := wb.WriteToBuffer()
		if err != nil {
			return h.fail("Export", err)
		}
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=daybook_%s_%s.xlsx", from, to))
		return c.Send(buf.Bytes())
	}
}

// GET /api/ledger/postings?kind=expense&from=2025-01-01&to=2025-01-31
func ListPostingsByKindHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		from, err := optionalDate(c, "from")
		if err != nil {
			return err
		}
		to, err := optionalDate(c, "to")
		if err != nil {
			return err
		}
		postings, err := h.Ledger.ListPostingsByKind(c.UserContext(), models.PostingKind(c.Query("kind")), from, to)
		if err != nil {
			return h.fail("ListPostingsByKind", err)
		}
		return c.JSON(toPostingResponses(postings))
	}
}

// DELETE /api/ledger/postings/:id
func ReversePostingHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}
		ctx := c.UserContext()
		removed, err := h.Ledger.Reverse(ctx, id, user.Name)
		if err != nil {
			return h.fail("Reverse", err)
		}
		before := toPostingResponses([]models.LedgerPosting{*removed})[0]
		h.writeAudit(ctx, "Reverse", audit.LogOptions{
			UserID:      user.UserID,
			UserName:    user.Name,
			EntityType:  "ledger_posting",
			EntityID:    removed.ID,
			Action:      models.AuditActionReverse,
			Description: fmt.Sprintf("Reversed %s posting of %s", removed.Kind, removed.Amount.StringFixed(2)),
			Before:      before,
		})
		return c.JSON(before)
	}
}
