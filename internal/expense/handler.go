package expense

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pos-backend/internal/audit"
	"pos-backend/internal/auth"
	"pos-backend/internal/config"
	"pos-backend/internal/ledger"
	"pos-backend/internal/models"
	"pos-backend/internal/validation"
)

const dateLayout = "2006-01-02"

type Deps struct {
	DB       *gorm.DB
	Recorder *ledger.Recorder
	Audit    audit.Writer
	Log      *logrus.Logger
}

type ExpenseCategoryResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type CategoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type CreateExpenseRequest struct {
	Title           string          `json:"title" validate:"required,max=150"`
	Date            string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
	CategoryID      uint            `json:"category_id" validate:"required"`
	PaymentMethodID uint            `json:"payment_method_id" validate:"required"`
	Amount          decimal.Decimal `json:"amount" validate:"gt=0,cents"`
	Description     string          `json:"description" validate:"max=255"`
}

type ExpenseResponse struct {
	ID              uint                 `json:"id"`
	Title           string               `json:"title"`
	CategoryID      uint                 `json:"category_id"`
	Category        string               `json:"category"`
	PaymentMethodID uint                 `json:"payment_method_id"`
	PaymentMethod   string               `json:"payment_method"`
	Date            string               `json:"date"`
	Amount          decimal.Decimal      `json:"amount"`
	Description     string               `json:"description"`
	Ledger          *ledger.LedgerStatus `json:"ledger,omitempty"`
}

type MonthlyExpenseSummaryItem struct {
	CategoryID   uint            `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Total        decimal.Decimal `json:"total"`
}

type MonthlyExpenseSummaryResponse struct {
	Year       int                         `json:"year"`
	Month      int                         `json:"month"`
	Items      []MonthlyExpenseSummaryItem `json:"items"`
	GrandTotal decimal.Decimal             `json:"grand_total"`
}

func toExpenseResponse(e *models.Expense) ExpenseResponse {
	return ExpenseResponse{
		ID:              e.ID,
		Title:           e.Title,
		CategoryID:      e.CategoryID,
		Category:        e.Category.Name,
		PaymentMethodID: e.PaymentMethodID,
		PaymentMethod:   e.PaymentMethod.Name,
		Date:            e.Date.Format(dateLayout),
		Amount:          e.Amount,
		Description:     e.Description,
	}
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

// -------------------------
// Expense categories
// -------------------------

// GET /api/expense-categories
func ListExpenseCategoriesHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var cats []models.ExpenseCategory
		if err := h.DB.WithContext(c.UserContext()).Order("name asc").Find(&cats).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list categories")
		}
		res := make([]ExpenseCategoryResponse, 0, len(cats))
		for _, cat := range cats {
			res = append(res, ExpenseCategoryResponse{ID: cat.ID, Name: cat.Name})
		}
		return c.JSON(res)
	}
}

// POST /api/expense-categories (admin)
func CreateExpenseCategoryHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CategoryRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		cat := models.ExpenseCategory{Name: strings.TrimSpace(body.Name)}
		if err := h.DB.WithContext(c.UserContext()).Create(&cat).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fiber.NewError(fiber.StatusConflict, "category already exists")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not create category")
		}
		return c.Status(fiber.StatusCreated).JSON(ExpenseCategoryResponse{ID: cat.ID, Name: cat.Name})
	}
}

// PUT /api/expense-categories/:id (admin)
func UpdateExpenseCategoryHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		var body CategoryRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}

		db := h.DB.WithContext(c.UserContext())
		var cat models.ExpenseCategory
		if err := db.First(&cat, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "category not found")
		}
		cat.Name = strings.TrimSpace(body.Name)
		if err := db.Save(&cat).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fiber.NewError(fiber.StatusConflict, "category already exists")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not update category")
		}
		return c.JSON(ExpenseCategoryResponse{ID: cat.ID, Name: cat.Name})
	}
}

// DELETE /api/expense-categories/:id (admin)
func DeleteExpenseCategoryHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		db := h.DB.WithContext(c.UserContext())

		var inUse int64
		if err := db.Model(&models.Expense{}).Where("category_id = ?", id).Count(&inUse).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not check category usage")
		}
		if inUse > 0 {
			return fiber.NewError(fiber.StatusConflict, "category has expenses")
		}
		if err := db.Delete(&models.ExpenseCategory{}, id).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not delete category")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// -------------------------
// Expenses
// -------------------------

// POST /api/expenses
// The expense is kept even when the daybook post fails; the outcome is
// reported under "ledger".
func CreateExpenseHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		var body CreateExpenseRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}

		date := time.Now()
		if body.Date != "" {
			if date, err = time.Parse(dateLayout, body.Date); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
			}
		}

		ctx := c.UserContext()
		db := h.DB.WithContext(ctx)

		var cat models.ExpenseCategory
		if err := db.First(&cat, body.CategoryID).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "category not found")
		}
		var pm models.PaymentMethod
		if err := db.First(&pm, body.PaymentMethodID).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "payment method not found")
		}

		exp := models.Expense{
			Title:           strings.TrimSpace(body.Title),
			CategoryID:      cat.ID,
			PaymentMethodID: pm.ID,
			Date:            date,
			Amount:          body.Amount,
			Description:     body.Description,
			CreatedBy:       user.UserID,
		}
		if err := db.Omit("Category", "PaymentMethod").Create(&exp).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not save expense")
		}
		exp.Category = cat
		exp.PaymentMethod = pm

		resp := toExpenseResponse(&exp)
		h.writeAudit(ctx, audit.LogOptions{
			UserID:      user.UserID,
			UserName:    user.Name,
			EntityType:  "expense",
			EntityID:    exp.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Expense added: %s - %s", cat.Name, exp.Amount.StringFixed(2)),
			After:       resp,
		})

		st := h.Recorder.RecordExpense(ctx, &exp, user.Name)
		resp.Ledger = &st
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

func (h *Deps) writeAudit(ctx context.Context, opts audit.LogOptions) {
	if err := h.Audit.WriteLog(ctx, opts); err != nil {
		config.LogError(h.Log, "expense", "CreateExpense", "audit log", opts.EntityID, err)
	}
}

// GET /api/expenses?from=...&to=...&category_id=...
func ListExpensesHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := h.DB.WithContext(c.UserContext()).
			Model(&models.Expense{}).
			Preload("Category").
			Preload("PaymentMethod")

		if fromStr := c.Query("from"); fromStr != "" {
			from, err := time.Parse(dateLayout, fromStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid from")
			}
			dbq = dbq.Where("date >= ?", from)
		}
		if toStr := c.Query("to"); toStr != "" {
			to, err := time.Parse(dateLayout, toStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid to")
			}
			dbq = dbq.Where("date < ?", to.AddDate(0, 0, 1))
		}
		if catStr := c.Query("category_id"); catStr != "" {
			cid, err := strconv.ParseUint(catStr, 10, 64)
			if err != nil || cid == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "invalid category_id")
			}
			dbq = dbq.Where("category_id = ?", cid)
		}

		var rows []models.Expense
		if err := dbq.Order("date asc, id asc").Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list expenses")
		}
		resp := make([]ExpenseResponse, 0, len(rows))
		for i := range rows {
			resp = append(resp, toExpenseResponse(&rows[i]))
		}
		return c.JSON(resp)
	}
}

// GET /api/expenses/summary/monthly?year=2025&month=12
func MonthlyExpenseSummaryHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		year, month, err := parseYearMonth(c.Query("year"), c.Query("month"))
		if err != nil {
			return err
		}
		firstDay := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		nextMonth := firstDay.AddDate(0, 1, 0)

		type row struct {
			CategoryID   uint            `gorm:"column:category_id"`
			CategoryName string          `gorm:"column:category_name"`
			Total        decimal.Decimal `gorm:"column:total"`
		}
		var rows []row
		err = h.DB.WithContext(c.UserContext()).
			Model(&models.Expense{}).
			Select("expenses.category_id, expense_categories.name AS category_name, SUM(expenses.amount) AS total").
			Joins("JOIN expense_categories ON expense_categories.id = expenses.category_id").
			Where("expenses.date >= ? AND expenses.date < ?", firstDay, nextMonth).
			Group("expenses.category_id, expense_categories.name").
			Order("expense_categories.name").
			Scan(&rows).Error
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not compute summary")
		}

		resp := MonthlyExpenseSummaryResponse{
			Year:       year,
			Month:      month,
			Items:      make([]MonthlyExpenseSummaryItem, 0, len(rows)),
			GrandTotal: decimal.Zero,
		}
		for _, r := range rows {
			resp.Items = append(resp.Items, MonthlyExpenseSummaryItem{
				CategoryID:   r.CategoryID,
				CategoryName: r.CategoryName,
				Total:        r.Total,
			})
			resp.GrandTotal = resp.GrandTotal.Add(r.Total)
		}
		return c.JSON(resp)
	}
}

func parseYearMonth(yearStr, monthStr string) (int, int, error) {
	if yearStr == "" || monthStr == "" {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "year and month are required")
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil || year < 2000 || year > 9999 {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "invalid year")
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "invalid month")
	}
	return year, month, nil
}
