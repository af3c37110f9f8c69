package sales

import (
	"context"
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

func Register(r fiber.Router, h *Deps) {
	r.Get("/", ListSalesHandler(h))
	r.Post("/", CreateSaleHandler(h))
	r.Get("/:id", GetSaleHandler(h))
	r.Put("/:id/pay", PaySaleHandler(h))
}

type CreateSaleRequest struct {
	TableLabel      string          `json:"table_label" validate:"max=50"`
	PaymentMethodID uint            `json:"payment_method_id" validate:"required"`
	PaymentStatus   string          `json:"payment_status" validate:"omitempty,oneof=pending paid"`
	SubTotal        decimal.Decimal `json:"sub_total" validate:"gte=0,cents"`
	Total           decimal.Decimal `json:"total" validate:"gt=0,cents"`
}

type PaySaleRequest struct {
	PaymentMethodID *uint `json:"payment_method_id"`
}

type SaleResponse struct {
	ID              uint                 `json:"id"`
	InvoiceNo       string               `json:"invoice_no"`
	TableLabel      string               `json:"table_label"`
	PaymentMethodID uint                 `json:"payment_method_id"`
	PaymentMethod   string               `json:"payment_method"`
	PaymentStatus   models.PaymentStatus `json:"payment_status"`
	SubTotal        decimal.Decimal      `json:"sub_total"`
	Total           decimal.Decimal      `json:"total"`
	PaidAt          *time.Time           `json:"paid_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	Ledger          *ledger.LedgerStatus `json:"ledger,omitempty"`
}

func toSaleResponse(s *models.Sale) SaleResponse {
	return SaleResponse{
		ID:              s.ID,
		InvoiceNo:       s.InvoiceNo,
		TableLabel:      s.TableLabel,
		PaymentMethodID: s.PaymentMethodID,
		PaymentMethod:   s.PaymentMethod.Name,
		PaymentStatus:   s.PaymentStatus,
		SubTotal:        s.SubTotal,
		Total:           s.Total,
		PaidAt:          s.PaidAt,
		CreatedAt:       s.CreatedAt,
	}
}

func invoiceNumber(id uint) string {
	return fmt.Sprintf("INV %03d", id)
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

// POST /api/sales
// A sale created as paid is posted to today's daybook right away.
func CreateSaleHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		var body CreateSaleRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		if body.SubTotal.IsZero() {
			body.SubTotal = body.Total
		}

		ctx := c.UserContext()
		var pm models.PaymentMethod
		if err := h.DB.WithContext(ctx).First(&pm, body.PaymentMethodID).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "payment method not found")
		}

		sale := models.Sale{
			TableLabel:      strings.TrimSpace(body.TableLabel),
			PaymentMethodID: pm.ID,
			PaymentStatus:   models.PaymentStatusPending,
			SubTotal:        body.SubTotal,
			Total:           body.Total,
			CreatedBy:       user.UserID,
		}
		if body.PaymentStatus == string(models.PaymentStatusPaid) {
			now := time.Now()
			sale.PaymentStatus = models.PaymentStatusPaid
			sale.PaidAt = &now
		}

		err = h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Omit("PaymentMethod").Create(&sale).Error; err != nil {
				return err
			}
			sale.InvoiceNo = invoiceNumber(sale.ID)
			return tx.Model(&sale).Update("invoice_no", sale.InvoiceNo).Error
		})
		if err != nil {
			config.LogError(h.Log, "sales", "CreateSale", "create sale", body, err)
			return fiber.NewError(fiber.StatusInternalServerError, "could not save sale")
		}
		sale.PaymentMethod = pm

		resp := toSaleResponse(&sale)
		h.writeAudit(ctx, "CreateSale", audit.LogOptions{
			UserID:      user.UserID,
			UserName:    user.Name,
			EntityType:  "sale",
			EntityID:    sale.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Sale created: %s - %s", sale.InvoiceNo, sale.Total.StringFixed(2)),
			After:       resp,
		})

		if sale.PaymentStatus == models.PaymentStatusPaid {
			st := h.Recorder.RecordSale(ctx, &sale, user.Name)
			resp.Ledger = &st
		}
		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}

// PUT /api/sales/:id/pay
// Only the pending to paid transition posts to the daybook. Paying an
// already paid sale returns it unchanged; asking for another payment method
// on a paid sale is a conflict.
func PaySaleHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := auth.CurrentUser(c)
		if err != nil {
			return err
		}
		id, err := parseID(c)
		if err != nil {
			return err
		}
		var body PaySaleRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
			}
		}

		ctx := c.UserContext()
		db := h.DB.WithContext(ctx)

		var sale models.Sale
		if err := db.Preload("PaymentMethod").First(&sale, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "sale not found")
		}
		if sale.PaymentStatus == models.PaymentStatusPaid {
			return alreadyPaid(c, &sale, body)
		}

		before := toSaleResponse(&sale)
		if body.PaymentMethodID != nil && *body.PaymentMethodID != sale.PaymentMethodID {
			var pm models.PaymentMethod
			if err := db.First(&pm, *body.PaymentMethodID).Error; err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "payment method not found")
			}
			sale.PaymentMethodID = pm.ID
			sale.PaymentMethod = pm
		}
		now := time.Now()
		sale.PaymentStatus = models.PaymentStatusPaid
		sale.PaidAt = &now

		res := db.Model(&models.Sale{}).
			Where("id = ? AND payment_status <> ?", sale.ID, models.PaymentStatusPaid).
			Updates(map[string]any{
				"payment_method_id": sale.PaymentMethodID,
				"payment_status":    sale.PaymentStatus,
				"paid_at":           sale.PaidAt,
			})
		if res.Error != nil {
			config.LogError(h.Log, "sales", "PaySale", "mark paid", sale.ID, res.Error)
			return fiber.NewError(fiber.StatusInternalServerError, "could not update sale")
		}
		if res.RowsAffected == 0 {
			// A concurrent request won the transition and posted the sale.
			var current models.Sale
			if err := db.Preload("PaymentMethod").First(&current, id).Error; err != nil {
				return fiber.NewError(fiber.StatusNotFound, "sale not found")
			}
			return alreadyPaid(c, &current, body)
		}

		resp := toSaleResponse(&sale)
		h.writeAudit(ctx, "PaySale", audit.LogOptions{
			UserID:      user.UserID,
			UserName:    user.Name,
			EntityType:  "sale",
			EntityID:    sale.ID,
			Action:      models.AuditActionPay,
			Description: fmt.Sprintf("Sale paid: %s - %s", sale.InvoiceNo, sale.Total.StringFixed(2)),
			Before:      before,
			After:       resp,
		})

		st := h.Recorder.RecordSale(ctx, &sale, user.Name)
		resp.Ledger = &st
		return c.JSON(resp)
	}
}

func alreadyPaid(c *fiber.Ctx, sale *models.Sale, body PaySaleRequest) error {
	if body.PaymentMethodID != nil && *body.PaymentMethodID != sale.PaymentMethodID {
		return fiber.NewError(fiber.StatusConflict, "sale is already paid, its payment method cannot change")
	}
	return c.JSON(toSaleResponse(sale))
}

// GET /api/sales/:id
func GetSaleHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		var sale models.Sale
		if err := h.DB.WithContext(c.UserContext()).Preload("PaymentMethod").First(&sale, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "sale not found")
		}
		return c.JSON(toSaleResponse(&sale))
	}
}

// GET /api/sales?status=paid&from=2025-01-01&to=2025-01-31
func ListSalesHandler(h *Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := h.DB.WithContext(c.UserContext()).Model(&models.Sale{}).Preload("PaymentMethod")

		switch status := c.Query("status"); status {
		case "":
		case string(models.PaymentStatusPending), string(models.PaymentStatusPaid):
			dbq = dbq.Where("payment_status = ?", status)
		default:
			return fiber.NewError(fiber.StatusBadRequest, "status must be pending or paid")
		}
		if fromStr := c.Query("from"); fromStr != "" {
			from, err := time.Parse(dateLayout, fromStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid from")
			}
			dbq = dbq.Where("created_at >= ?", from)
		}
		if toStr := c.Query("to"); toStr != "" {
			to, err := time.Parse(dateLayout, toStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid to")
			}
			dbq = dbq.Where("created_at < ?", to.AddDate(0, 0, 1))
		}

		var rows []models.Sale
		if err := dbq.Order("created_at desc, id desc").Limit(500).Find(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list sales")
		}
		resp := make([]SaleResponse, 0, len(rows))
		for i := range rows {
			resp = append(resp, toSaleResponse(&rows[i]))
		}
		return c.JSON(resp)
	}
}

func (h *Deps) writeAudit(ctx context.Context, funcName string, opts audit.LogOptions) {
	if err := h.Audit.WriteLog(ctx, opts); err != nil {
		config.LogError(h.Log, "sales", funcName, "audit log", opts.EntityID, err)
	}
}
