package payment

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"pos-backend/internal/ledger"
	"pos-backend/internal/models"
	"pos-backend/internal/validation"
)

type PaymentMethodResponse struct {
	ID       uint               `json:"id"`
	Name     string             `json:"name"`
	IsActive bool               `json:"is_active"`
	Mode     models.PaymentMode `json:"mode"`
}

type CreatePaymentMethodRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type UpdatePaymentMethodRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=100"`
	IsActive *bool   `json:"is_active"`
}

func toResponse(pm *models.PaymentMethod) PaymentMethodResponse {
	return PaymentMethodResponse{
		ID:       pm.ID,
		Name:     pm.Name,
		IsActive: pm.IsActive,
		Mode:     ledger.ClassifyName(pm.Name),
	}
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

func findMethod(db *gorm.DB, id uint) (*models.PaymentMethod, error) {
	var pm models.PaymentMethod
	if err := db.First(&pm, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusNotFound, "payment method not found")
		}
		return nil, fiber.NewError(fiber.StatusInternalServerError, "could not load payment method")
	}
	return &pm, nil
}

// GET /api/payment-methods?active=true
func ListPaymentMethodsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := db.WithContext(c.UserContext()).Order("name asc")
		if c.QueryBool("active", false) {
			q = q.Where("is_active = ?", true)
		}
		var methods []models.PaymentMethod
		if err := q.Find(&methods).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "could not list payment methods")
		}
		resp := make([]PaymentMethodResponse, 0, len(methods))
		for i := range methods {
			resp = append(resp, toResponse(&methods[i]))
		}
		return c.JSON(resp)
	}
}

// POST /api/payment-methods
func CreatePaymentMethodHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreatePaymentMethodRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		pm := models.PaymentMethod{Name: strings.TrimSpace(body.Name), IsActive: true}
		if err := db.WithContext(c.UserContext()).Create(&pm).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fiber.NewError(fiber.StatusConflict, "payment method already exists")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not create payment method")
		}
		return c.Status(fiber.StatusCreated).JSON(toResponse(&pm))
	}
}

// PUT /api/payment-methods/:id
func UpdatePaymentMethodHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		var body UpdatePaymentMethodRequest
		if err := validation.ParseBody(c, &body); err != nil {
			return err
		}
		tx := db.WithContext(c.UserContext())
		pm, err := findMethod(tx, id)
		if err != nil {
			return err
		}
		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "name cannot be empty")
			}
			pm.Name = name
		}
		if body.IsActive != nil {
			pm.IsActive = *body.IsActive
		}
		if err := tx.Save(pm).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fiber.NewError(fiber.StatusConflict, "payment method already exists")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "could not update payment method")
		}
		return c.JSON(toResponse(pm))
	}
}

// GET /api/payment-methods/:id/classify
func ClassifyPaymentMethodHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		pm, err := findMethod(db.WithContext(c.UserContext()), id)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"id":   pm.ID,
			"name": pm.Name,
			"mode": ledger.ClassifyName(pm.Name),
		})
	}
}
