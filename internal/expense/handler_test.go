package expense

import (
	"errors"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-backend/internal/validation"
)

func TestParseYearMonth(t *testing.T) {
	y, m, err := parseYearMonth("2025", "12")
	require.NoError(t, err)
	assert.Equal(t, 2025, y)
	assert.Equal(t, 12, m)

	for _, tc := range [][2]string{{"", "1"}, {"2025", ""}, {"1999", "5"}, {"2025", "13"}, {"abc", "1"}} {
		_, _, err := parseYearMonth(tc[0], tc[1])
		var fe *fiber.Error
		require.True(t, errors.As(err, &fe), "%v", tc)
		assert.Equal(t, fiber.StatusBadRequest, fe.Code)
	}
}

func TestCreateExpenseRequestValidation(t *testing.T) {
	ok := CreateExpenseRequest{Title: "Gas", CategoryID: 1, PaymentMethodID: 1, Amount: decimal.RequireFromString("12.30")}
	assert.NoError(t, validation.Struct(&ok))

	bad := ok
	bad.Amount = decimal.Zero
	assert.Error(t, validation.Struct(&bad))

	bad = ok
	bad.Amount = decimal.RequireFromString("3.999")
	assert.Error(t, validation.Struct(&bad))

	bad = ok
	bad.Date = "12/01/2025"
	assert.Error(t, validation.Struct(&bad))

	bad = ok
	bad.PaymentMethodID = 0
	assert.Error(t, validation.Struct(&bad))
}
