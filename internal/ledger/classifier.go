package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pos-backend/internal/models"
)

var creditKeywords = []string{"credit", "due", "unpaid", "pending", "owed"}

// ClassifyName maps a payment method name to cash, online or credit.
func ClassifyName(name string) models.PaymentMode {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, kw := range creditKeywords {
		if strings.Contains(n, kw) {
			return models.PaymentModeCredit
		}
	}
	if strings.Contains(n, "cash") {
		return models.PaymentModeCash
	}
	return models.PaymentModeOnline
}

// Classify resolves the payment method and classifies it. An unknown id is
// reported as ErrUnresolvablePaymentMethod, never defaulted.
func Classify(ctx context.Context, r Reader, paymentMethodID uint) (models.PaymentMode, error) {
	if paymentMethodID == 0 {
		return "", ErrUnresolvablePaymentMethod
	}
	pm, err := r.FindPaymentMethod(ctx, paymentMethodID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: id %d", ErrUnresolvablePaymentMethod, paymentMethodID)
		}
		return "", err
	}
	return ClassifyName(pm.Name), nil
}
