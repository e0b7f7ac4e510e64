package service

import (
	"rideshare/internal/domain"
	"rideshare/internal/validation"
)

// validateRequest runs struct tag validation and converts failures into an
// ErrInvalidInput error whose fields name each offending parameter.
func validateRequest(req any) error {
	fields := validation.Struct(req)
	if fields == nil {
		return nil
	}

	e := invalidInput(validation.Format(fields))
	e.Fields = make(map[string]any, len(fields))
	for k, v := range fields {
		e.Fields[k] = v
	}
	return e
}

// ParsePaymentMethod validates a payment method string. Empty means cash.
func ParsePaymentMethod(method string) (domain.PaymentMethod, error) {
	switch domain.PaymentMethod(method) {
	case domain.PaymentMethodCash, domain.PaymentMethodCard, domain.PaymentMethodWallet:
		return domain.PaymentMethod(method), nil
	case "":
		return domain.PaymentMethodCash, nil
	default:
		return "", invalidInput("unsupported payment method", "payment_method", method)
	}
}
