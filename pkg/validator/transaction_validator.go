package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"fraud_scorer/internal/domain"
)

var (
	ErrMalformedTransaction = errors.New("malformed transaction")
	ErrMalformedReport      = errors.New("malformed fraud report")
)

// TransactionValidator checks request records against their struct tags.
// It is safe for concurrent use.
type TransactionValidator struct {
	validate *validator.Validate
}

func NewTransactionValidator() *TransactionValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &TransactionValidator{validate: v}
}

func (v *TransactionValidator) ValidateTransaction(tx *domain.Transaction) error {
	if tx == nil {
		return fmt.Errorf("%w: empty transaction", ErrMalformedTransaction)
	}
	if tx.AmountMissing() {
		return fmt.Errorf("%w: %s is required", ErrMalformedTransaction, domain.FieldAmount)
	}
	if err := v.validate.Struct(tx); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedTransaction, describe(err))
	}
	return nil
}

func (v *TransactionValidator) ValidateReport(report *domain.FraudReport) error {
	if report == nil {
		return fmt.Errorf("%w: empty report", ErrMalformedReport)
	}
	if err := v.validate.Struct(report); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedReport, describe(err))
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(msgs, "; ")
}
