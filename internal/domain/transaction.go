package domain

import (
	"encoding/json"
	"time"
)

const (
	FieldTransactionID  = "transaction_id"
	FieldAmount         = "transaction_amount"
	FieldChannel        = "transaction_channel"
	FieldPaymentMode    = "transaction_payment_mode"
	FieldGatewayBank    = "payment_gateway_bank"
	FieldPayerEmail     = "payer_email"
	FieldPayerMobile    = "payer_mobile"
	FieldPayerCardBrand = "payer_card_brand"
	FieldPayerDevice    = "payer_device"
	FieldPayerBrowser   = "payer_browser"
	FieldPayeeID        = "payee_id"
)

// FieldSource is anything rules can read fields from by canonical name.
type FieldSource interface {
	Field(name string) (any, bool)
}

type Transaction struct {
	ID             string  `json:"transaction_id" validate:"required"`
	Amount         float64 `json:"transaction_amount" validate:"gte=0"`
	Channel        string  `json:"transaction_channel" validate:"required"`
	PaymentMode    string  `json:"transaction_payment_mode" validate:"required"`
	GatewayBank    string  `json:"payment_gateway_bank" validate:"required"`
	PayerEmail     string  `json:"payer_email" validate:"required"`
	PayerMobile    string  `json:"payer_mobile" validate:"required"`
	PayerCardBrand string  `json:"payer_card_brand" validate:"required"`
	PayerDevice    string  `json:"payer_device" validate:"required"`
	PayerBrowser   string  `json:"payer_browser" validate:"required"`
	PayeeID        string  `json:"payee_id" validate:"required"`

	amountMissing bool
}

// UnmarshalJSON records whether transaction_amount was present and non-null,
// which a plain float64 cannot tell apart from zero.
func (tx *Transaction) UnmarshalJSON(data []byte) error {
	type plain Transaction
	aux := struct {
		*plain
		Amount *float64 `json:"transaction_amount"`
	}{plain: (*plain)(tx)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	tx.amountMissing = aux.Amount == nil
	if aux.Amount != nil {
		tx.Amount = *aux.Amount
	}
	return nil
}

// AmountMissing reports a decoded record that omitted transaction_amount.
// Transactions built in code always carry their amount.
func (tx *Transaction) AmountMissing() bool {
	return tx.amountMissing
}

func (tx *Transaction) Field(name string) (any, bool) {
	switch name {
	case FieldTransactionID:
		return tx.ID, true
	case FieldAmount:
		return tx.Amount, true
	case FieldChannel:
		return tx.Channel, true
	case FieldPaymentMode:
		return tx.PaymentMode, true
	case FieldGatewayBank:
		return tx.GatewayBank, true
	case FieldPayerEmail:
		return tx.PayerEmail, true
	case FieldPayerMobile:
		return tx.PayerMobile, true
	case FieldPayerCardBrand:
		return tx.PayerCardBrand, true
	case FieldPayerDevice:
		return tx.PayerDevice, true
	case FieldPayerBrowser:
		return tx.PayerBrowser, true
	case FieldPayeeID:
		return tx.PayeeID, true
	default:
		return nil, false
	}
}

// CategoricalValues returns the string fields in feature column order.
func (tx *Transaction) CategoricalValues() []string {
	return []string{
		tx.Channel,
		tx.PaymentMode,
		tx.GatewayBank,
		tx.PayerEmail,
		tx.PayerMobile,
		tx.PayerCardBrand,
		tx.PayerDevice,
		tx.PayerBrowser,
		tx.PayeeID,
	}
}

// Fields is a loosely typed transaction record, e.g. a decoded JSON body
// that may be missing keys.
type Fields map[string]any

func (f Fields) Field(name string) (any, bool) {
	v, ok := f[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

type DetectionRecord struct {
	ID         string    `json:"id"`
	Verdict    Verdict   `json:"verdict"`
	ModelName  string    `json:"model_name"`
	DetectedAt time.Time `json:"detected_at"`
}
