package domain

import "time"

const (
	ReportAccepted        = 0
	ReportUnknownTxn      = 404
	ReportInternalFailure = 500
)

type FraudReport struct {
	ID                string    `json:"id"`
	TransactionID     string    `json:"transaction_id" validate:"required"`
	ReportingEntityID string    `json:"reporting_entity_id" validate:"required"`
	FraudDetails      string    `json:"fraud_details,omitempty"`
	ReportedAt        time.Time `json:"reported_at"`
}

type ReportAck struct {
	TransactionID string `json:"transaction_id"`
	Acknowledged  bool   `json:"reporting_acknowledged"`
	FailureCode   int    `json:"failure_code"`
}
