package repository

import (
	"context"
	"errors"

	"fraud_scorer/internal/domain"
)

type DetectionRepository interface {
	Save(ctx context.Context, record *domain.DetectionRecord) error
	GetByTransactionID(ctx context.Context, transactionID string) (*domain.DetectionRecord, error)
	List(ctx context.Context, limit, offset int) ([]*domain.DetectionRecord, error)
	CountBySource(ctx context.Context, source domain.FraudSource) (int, error)
}

type ReportRepository interface {
	Save(ctx context.Context, report *domain.FraudReport) error
	GetByTransactionID(ctx context.Context, transactionID string) ([]*domain.FraudReport, error)
}

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate entry")
)
