package memory

import (
	"context"
	"fmt"
	"sync"

	"fraud_scorer/internal/domain"
	"fraud_scorer/internal/repository"
)

type ReportRepository struct {
	mu      sync.RWMutex
	reports map[string]*domain.FraudReport
	index   map[string][]string
}

func NewReportRepository() *ReportRepository {
	return &ReportRepository{
		reports: make(map[string]*domain.FraudReport),
		index:   make(map[string][]string),
	}
}

func (r *ReportRepository) Save(ctx context.Context, report *domain.FraudReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.reports[report.ID]; exists {
		return fmt.Errorf("%w: report %s", repository.ErrDuplicate, report.ID)
	}

	stored := *report
	r.reports[report.ID] = &stored
	r.index[report.TransactionID] = append(r.index[report.TransactionID], report.ID)

	return nil
}

func (r *ReportRepository) GetByTransactionID(ctx context.Context, transactionID string) ([]*domain.FraudReport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, exists := r.index[transactionID]
	if !exists {
		return nil, fmt.Errorf("%w: reports for transaction %s", repository.ErrNotFound, transactionID)
	}

	result := make([]*domain.FraudReport, 0, len(ids))
	for _, id := range ids {
		out := *r.reports[id]
		result = append(result, &out)
	}

	return result, nil
}
