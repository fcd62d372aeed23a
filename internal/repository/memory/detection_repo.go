package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fraud_scorer/internal/domain"
	"fraud_scorer/internal/repository"
)

// DetectionRepository keeps the latest detection per transaction.
type DetectionRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.DetectionRecord
}

func NewDetectionRepository() *DetectionRepository {
	return &DetectionRepository{
		records: make(map[string]*domain.DetectionRecord),
	}
}

func (r *DetectionRepository) Save(ctx context.Context, record *domain.DetectionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *record
	r.records[record.Verdict.TransactionID] = &stored

	return nil
}

func (r *DetectionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.DetectionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[transactionID]
	if !exists {
		return nil, fmt.Errorf("%w: detection for transaction %s", repository.ErrNotFound, transactionID)
	}
	out := *record
	return &out, nil
}

func (r *DetectionRepository) List(ctx context.Context, limit, offset int) ([]*domain.DetectionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*domain.DetectionRecord, 0, len(r.records))
	for _, record := range r.records {
		out := *record
		all = append(all, &out)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].DetectedAt.Equal(all[j].DetectedAt) {
			return all[i].Verdict.TransactionID < all[j].Verdict.TransactionID
		}
		return all[i].DetectedAt.After(all[j].DetectedAt)
	})

	if offset >= len(all) {
		return []*domain.DetectionRecord{}, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}

	return all[offset:end], nil
}

func (r *DetectionRepository) CountBySource(ctx context.Context, source domain.FraudSource) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int
	for _, record := range r.records {
		if record.Verdict.Source == source {
			count++
		}
	}

	return count, nil
}
