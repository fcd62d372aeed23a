package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fraud_scorer/internal/domain"
	"fraud_scorer/internal/model"
	"fraud_scorer/internal/repository"
	"fraud_scorer/internal/service"
	"fraud_scorer/pkg/validator"
)

type MetricsRecorder interface {
	RecordVerdict(modelName, source string, isFraud bool, score float64, duration time.Duration)
	RecordFailure(reason string)
	RecordAlertDropped()
}

type AlertQueue interface {
	Enqueue(ctx context.Context, alert service.FraudAlert) error
}

// TransactionProcessor wraps the detector with validation, detection
// records, metrics and fraud alerts.
type TransactionProcessor struct {
	detector   *FraudDetector
	detections repository.DetectionRepository
	reports    repository.ReportRepository
	validator  *validator.TransactionValidator
	metrics    MetricsRecorder
	alerts     AlertQueue
	logger     *slog.Logger
}

func NewTransactionProcessor(
	detector *FraudDetector,
	detections repository.DetectionRepository,
	reports repository.ReportRepository,
	metrics MetricsRecorder,
	alerts AlertQueue,
	logger *slog.Logger,
) *TransactionProcessor {
	if logger == nil {
		logger = slog.Default()
	}

	return &TransactionProcessor{
		detector:   detector,
		detections: detections,
		reports:    reports,
		validator:  validator.NewTransactionValidator(),
		metrics:    metrics,
		alerts:     alerts,
		logger:     logger,
	}
}

func (p *TransactionProcessor) Detect(ctx context.Context, tx *domain.Transaction, modelName string) (*domain.Verdict, error) {
	if err := p.validator.ValidateTransaction(tx); err != nil {
		p.recordFailure(err)
		return nil, err
	}

	startTime := time.Now()
	verdict, err := p.detector.Classify(ctx, tx, modelName)
	if err != nil {
		p.recordFailure(err)
		return nil, err
	}

	p.observe(ctx, verdict, modelName, time.Since(startTime))
	return verdict, nil
}

func (p *TransactionProcessor) DetectBatch(ctx context.Context, txs []*domain.Transaction, modelName string) ([]*domain.Verdict, error) {
	for i, tx := range txs {
		if err := p.validator.ValidateTransaction(tx); err != nil {
			p.recordFailure(err)
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
	}

	startTime := time.Now()
	verdicts, err := p.detector.ClassifyBatch(ctx, txs, modelName)
	if err != nil {
		p.recordFailure(err)
		return nil, err
	}

	perTx := time.Since(startTime)
	if len(verdicts) > 0 {
		perTx /= time.Duration(len(verdicts))
	}
	for _, v := range verdicts {
		p.observe(ctx, v, modelName, perTx)
	}
	return verdicts, nil
}

// Report acknowledges a fraud report for a transaction that was scored here.
// Storage failures are reported through the ack's failure code rather than
// the error, which is reserved for malformed reports.
func (p *TransactionProcessor) Report(ctx context.Context, report *domain.FraudReport) (*domain.ReportAck, error) {
	if err := p.validator.ValidateReport(report); err != nil {
		return nil, err
	}

	ack := &domain.ReportAck{TransactionID: report.TransactionID}

	if _, err := p.detections.GetByTransactionID(ctx, report.TransactionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			ack.FailureCode = domain.ReportUnknownTxn
			return ack, nil
		}
		p.logger.ErrorContext(ctx, "Failed to look up detection for report",
			slog.String("transaction_id", report.TransactionID),
			slog.String("error", err.Error()))
		ack.FailureCode = domain.ReportInternalFailure
		return ack, nil
	}

	stored := *report
	stored.ID = uuid.NewString()
	stored.ReportedAt = time.Now().UTC()
	if err := p.reports.Save(ctx, &stored); err != nil {
		p.logger.ErrorContext(ctx, "Failed to save fraud report",
			slog.String("transaction_id", report.TransactionID),
			slog.String("error", err.Error()))
		ack.FailureCode = domain.ReportInternalFailure
		return ack, nil
	}

	p.logger.InfoContext(ctx, "Fraud report accepted",
		slog.String("report_id", stored.ID),
		slog.String("transaction_id", stored.TransactionID),
		slog.String("reporting_entity_id", stored.ReportingEntityID))

	ack.Acknowledged = true
	ack.FailureCode = domain.ReportAccepted
	return ack, nil
}

func (p *TransactionProcessor) GetDetection(ctx context.Context, transactionID string) (*domain.DetectionRecord, error) {
	return p.detections.GetByTransactionID(ctx, transactionID)
}

func (p *TransactionProcessor) ListDetections(ctx context.Context, limit, offset int) ([]*domain.DetectionRecord, error) {
	return p.detections.List(ctx, limit, offset)
}

// SourceCounts returns how many stored detections came from each verdict
// source.
func (p *TransactionProcessor) SourceCounts(ctx context.Context) (map[domain.FraudSource]int, error) {
	counts := make(map[domain.FraudSource]int, 2)
	for _, source := range []domain.FraudSource{domain.SourceRule, domain.SourceModel} {
		n, err := p.detections.CountBySource(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s detections: %w", source, err)
		}
		counts[source] = n
	}
	return counts, nil
}

func (p *TransactionProcessor) Models() []string {
	return p.detector.Models()
}

func (p *TransactionProcessor) observe(ctx context.Context, verdict *domain.Verdict, modelName string, duration time.Duration) {
	record := &domain.DetectionRecord{
		ID:         uuid.NewString(),
		Verdict:    *verdict,
		ModelName:  modelName,
		DetectedAt: time.Now().UTC(),
	}
	if err := p.detections.Save(ctx, record); err != nil {
		p.logger.ErrorContext(ctx, "Failed to save detection",
			slog.String("transaction_id", verdict.TransactionID),
			slog.String("error", err.Error()))
	}

	if p.metrics != nil {
		p.metrics.RecordVerdict(modelName, string(verdict.Source), verdict.IsFraud, verdict.Score, duration)
	}

	if verdict.IsFraud && p.alerts != nil {
		if err := p.alerts.Enqueue(ctx, service.NewFraudAlert(*verdict, modelName)); err != nil {
			p.logger.WarnContext(ctx, "Fraud alert not queued",
				slog.String("transaction_id", verdict.TransactionID),
				slog.String("error", err.Error()))
			if p.metrics != nil {
				p.metrics.RecordAlertDropped()
			}
		}
	}
}

func (p *TransactionProcessor) recordFailure(err error) {
	if p.metrics == nil {
		return
	}

	switch {
	case errors.Is(err, model.ErrUnknownModel):
		p.metrics.RecordFailure("unknown_model")
	case errors.Is(err, validator.ErrMalformedTransaction):
		p.metrics.RecordFailure("malformed_transaction")
	default:
		p.metrics.RecordFailure("internal")
	}
}
