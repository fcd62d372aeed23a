package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fraud_scorer/internal/domain"
)

var (
	ErrQueueFull     = errors.New("alert queue full")
	ErrServiceClosed = errors.New("alert service closed")
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
)

type FraudAlert struct {
	TransactionID string
	ModelName     string
	Source        domain.FraudSource
	Reason        string
	Score         float64
	Severity      Severity
	CreatedAt     time.Time
}

func NewFraudAlert(verdict domain.Verdict, modelName string) FraudAlert {
	severity := SeverityHigh
	if verdict.Source == domain.SourceRule {
		severity = SeverityCritical
	}

	return FraudAlert{
		TransactionID: verdict.TransactionID,
		ModelName:     modelName,
		Source:        verdict.Source,
		Reason:        verdict.Reason,
		Score:         verdict.Score,
		Severity:      severity,
		CreatedAt:     time.Now(),
	}
}

type AlertSink interface {
	Name() string
	Send(ctx context.Context, alert FraudAlert) error
}

// AlertService fans queued fraud alerts out to every sink from a fixed
// worker pool.
type AlertService struct {
	sinks   []AlertSink
	queue   chan FraudAlert
	workers int
	timeout time.Duration
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	logger  *slog.Logger
}

func NewAlertService(sinks []AlertSink, workers, queueSize int, logger *slog.Logger) *AlertService {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1000
	}

	s := &AlertService{
		sinks:   sinks,
		queue:   make(chan FraudAlert, queueSize),
		workers: workers,
		timeout: 10 * time.Second,
		logger:  logger,
	}

	s.startWorkers()

	return s
}

// Enqueue never blocks the scoring path; a full queue drops the alert.
func (s *AlertService) Enqueue(ctx context.Context, alert FraudAlert) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrServiceClosed
	}

	select {
	case s.queue <- alert:
		s.logger.DebugContext(ctx, "Fraud alert queued",
			slog.String("transaction_id", alert.TransactionID),
			slog.String("severity", string(alert.Severity)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("%w: transaction %s", ErrQueueFull, alert.TransactionID)
	}
}

func (s *AlertService) startWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *AlertService) worker(id int) {
	defer s.wg.Done()

	for alert := range s.queue {
		s.dispatch(alert, id)
	}
}

func (s *AlertService) dispatch(alert FraudAlert, workerID int) {
	for _, sink := range s.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		startTime := time.Now()
		err := sink.Send(ctx, alert)
		cancel()

		if err != nil {
			s.logger.Error("Failed to send fraud alert",
				slog.String("sink", sink.Name()),
				slog.String("transaction_id", alert.TransactionID),
				slog.String("error", err.Error()),
				slog.Int("worker_id", workerID),
				slog.Duration("duration", time.Since(startTime)))
		}
	}
}

// Shutdown stops accepting alerts and waits for queued ones to be sent.
func (s *AlertService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Alert service shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (l *LogSink) Name() string { return "log" }

func (l *LogSink) Send(ctx context.Context, alert FraudAlert) error {
	l.logger.WarnContext(ctx, "Fraud alert",
		slog.String("transaction_id", alert.TransactionID),
		slog.String("severity", string(alert.Severity)),
		slog.String("source", string(alert.Source)),
		slog.String("reason", alert.Reason),
		slog.Float64("score", alert.Score),
		slog.String("model", alert.ModelName))
	return nil
}
