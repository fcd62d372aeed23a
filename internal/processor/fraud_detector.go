package processor

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"fraud_scorer/internal/domain"
	"fraud_scorer/internal/model"
)

const defaultBatchWorkers = 8

// FraudDetector runs the rule check and, when no rule fires, the named
// model. It holds no mutable state and is safe for concurrent use.
type FraudDetector struct {
	registry     *model.Registry
	ruleEngine   *RuleEngine
	scorer       *FeatureScorer
	batchWorkers int
	logger       *slog.Logger
}

func NewFraudDetector(registry *model.Registry, ruleEngine *RuleEngine, batchWorkers int, logger *slog.Logger) *FraudDetector {
	if logger == nil {
		logger = slog.Default()
	}
	if ruleEngine == nil {
		ruleEngine = NewRuleEngine(nil, logger)
	}
	if batchWorkers <= 0 {
		batchWorkers = defaultBatchWorkers
	}

	return &FraudDetector{
		registry:     registry,
		ruleEngine:   ruleEngine,
		scorer:       NewFeatureScorer(registry),
		batchWorkers: batchWorkers,
		logger:       logger,
	}
}

// Classify returns the verdict for one transaction. The model name is
// checked before any rule runs.
func (d *FraudDetector) Classify(ctx context.Context, tx *domain.Transaction, modelName string) (*domain.Verdict, error) {
	if !d.registry.Has(modelName) {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownModel, modelName)
	}

	if rule := d.ruleEngine.Evaluate(tx); rule.IsFraud {
		d.logger.DebugContext(ctx, "Rule triggered",
			slog.String("transaction_id", tx.ID),
			slog.String("reason", rule.Reason))
		verdict := domain.NewRuleVerdict(tx.ID, rule.Reason)
		return &verdict, nil
	}

	result, err := d.scorer.Score(tx, modelName)
	if err != nil {
		return nil, fmt.Errorf("scoring failed: %w", err)
	}

	verdict := domain.NewModelVerdict(tx.ID, result.IsFraud(), roundScore(result.Probability))
	return &verdict, nil
}

// ClassifyBatch classifies transactions concurrently and returns verdicts in
// input order. The first failure cancels the rest.
func (d *FraudDetector) ClassifyBatch(ctx context.Context, txs []*domain.Transaction, modelName string) ([]*domain.Verdict, error) {
	if !d.registry.Has(modelName) {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownModel, modelName)
	}

	verdicts := make([]*domain.Verdict, len(txs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.batchWorkers)

	for i, tx := range txs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := d.Classify(ctx, tx, modelName)
			if err != nil {
				return fmt.Errorf("transaction %s: %w", tx.ID, err)
			}
			verdicts[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return verdicts, nil
}

func (d *FraudDetector) Models() []string {
	return d.registry.Names()
}

func roundScore(p float64) float64 {
	return math.Round(p*1e4) / 1e4
}
