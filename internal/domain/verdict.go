package domain

type FraudSource string

const (
	SourceRule  FraudSource = "rule"
	SourceModel FraudSource = "model"

	ModelReason = "AI-based prediction"
	RuleScore   = 1.0
)

type Verdict struct {
	TransactionID string      `json:"transaction_id"`
	IsFraud       bool        `json:"is_fraud"`
	Source        FraudSource `json:"fraud_source"`
	Reason        string      `json:"fraud_reason"`
	Score         float64     `json:"fraud_score"`
}

// NewRuleVerdict builds the verdict for a fired rule. Rule verdicts always
// carry the maximal score.
func NewRuleVerdict(transactionID, reason string) Verdict {
	return Verdict{
		TransactionID: transactionID,
		IsFraud:       true,
		Source:        SourceRule,
		Reason:        reason,
		Score:         RuleScore,
	}
}

func NewModelVerdict(transactionID string, isFraud bool, score float64) Verdict {
	return Verdict{
		TransactionID: transactionID,
		IsFraud:       isFraud,
		Source:        SourceModel,
		Reason:        ModelReason,
		Score:         score,
	}
}
