package domain

type RuleOperator string

const (
	OperatorGreaterThan RuleOperator = ">"
	OperatorEqual       RuleOperator = "=="
)

// Rule is a static predicate over one transaction field.
type Rule struct {
	Field    string       `json:"field"`
	Operator RuleOperator `json:"operator"`
	Value    any          `json:"value"`
	Reason   string       `json:"reason"`
}
