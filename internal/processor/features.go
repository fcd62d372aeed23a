package processor

import (
	"github.com/cespare/xxhash/v2"

	"fraud_scorer/internal/domain"
	"fraud_scorer/internal/model"
)

// FeatureHashVersion names the categorical encoding: XXH64 (seed 0) of the
// raw string, modulo 1000. It does not match the label encoding used at
// training time.
const FeatureHashVersion = "xxh64-mod1000-v1"

const featureHashModulus = 1000

// EncodeFeatures builds the fixed-order vector
// [amount, channel, payment_mode, gateway_bank, payer_email, payer_mobile,
// payer_card_brand, payer_device, payer_browser, payee_id].
func EncodeFeatures(tx *domain.Transaction) []float64 {
	categorical := tx.CategoricalValues()

	features := make([]float64, 0, model.NumFeatures)
	features = append(features, tx.Amount)
	for _, v := range categorical {
		features = append(features, HashFeature(v))
	}
	return features
}

func HashFeature(value string) float64 {
	return float64(xxhash.Sum64String(value) % featureHashModulus)
}
