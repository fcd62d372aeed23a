package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud_scorer/internal/domain"
	"fraud_scorer/internal/model"
	"fraud_scorer/internal/processor"
	"fraud_scorer/internal/repository/memory"
	"fraud_scorer/pkg/crypto"
)

func newTestMux(t *testing.T, secret string) *http.ServeMux {
	t.Helper()
	reg, err := model.Load("../model/testdata", model.DefaultModelNames)
	require.NoError(t, err)

	detector := processor.NewFraudDetector(reg, nil, 4, nil)
	proc := processor.NewTransactionProcessor(detector, memory.NewDetectionRepository(), memory.NewReportRepository(), nil, nil, nil)
	handler := NewAPIHandler(proc, crypto.NewSigner(secret, nil), HandlerConfig{MaxBatchSize: 3}, nil)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return mux
}

func txJSON(id string, amount float64, channel string) map[string]any {
	return map[string]any{
		"transaction_id":           id,
		"transaction_amount":       amount,
		"transaction_channel":      channel,
		"transaction_payment_mode": "card",
		"payment_gateway_bank":     "bank_a",
		"payer_email":              "payer@example.com",
		"payer_mobile":             "9990001111",
		"payer_card_brand":         "visa",
		"payer_device":             "android",
		"payer_browser":            "chrome",
		"payee_id":                 "payee-42",
	}
}

func do(t *testing.T, mux http.Handler, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func TestPredictHandler_RuleVerdict(t *testing.T) {
	mux := newTestMux(t, "")

	rr := do(t, mux, http.MethodPost, "/api/v1/predict/random_forest", txJSON("t1", 6000, "mobile"), nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var verdict domain.Verdict
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &verdict))
	assert.Equal(t, domain.Verdict{
		TransactionID: "t1",
		IsFraud:       true,
		Source:        domain.SourceRule,
		Reason:        "High value transaction",
		Score:         1.0,
	}, verdict)
}

func TestPredictHandler_ModelVerdict(t *testing.T) {
	mux := newTestMux(t, "")

	rr := do(t, mux, http.MethodPost, "/api/v1/predict/logistic_regression", txJSON("t2", 100, "mobile"), nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var verdict domain.Verdict
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &verdict))
	assert.Equal(t, domain.SourceModel, verdict.Source)
	assert.Equal(t, domain.ModelReason, verdict.Reason)
	assert.GreaterOrEqual(t, verdict.Score, 0.0)
	assert.LessOrEqual(t, verdict.Score, 1.0)
	assert.Equal(t, verdict.Score > 0.5, verdict.IsFraud)
}

func TestPredictHandler_Errors(t *testing.T) {
	mux := newTestMux(t, "")
	missingEmail := txJSON("t3", 100, "mobile")
	delete(missingEmail, "payer_email")
	missingAmount := txJSON("t3", 100, "mobile")
	delete(missingAmount, "transaction_amount")
	nullAmount := txJSON("t3", 100, "mobile")
	nullAmount["transaction_amount"] = nil

	tests := []struct {
		name     string
		path     string
		body     any
		wantCode int
		wantErr  string
	}{
		{"unknown model", "/api/v1/predict/not_a_model", txJSON("t3", 6000, "web"), http.StatusBadRequest, "UNKNOWN_MODEL"},
		{"missing field", "/api/v1/predict/logistic_regression", missingEmail, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing amount", "/api/v1/predict/logistic_regression", missingAmount, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"null amount", "/api/v1/predict/logistic_regression", nullAmount, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not json", "/api/v1/predict/logistic_regression", "just a string", http.StatusBadRequest, "INVALID_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, mux, http.MethodPost, tt.path, tt.body, nil)

			assert.Equal(t, tt.wantCode, rr.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantErr, resp.Code)
		})
	}
}

func TestPredictBatchHandler(t *testing.T) {
	mux := newTestMux(t, "")
	body := map[string]any{"transactions": []any{
		txJSON("a", 6000, "mobile"),
		txJSON("b", 100, "web"),
		txJSON("c", 100, "mobile"),
	}}

	rr := do(t, mux, http.MethodPost, "/api/v1/predict/gradient_boosting/batch", body, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]BatchResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp, 3)
	assert.Equal(t, BatchResult{IsFraud: true, Reason: "High value transaction", Score: 1.0}, resp["a"])
	assert.Equal(t, BatchResult{IsFraud: true, Reason: "Web transaction", Score: 1.0}, resp["b"])
	assert.Equal(t, domain.ModelReason, resp["c"].Reason)
}

func TestPredictBatchHandler_Limits(t *testing.T) {
	mux := newTestMux(t, "")

	rr := do(t, mux, http.MethodPost, "/api/v1/predict/gradient_boosting/batch", map[string]any{"transactions": []any{}}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	txs := []any{txJSON("a", 1, "app"), txJSON("b", 1, "app"), txJSON("c", 1, "app"), txJSON("d", 1, "app")}
	rr = do(t, mux, http.MethodPost, "/api/v1/predict/gradient_boosting/batch", map[string]any{"transactions": txs}, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	noAmount := txJSON("b", 1, "app")
	delete(noAmount, "transaction_amount")
	rr = do(t, mux, http.MethodPost, "/api/v1/predict/gradient_boosting/batch", map[string]any{"transactions": []any{txJSON("a", 1, "app"), noAmount}}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
}

func TestReportAndDetectionHandlers(t *testing.T) {
	mux := newTestMux(t, "")
	report := map[string]any{"transaction_id": "t9", "reporting_entity_id": "bank-7", "fraud_details": "chargeback"}

	rr := do(t, mux, http.MethodPost, "/api/v1/reports", report, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var ack domain.ReportAck
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ack))
	assert.False(t, ack.Acknowledged)
	assert.Equal(t, domain.ReportUnknownTxn, ack.FailureCode)

	rr = do(t, mux, http.MethodGet, "/api/v1/detections?id=t9", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, mux, http.MethodPost, "/api/v1/predict/neural_network", txJSON("t9", 100, "mobile"), nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, mux, http.MethodPost, "/api/v1/reports", report, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ack))
	assert.True(t, ack.Acknowledged)
	assert.Equal(t, domain.ReportAccepted, ack.FailureCode)

	rr = do(t, mux, http.MethodGet, "/api/v1/detections?id=t9", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var record domain.DetectionRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &record))
	assert.Equal(t, "neural_network", record.ModelName)
	assert.Equal(t, domain.SourceModel, record.Verdict.Source)

	rr = do(t, mux, http.MethodGet, "/api/v1/detections?limit=10", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list DetectionsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list.Detections, 1)
	assert.Equal(t, 1, list.Counts[domain.SourceModel])

	rr = do(t, mux, http.MethodGet, "/api/v1/detections?limit=-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestModelsHandler(t *testing.T) {
	mux := newTestMux(t, "")

	rr := do(t, mux, http.MethodGet, "/api/v1/models", nil, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp ModelsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, []string{"gradient_boosting", "logistic_regression", "neural_network", "random_forest"}, resp.Models)
	assert.Equal(t, processor.FeatureHashVersion, resp.FeatureHash)
}

func TestSignatureVerification(t *testing.T) {
	mux := newTestMux(t, "test-secret")
	signer := crypto.NewSigner("test-secret", nil)
	body, err := json.Marshal(txJSON("s1", 100, "web"))
	require.NoError(t, err)

	send := func(signature string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/predict/logistic_regression", bytes.NewReader(body))
		if signature != "" {
			req.Header.Set(SignatureHeader, signature)
		}
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusUnauthorized, send(""))
	assert.Equal(t, http.StatusUnauthorized, send("deadbeef"))
	assert.Equal(t, http.StatusOK, send(signer.Sign(body)))
}
