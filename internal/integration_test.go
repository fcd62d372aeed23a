package internal_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraud_scorer/internal/api"
	"fraud_scorer/internal/domain"
	"fraud_scorer/internal/model"
	"fraud_scorer/internal/processor"
	"fraud_scorer/internal/repository/memory"
	"fraud_scorer/internal/service"
	"fraud_scorer/pkg/crypto"
	"fraud_scorer/pkg/metrics"
)

type recordingSink struct {
	mu     sync.Mutex
	alerts []service.FraudAlert
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Send(ctx context.Context, alert service.FraudAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

type testEnv struct {
	detections *memory.DetectionRepository
	metrics    *metrics.MetricsCollector
	alerts     *service.AlertService
	sink       *recordingSink
	mux        *http.ServeMux
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	registry, err := model.Load("model/testdata", model.DefaultModelNames)
	require.NoError(t, err)

	env := &testEnv{
		detections: memory.NewDetectionRepository(),
		metrics:    metrics.NewMetricsCollector(nil),
		sink:       &recordingSink{},
		mux:        http.NewServeMux(),
	}
	env.alerts = service.NewAlertService([]service.AlertSink{env.sink}, 2, 100, nil)

	detector := processor.NewFraudDetector(registry, processor.NewRuleEngine(nil, nil), 4, nil)
	proc := processor.NewTransactionProcessor(detector, env.detections, memory.NewReportRepository(), env.metrics, env.alerts, nil)
	handler := api.NewAPIHandler(proc, crypto.NewSigner("", nil), api.HandlerConfig{RequestTimeout: 5 * time.Second}, nil)
	handler.RegisterRoutes(env.mux)

	return env
}

func newTransaction(id string, amount float64, channel string) *domain.Transaction {
	return &domain.Transaction{
		ID:             id,
		Amount:         amount,
		Channel:        channel,
		PaymentMode:    "upi",
		GatewayBank:    "bank_b",
		PayerEmail:     "someone@example.org",
		PayerMobile:    "8880002222",
		PayerCardBrand: "mastercard",
		PayerDevice:    "ios",
		PayerBrowser:   "safari",
		PayeeID:        "merchant-9",
	}
}

func post(env *testEnv, path string, body []byte) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.mux.ServeHTTP(w, r)
	return w
}

// callPredict is safe to call from several goroutines; it only uses assert.
func callPredict(t *testing.T, env *testEnv, modelName string, tx *domain.Transaction) (*domain.Verdict, int) {
	t.Helper()
	b, err := json.Marshal(tx)
	if !assert.NoError(t, err) {
		return nil, 0
	}

	w := post(env, "/api/v1/predict/"+modelName, b)
	if w.Code != http.StatusOK {
		return nil, w.Code
	}

	var v domain.Verdict
	if !assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &v)) {
		return nil, w.Code
	}
	return &v, w.Code
}

func scrape(t *testing.T, env *testEnv) string {
	t.Helper()
	srv := httptest.NewServer(env.metrics.GetHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestIntegration_HighAmountRule(t *testing.T) {
	env := setup(t)

	v, code := callPredict(t, env, "random_forest", newTransaction("T1", 6000, "mobile"))

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, domain.NewRuleVerdict("T1", "High value transaction"), *v)
}

func TestIntegration_WebChannelRule(t *testing.T) {
	env := setup(t)

	v, code := callPredict(t, env, "gradient_boosting", newTransaction("T2", 100, "web"))

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, domain.NewRuleVerdict("T2", "Web transaction"), *v)
}

func TestIntegration_ModelVerdictEveryModel(t *testing.T) {
	env := setup(t)

	for _, name := range model.DefaultModelNames {
		t.Run(name, func(t *testing.T) {
			v, code := callPredict(t, env, name, newTransaction("T3-"+name, 100, "mobile"))

			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, domain.SourceModel, v.Source)
			assert.Equal(t, "AI-based prediction", v.Reason)
			assert.GreaterOrEqual(t, v.Score, 0.0)
			assert.LessOrEqual(t, v.Score, 1.0)
			assert.Equal(t, v.Score > 0.5, v.IsFraud)
		})
	}
}

func TestIntegration_UnknownModel(t *testing.T) {
	env := setup(t)

	_, code := callPredict(t, env, "not_a_model", newTransaction("T4", 6000, "web"))

	assert.Equal(t, http.StatusBadRequest, code)
	_, err := env.detections.GetByTransactionID(context.Background(), "T4")
	assert.Error(t, err, "rejected request must not be recorded")
	assert.Contains(t, scrape(t, env), `fraud_scoring_failures_total{reason="unknown_model"} 1`)
}

func TestIntegration_MissingAmountRejected(t *testing.T) {
	env := setup(t)
	raw := []byte(`{"transaction_id":"T10","transaction_channel":"mobile","transaction_payment_mode":"upi",` +
		`"payment_gateway_bank":"bank_b","payer_email":"someone@example.org","payer_mobile":"8880002222",` +
		`"payer_card_brand":"mastercard","payer_device":"ios","payer_browser":"safari","payee_id":"merchant-9"}`)

	w := post(env, "/api/v1/predict/logistic_regression", raw)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_ERROR", resp.Code)
	assert.Contains(t, scrape(t, env), `fraud_scoring_failures_total{reason="malformed_transaction"} 1`)
}

func TestIntegration_AlertsForFraudVerdicts(t *testing.T) {
	env := setup(t)

	callPredict(t, env, "logistic_regression", newTransaction("T5", 7000, "mobile"))
	callPredict(t, env, "logistic_regression", newTransaction("T6", 10, "web"))

	require.NoError(t, env.alerts.Shutdown(context.Background()))
	assert.Equal(t, 2, env.sink.count())
}

func TestIntegration_ReportAfterDetection(t *testing.T) {
	env := setup(t)
	callPredict(t, env, "neural_network", newTransaction("T7", 100, "mobile"))

	w := post(env, "/api/v1/reports", []byte(`{"transaction_id":"T7","reporting_entity_id":"issuer-1","fraud_details":"card not present"}`))

	require.Equal(t, http.StatusOK, w.Code)
	var ack domain.ReportAck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	assert.True(t, ack.Acknowledged)
	assert.Equal(t, domain.ReportAccepted, ack.FailureCode)
}

func TestIntegration_ConcurrentScoring(t *testing.T) {
	env := setup(t)

	n := 40
	var wg sync.WaitGroup
	wg.Add(n)

	scores := make([]float64, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			v, code := callPredict(t, env, "random_forest", newTransaction(fmt.Sprintf("C%d", i), 250, "pos"))
			if assert.Equal(t, http.StatusOK, code) && v != nil {
				scores[i] = v.Score
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.Equal(t, scores[0], scores[i], "identical features scored differently")
	}

	count, err := env.detections.CountBySource(context.Background(), domain.SourceModel)
	require.NoError(t, err)
	assert.Equal(t, n, count)
	assert.Contains(t, scrape(t, env),
		fmt.Sprintf(`fraud_verdicts_total{is_fraud="%t",model="random_forest",source="model"} %d`, scores[0] > 0.5, n))
}
