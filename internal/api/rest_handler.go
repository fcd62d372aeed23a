package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"fraud_scorer/internal/domain"
	"fraud_scorer/internal/model"
	"fraud_scorer/internal/processor"
	"fraud_scorer/internal/repository"
	"fraud_scorer/pkg/crypto"
	"fraud_scorer/pkg/validator"
)

const (
	SignatureHeader = "X-Signature"
	maxBodyBytes    = 4 << 20
)

type HandlerConfig struct {
	RequestTimeout time.Duration
	MaxBatchSize   int
}

type APIHandler struct {
	processor      *processor.TransactionProcessor
	signer         *crypto.Signer
	logger         *slog.Logger
	requestTimeout time.Duration
	maxBatchSize   int
}

func NewAPIHandler(
	processor *processor.TransactionProcessor,
	signer *crypto.Signer,
	cfg HandlerConfig,
	logger *slog.Logger,
) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 500
	}

	return &APIHandler{
		processor:      processor,
		signer:         signer,
		logger:         logger,
		requestTimeout: cfg.RequestTimeout,
		maxBatchSize:   cfg.MaxBatchSize,
	}
}

type BatchRequest struct {
	Transactions []*domain.Transaction `json:"transactions"`
}

type BatchResult struct {
	IsFraud bool    `json:"is_fraud"`
	Reason  string  `json:"fraud_reason"`
	Score   float64 `json:"fraud_score"`
}

type ModelsResponse struct {
	Models      []string `json:"models"`
	FeatureHash string   `json:"feature_hash"`
}

type DetectionsResponse struct {
	Detections []*domain.DetectionRecord  `json:"detections"`
	Counts     map[domain.FraudSource]int `json:"counts"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *APIHandler) PredictHandler(w http.ResponseWriter, r *http.Request) {
	modelName := r.PathValue("model_name")

	var tx domain.Transaction
	if !h.decodeBody(w, r, &tx) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	verdict, err := h.processor.Detect(ctx, &tx, modelName)
	if err != nil {
		h.sendProcessingError(w, err, slog.String("transaction_id", tx.ID), slog.String("model", modelName))
		return
	}

	h.sendJSON(w, verdict, http.StatusOK)
	h.logger.Info("Transaction scored",
		slog.String("transaction_id", verdict.TransactionID),
		slog.String("model", modelName),
		slog.String("source", string(verdict.Source)),
		slog.Bool("is_fraud", verdict.IsFraud),
		slog.Float64("score", verdict.Score))
}

func (h *APIHandler) PredictBatchHandler(w http.ResponseWriter, r *http.Request) {
	modelName := r.PathValue("model_name")

	var req BatchRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if len(req.Transactions) == 0 {
		h.sendError(w, "transactions must not be empty", http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}
	if len(req.Transactions) > h.maxBatchSize {
		h.sendError(w, fmt.Sprintf("batch exceeds %d transactions", h.maxBatchSize), http.StatusRequestEntityTooLarge, "BATCH_TOO_LARGE")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	verdicts, err := h.processor.DetectBatch(ctx, req.Transactions, modelName)
	if err != nil {
		h.sendProcessingError(w, err, slog.String("model", modelName), slog.Int("batch_size", len(req.Transactions)))
		return
	}

	response := make(map[string]BatchResult, len(verdicts))
	for _, v := range verdicts {
		response[v.TransactionID] = BatchResult{
			IsFraud: v.IsFraud,
			Reason:  v.Reason,
			Score:   v.Score,
		}
	}

	h.sendJSON(w, response, http.StatusOK)
	h.logger.Info("Batch scored",
		slog.String("model", modelName),
		slog.Int("batch_size", len(verdicts)))
}

func (h *APIHandler) ReportHandler(w http.ResponseWriter, r *http.Request) {
	var report domain.FraudReport
	if !h.decodeBody(w, r, &report) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	ack, err := h.processor.Report(ctx, &report)
	if err != nil {
		h.sendProcessingError(w, err, slog.String("transaction_id", report.TransactionID))
		return
	}

	h.sendJSON(w, ack, http.StatusOK)
}

func (h *APIHandler) GetDetectionHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.requestTimeout)
	defer cancel()

	transactionID := r.URL.Query().Get("id")
	if transactionID != "" {
		record, err := h.processor.GetDetection(ctx, transactionID)
		if err != nil {
			h.sendProcessingError(w, err, slog.String("transaction_id", transactionID))
			return
		}
		h.sendJSON(w, record, http.StatusOK)
		return
	}

	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
		return
	}

	records, err := h.processor.ListDetections(ctx, limit, offset)
	if err != nil {
		h.sendProcessingError(w, err)
		return
	}
	counts, err := h.processor.SourceCounts(ctx)
	if err != nil {
		h.sendProcessingError(w, err)
		return
	}

	h.sendJSON(w, DetectionsResponse{Detections: records, Counts: counts}, http.StatusOK)
}

func (h *APIHandler) ModelsHandler(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, ModelsResponse{
		Models:      h.processor.Models(),
		FeatureHash: processor.FeatureHashVersion,
	}, http.StatusOK)
}

func (h *APIHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"models":    len(h.processor.Models()),
	}
	h.sendJSON(w, response, http.StatusOK)
}

// decodeBody reads the request body, checks its signature when signing is
// enabled and decodes it into dst. It writes the error response itself and
// reports whether the handler should continue.
func (h *APIHandler) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.sendError(w, "Unable to read request body", http.StatusBadRequest, "INVALID_REQUEST")
		return false
	}

	if h.signer.Enabled() {
		if valid, err := h.signer.Verify(body, r.Header.Get(SignatureHeader)); !valid || err != nil {
			h.sendError(w, "Invalid signature", http.StatusUnauthorized, "INVALID_SIGNATURE")
			return false
		}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		h.sendError(w, "Invalid request body", http.StatusBadRequest, "INVALID_REQUEST")
		return false
	}
	return true
}

func (h *APIHandler) sendProcessingError(w http.ResponseWriter, err error, attrs ...any) {
	switch {
	case errors.Is(err, model.ErrUnknownModel):
		h.sendError(w, err.Error(), http.StatusBadRequest, "UNKNOWN_MODEL")
	case errors.Is(err, validator.ErrMalformedTransaction), errors.Is(err, validator.ErrMalformedReport):
		h.sendError(w, err.Error(), http.StatusBadRequest, "VALIDATION_ERROR")
	case errors.Is(err, repository.ErrNotFound):
		h.sendError(w, "Detection not found", http.StatusNotFound, "NOT_FOUND")
	case errors.Is(err, context.DeadlineExceeded):
		h.sendError(w, "Request timed out", http.StatusServiceUnavailable, "TIMEOUT")
	default:
		h.logger.Error("Request processing failed",
			append(attrs, slog.String("error", err.Error()))...)
		h.sendError(w, "Internal error", http.StatusInternalServerError, "SERVER_ERROR")
	}
}

func (h *APIHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func (h *APIHandler) sendError(w http.ResponseWriter, message string, statusCode int, code string) {
	errorResponse := ErrorResponse{
		Error: message,
		Code:  code,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(errorResponse)

	h.logger.Warn("API error response",
		slog.String("message", message),
		slog.String("code", code),
		slog.Int("status", statusCode))
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/predict/{model_name}", h.PredictHandler)
	mux.HandleFunc("POST /api/v1/predict/{model_name}/batch", h.PredictBatchHandler)
	mux.HandleFunc("POST /api/v1/reports", h.ReportHandler)
	mux.HandleFunc("GET /api/v1/detections", h.GetDetectionHandler)
	mux.HandleFunc("GET /api/v1/models", h.ModelsHandler)
	mux.HandleFunc("GET /api/health", h.HealthCheckHandler)
}
