// Package handlers provides HTTP handlers for portfolio optimization.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"

	maxBodyBytes = 1 << 20
)

// Optimizer is the part of the optimizer service the handlers use.
type Optimizer interface {
	Options() optimization.Options
	OptimizeWithOptions(riskTolerance float64, portfolio domain.Portfolio, opts optimization.Options) (*optimization.AllocationResult, error)
	Frontier(portfolio domain.Portfolio, tolerances []float64, opts optimization.Options) ([]optimization.FrontierPoint, error)
}

// Handler handles portfolio optimization HTTP requests
type Handler struct {
	optimizer        Optimizer
	defaultPortfolio domain.Portfolio
	log              zerolog.Logger
}

// NewHandler creates a new optimization handler
func NewHandler(optimizer Optimizer, defaultPortfolio domain.Portfolio, log zerolog.Logger) *Handler {
	return &Handler{
		optimizer:        optimizer,
		defaultPortfolio: defaultPortfolio,
		log:              log.With().Str("handler", "optimization").Logger(),
	}
}

// OptimizeRequest is the body of POST /api/portfolio/optimize.
// Omitted options fields keep the service defaults.
type OptimizeRequest struct {
	RiskTolerance *float64              `json:"riskTolerance" msgpack:"riskTolerance"`
	Portfolio     domain.Portfolio      `json:"portfolio,omitempty" msgpack:"portfolio,omitempty"`
	Options       *optimization.Options `json:"options,omitempty" msgpack:"options,omitempty"`
}

// FrontierRequest is the body of POST /api/portfolio/frontier.
type FrontierRequest struct {
	Portfolio  domain.Portfolio      `json:"portfolio,omitempty" msgpack:"portfolio,omitempty"`
	Tolerances []float64             `json:"tolerances,omitempty" msgpack:"tolerances,omitempty"`
	Options    *optimization.Options `json:"options,omitempty" msgpack:"options,omitempty"`
}

// HandleGetPortfolio handles GET /api/portfolio
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"data": h.defaultPortfolio,
		"metadata": map[string]interface{}{
			"timestamp":   time.Now().Format(time.RFC3339),
			"total_value": h.defaultPortfolio.TotalValue(),
		},
	}
	h.write(w, r, http.StatusOK, response)
}

// HandleOptimize handles POST /api/portfolio/optimize
func (h *Handler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	defaults := h.optimizer.Options()
	req := OptimizeRequest{Options: &defaults}
	if err := h.decode(w, r, &req); err != nil {
		h.log.Debug().Err(err).Msg("Invalid optimize request")
		h.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if req.RiskTolerance == nil {
		h.writeError(w, r, http.StatusBadRequest, (&optimization.ValidationError{
			Field:  "riskTolerance",
			Reason: "is required",
		}).Error())
		return
	}

	portfolio := req.Portfolio
	if portfolio == nil {
		portfolio = h.defaultPortfolio
	}
	opts := defaults
	if req.Options != nil {
		opts = *req.Options
	}

	result, err := h.optimizer.OptimizeWithOptions(*req.RiskTolerance, portfolio, opts)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	id := uuid.New().String()
	if result.Fallback {
		h.log.Warn().
			Str("id", id).
			Str("warning", result.Warning).
			Msg("Optimization fell back to original allocation")
	}

	response := map[string]interface{}{
		"data": result,
		"metadata": map[string]interface{}{
			"id":             id,
			"timestamp":      time.Now().Format(time.RFC3339),
			"risk_tolerance": *req.RiskTolerance,
		},
	}
	h.write(w, r, http.StatusOK, response)
}

// HandleFrontier handles POST /api/portfolio/frontier
func (h *Handler) HandleFrontier(w http.ResponseWriter, r *http.Request) {
	defaults := h.optimizer.Options()
	req := FrontierRequest{Options: &defaults}
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	portfolio := req.Portfolio
	if portfolio == nil {
		portfolio = h.defaultPortfolio
	}
	opts := defaults
	if req.Options != nil {
		opts = *req.Options
	}

	points, err := h.optimizer.Frontier(portfolio, req.Tolerances, opts)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	response := map[string]interface{}{
		"data": points,
		"metadata": map[string]interface{}{
			"id":        uuid.New().String(),
			"timestamp": time.Now().Format(time.RFC3339),
			"points":    len(points),
		},
	}
	h.write(w, r, http.StatusOK, response)
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if optimization.IsClientError(err) {
		h.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	h.log.Error().Err(err).Msg("Optimization failed")
	h.writeError(w, r, http.StatusInternalServerError, "optimization failed")
}

// decode reads a JSON or msgpack request body into v, by Content-Type.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	if isMsgpack(r.Header.Get("Content-Type")) {
		if err := msgpack.NewDecoder(body).Decode(v); err != nil {
			return fmt.Errorf("invalid request body: %w", err)
		}
		return nil
	}

	if err := json.NewDecoder(body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("invalid request body: empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (h *Handler) write(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if strings.Contains(r.Header.Get("Accept"), contentTypeMsgpack) {
		h.writeMsgpack(w, status, data)
		return
	}
	h.writeJSON(w, status, data)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.write(w, r, status, map[string]string{"error": message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeMsgpack(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeMsgpack)
	w.WriteHeader(status)

	if err := msgpack.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode msgpack response")
	}
}

func isMsgpack(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mediaType == contentTypeMsgpack || mediaType == "application/x-msgpack")
}
