package handlers

import (
	"net/http"
	"testing"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/optimization"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRegisterRoutes(t *testing.T) {
	handler := NewHandler(brokenOptimizer{}, domain.DefaultPortfolio(), zerolog.Nop())
	router := chi.NewRouter()

	assert.NotPanics(t, func() {
		handler.RegisterRoutes(router)
	}, "RegisterRoutes should not panic")
}

func TestRegisterRoutes_Reachable(t *testing.T) {
	router := setupRouter(nil)

	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodGet, "/api/portfolio", "").Code)
	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, "/api/portfolio/optimize", `{"riskTolerance": 0.02}`).Code)
	assert.Equal(t, http.StatusOK, doJSON(t, router, http.MethodPost, "/api/portfolio/frontier", `{}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, doJSON(t, router, http.MethodGet, "/api/portfolio/optimize", "").Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, router, http.MethodPost, "/api/portfolio/rebalance", "{}").Code)
}

var _ Optimizer = (*optimization.OptimizerService)(nil)
