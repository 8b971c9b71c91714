package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/AnshRaj112/storefront-backend/internal/apperr"
	"github.com/AnshRaj112/storefront-backend/internal/services"
)

// CatalogStats is the services.CatalogStats surface the HTTP layer uses.
type CatalogStats interface {
	Products(ctx context.Context) (*services.ProductStats, error)
	Categories(ctx context.Context) (*services.CategoryStats, error)
}

// StatsHandler serves the catalog dashboards.
type StatsHandler struct {
	stats CatalogStats
	log   *zap.Logger
}

func NewStatsHandler(stats CatalogStats, log *zap.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, log: log}
}

type StatsResponse struct {
	Status string    `json:"status"`
	Data   StatsData `json:"data"`
}

type StatsData struct {
	Stats interface{} `json:"stats"`
}

// Products handles GET /products/stats
func (h *StatsHandler) Products(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Products(r.Context())
	if err != nil {
		writeError(w, r, h.log, apperr.Unexpected("could not compute product stats", err))
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Status: statusSuccess, Data: StatsData{Stats: stats}})
}

// Categories handles GET /categories/stats
func (h *StatsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Categories(r.Context())
	if err != nil {
		writeError(w, r, h.log, apperr.Unexpected("could not compute category stats", err))
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Status: statusSuccess, Data: StatsData{Stats: stats}})
}
