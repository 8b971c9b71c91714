package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/storefront-backend/internal/services"
)

type fixedStats struct{ err error }

func (s fixedStats) Products(context.Context) (*services.ProductStats, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.ProductStats{Total: 3, Active: 2, AveragePrice: 19.99, Categories: []services.CategoryCount{}}, nil
}

func (s fixedStats) Categories(context.Context) (*services.CategoryStats, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.CategoryStats{Total: 4, Genders: []services.GenderCount{{Gender: "men", Count: 4}}}, nil
}

func TestStatsHandler(t *testing.T) {
	h := NewStatsHandler(fixedStats{}, nopLog)

	rec := httptest.NewRecorder()
	h.Products(rec, httptest.NewRequest(http.MethodGet, "/products/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status string `json:"status"`
		Data   struct {
			Stats map[string]interface{} `json:"stats"`
		} `json:"data"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, float64(3), body.Data.Stats["totalProducts"])
	assert.Equal(t, 19.99, body.Data.Stats["averagePrice"])

	rec = httptest.NewRecorder()
	h.Categories(rec, httptest.NewRequest(http.MethodGet, "/categories/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"genderStats":[{"gender":"men","count":4}]`)

	rec = httptest.NewRecorder()
	NewStatsHandler(fixedStats{err: errors.New("pipeline failed")}, nopLog).
		Products(rec, httptest.NewRequest(http.MethodGet, "/products/stats", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pipeline failed")
}
