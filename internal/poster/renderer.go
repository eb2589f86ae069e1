// Package poster renders per-day itinerary posters through the external
// rendering service.
package poster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/zhenwang/tripflow/internal/models"
)

// Renderer is a client for the poster rendering service.
type Renderer struct {
	url        string
	httpClient *http.Client
}

// NewRenderer creates a renderer client. URL points at the render endpoint.
func NewRenderer(url string) *Renderer {
	return &Renderer{
		url: url,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type renderRequest struct {
	DailyPlans any `json:"daily_plans"`
}

type renderResponse struct {
	Posters []models.Poster `json:"posters"`
}

// RenderAll renders one poster per day plan.
func (r *Renderer) RenderAll(ctx context.Context, dailyPlans any) ([]models.Poster, error) {
	payload, err := json.Marshal(renderRequest{DailyPlans: dailyPlans})
	if err != nil {
		return nil, fmt.Errorf("marshal render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute render request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poster service status %s", resp.Status)
	}

	var result renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode render response: %w", err)
	}
	return result.Posters, nil
}
