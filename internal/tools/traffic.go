package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// RouteUnavailable is returned in place of route data when the geocoding or
// transit lookup does not succeed. Agents treat it as an answer, not a fault.
const RouteUnavailable = "交通信息获取失败"

const defaultAmapBaseURL = "https://restapi.amap.com"

// AmapClient queries the amap geocoding and transit route APIs.
type AmapClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewAmapClient creates a client for the amap REST API.
func NewAmapClient(apiKey string) *AmapClient {
	return &AmapClient{
		apiKey:  apiKey,
		baseURL: defaultAmapBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// NewAmapClientWithBaseURL overrides the API host (used by tests).
func NewAmapClientWithBaseURL(apiKey, baseURL string) *AmapClient {
	c := NewAmapClient(apiKey)
	c.baseURL = baseURL
	return c
}

type geocodeResponse struct {
	Status   string `json:"status"`
	Geocodes []struct {
		Location string `json:"location"`
		CityCode string `json:"citycode"`
	} `json:"geocodes"`
}

type transitResponse struct {
	Status string `json:"status"`
	Route  struct {
		Transits []map[string]any `json:"transits"`
	} `json:"route"`
}

type location struct {
	coords   string
	cityCode string
}

// TransitRoute geocodes both endpoints and queries integrated transit routes
// between them. Any lookup failure yields RouteUnavailable rather than an
// error so the agent can keep planning with what it has.
func (c *AmapClient) TransitRoute(ctx context.Context, origin, destination string) string {
	from, err := c.geocode(ctx, origin)
	if err != nil {
		return RouteUnavailable
	}
	to, err := c.geocode(ctx, destination)
	if err != nil {
		return RouteUnavailable
	}

	query := url.Values{
		"origin":      {from.coords},
		"destination": {to.coords},
		"city1":       {from.cityCode},
		"city2":       {to.cityCode},
		"key":         {c.apiKey},
	}
	var result transitResponse
	if err := c.get(ctx, "/v5/direction/transit/integrated", query, &result); err != nil {
		return RouteUnavailable
	}
	if result.Status != "1" {
		return RouteUnavailable
	}

	data, err := json.Marshal(result.Route.Transits)
	if err != nil {
		return RouteUnavailable
	}
	return string(data)
}

func (c *AmapClient) geocode(ctx context.Context, address string) (location, error) {
	query := url.Values{
		"key":     {c.apiKey},
		"address": {address},
	}
	var result geocodeResponse
	if err := c.get(ctx, "/v3/geocode/geo", query, &result); err != nil {
		return location{}, err
	}
	if result.Status != "1" || len(result.Geocodes) == 0 {
		return location{}, fmt.Errorf("geocode %q: no result", address)
	}
	return location{
		coords:   result.Geocodes[0].Location,
		cityCode: result.Geocodes[0].CityCode,
	}, nil
}

func (c *AmapClient) get(ctx context.Context, path string, query url.Values, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("amap status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// TrainClient queries the train ticket API.
type TrainClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewTrainClient creates a train ticket client.
func NewTrainClient(apiURL, apiKey string) *TrainClient {
	return &TrainClient{
		url:    apiURL,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Tickets returns the raw ticket listing between two stations on a date.
func (c *TrainClient) Tickets(ctx context.Context, departure, arrival, date string) (string, error) {
	query := url.Values{
		"key":               {c.apiKey},
		"search_type":       {"1"},
		"departure_station": {departure},
		"arrival_station":   {arrival},
		"date":              {date},
		"enable_booking":    {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("train API status %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	return string(body), nil
}
