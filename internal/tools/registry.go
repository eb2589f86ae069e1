package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/zhenwang/tripflow/internal/metrics"
)

// Tool names exposed to the LLM.
const (
	ToolWebSearch        = "web_search"
	ToolAttractionDetail = "attraction_detail"
	ToolTransitRoute     = "transit_route"
	ToolTrainTickets     = "train_tickets"
)

// Registry dispatches tool calls from the agent loop to the clients.
// Unconfigured clients may be nil; calls to them return an error result
// that the agent sees as tool output.
type Registry struct {
	search    *SearchClient
	amap      *AmapClient
	train     *TrainClient
	collector *metrics.Collector
}

// NewRegistry creates a registry over the given clients.
func NewRegistry(search *SearchClient, amap *AmapClient, train *TrainClient) *Registry {
	return &Registry{search: search, amap: amap, train: train}
}

// SetCollector enables per-call timing on the given collector.
func (r *Registry) SetCollector(c *metrics.Collector) {
	r.collector = c
}

// SearchTools returns the tool definitions for search-capable agents.
func (r *Registry) SearchTools() []llms.Tool {
	return []llms.Tool{webSearchTool, attractionDetailTool}
}

// TrafficTools returns the tool definitions for the traffic agent.
func (r *Registry) TrafficTools() []llms.Tool {
	return []llms.Tool{webSearchTool, transitRouteTool, trainTicketsTool}
}

var webSearchTool = llms.Tool{
	Type: "function",
	Function: &llms.FunctionDefinition{
		Name:        ToolWebSearch,
		Description: "搜索互联网获取旅游相关的最新信息，返回网页正文摘要",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "搜索关键词",
				},
			},
			"required": []string{"query"},
		},
	},
}

var attractionDetailTool = llms.Tool{
	Type: "function",
	Function: &llms.FunctionDefinition{
		Name:        ToolAttractionDetail,
		Description: "查询多个景点的开放时间、门票和地址等详细信息",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"attractions": map[string]any{
					"type":        "array",
					"description": "景点列表",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name": map[string]any{"type": "string"},
						},
						"required": []string{"name"},
					},
				},
			},
			"required": []string{"attractions"},
		},
	},
}

var transitRouteTool = llms.Tool{
	Type: "function",
	Function: &llms.FunctionDefinition{
		Name:        ToolTransitRoute,
		Description: "查询从出发地到目的地的公共交通换乘路线",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"origin":      map[string]any{"type": "string", "description": "出发地"},
				"destination": map[string]any{"type": "string", "description": "目的地"},
			},
			"required": []string{"origin", "destination"},
		},
	},
}

var trainTicketsTool = llms.Tool{
	Type: "function",
	Function: &llms.FunctionDefinition{
		Name:        ToolTrainTickets,
		Description: "查询两地之间指定日期的火车票班次和余票",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"departure_station": map[string]any{"type": "string"},
				"arrival_station":   map[string]any{"type": "string"},
				"date":              map[string]any{"type": "string", "description": "YYYY-MM-DD"},
			},
			"required": []string{"departure_station", "arrival_station", "date"},
		},
	},
}

// Execute runs a named tool with JSON-encoded arguments.
func (r *Registry) Execute(ctx context.Context, name, arguments string) (string, error) {
	if r.collector != nil {
		start := time.Now()
		defer func() {
			r.collector.RecordTiming(metrics.OpToolCall, time.Since(start))
		}()
	}

	switch name {
	case ToolWebSearch:
		if r.search == nil {
			return "", fmt.Errorf("search API not configured")
		}
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("parse %s arguments: %w", name, err)
		}
		contents, err := r.search.Search(ctx, args.Query)
		if err != nil {
			return "", err
		}
		return strings.Join(contents, "\n\n"), nil

	case ToolAttractionDetail:
		if r.search == nil {
			return "", fmt.Errorf("search API not configured")
		}
		var args struct {
			Attractions []struct {
				Name string `json:"name"`
			} `json:"attractions"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("parse %s arguments: %w", name, err)
		}
		names := make([]string, 0, len(args.Attractions))
		for _, a := range args.Attractions {
			names = append(names, a.Name)
		}
		details, err := r.search.AttractionDetails(ctx, names)
		if err != nil {
			return "", err
		}
		data, err := json.Marshal(details)
		if err != nil {
			return "", fmt.Errorf("marshal details: %w", err)
		}
		return string(data), nil

	case ToolTransitRoute:
		if r.amap == nil {
			return "", fmt.Errorf("route API not configured")
		}
		var args struct {
			Origin      string `json:"origin"`
			Destination string `json:"destination"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("parse %s arguments: %w", name, err)
		}
		return r.amap.TransitRoute(ctx, args.Origin, args.Destination), nil

	case ToolTrainTickets:
		if r.train == nil {
			return "", fmt.Errorf("train API not configured")
		}
		var args struct {
			Departure string `json:"departure_station"`
			Arrival   string `json:"arrival_station"`
			Date      string `json:"date"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "", fmt.Errorf("parse %s arguments: %w", name, err)
		}
		return r.train.Tickets(ctx, args.Departure, args.Arrival, args.Date)

	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}
