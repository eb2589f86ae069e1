// Package tools implements the external lookups the specialist agents can call.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	// pageTextLimit caps the extracted text per fetched page.
	pageTextLimit = 2000
	// maxResultPages limits how many search hits are fetched.
	maxResultPages = 2

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"
)

// SearchClient queries the web search API and fetches result pages.
type SearchClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewSearchClient creates a search client for the given API endpoint.
func NewSearchClient(url, apiKey string) *SearchClient {
	return &SearchClient{
		url:    url,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type searchRequest struct {
	Query     string `json:"query"`
	Freshness string `json:"freshness"`
	Summary   bool   `json:"summary"`
}

type searchResponse struct {
	Data struct {
		WebPages struct {
			Value []struct {
				URL string `json:"url"`
			} `json:"value"`
		} `json:"webPages"`
	} `json:"data"`
}

// Search runs a query and returns the cleaned text of the top result pages.
// Pages that fail to fetch are skipped.
func (c *SearchClient) Search(ctx context.Context, query string) ([]string, error) {
	urls, err := c.resultURLs(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(urls) > maxResultPages {
		urls = urls[:maxResultPages]
	}

	var contents []string
	for _, u := range urls {
		text, err := c.pageText(ctx, u)
		if err != nil {
			continue
		}
		contents = append(contents, text)
	}
	return contents, nil
}

// AttractionDetails looks up each attraction by name and returns the text of
// its best search hit. Names without results map to a placeholder.
func (c *SearchClient) AttractionDetails(ctx context.Context, names []string) (map[string]string, error) {
	details := make(map[string]string, len(names))
	for _, name := range names {
		contents, err := c.Search(ctx, fmt.Sprintf("景点：%s开放时间地址详细信息", name))
		if err != nil {
			return nil, err
		}
		if len(contents) > 0 {
			details[name] = contents[0]
		} else {
			details[name] = "暂无信息"
		}
	}
	return details, nil
}

func (c *SearchClient) resultURLs(ctx context.Context, query string) ([]string, error) {
	payload, err := json.Marshal(searchRequest{
		Query:     query,
		Freshness: "noLimit",
		Summary:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API status %s", resp.Status)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	urls := make([]string, 0, len(result.Data.WebPages.Value))
	for _, page := range result.Data.WebPages.Value {
		urls = append(urls, page.URL)
	}
	return urls, nil
}

// pageText fetches a URL and strips its HTML down to visible text.
func (c *SearchClient) pageText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create page request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("page status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}

	text := extractText(body)
	runes := []rune(text)
	if len(runes) > pageTextLimit {
		text = string(runes[:pageTextLimit])
	}
	return text, nil
}

// extractText walks an HTML document collecting text nodes, skipping
// script and style subtrees.
func extractText(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return string(body)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				sb.WriteString(trimmed)
				sb.WriteString("\n")
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return strings.TrimSpace(sb.String())
}
