package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

// searchFixture wires a fake search API plus result pages on one server.
func searchFixture(t *testing.T, pages map[string]http.HandlerFunc) (*SearchClient, *httptest.Server, *int) {
	t.Helper()

	pageHits := 0
	mux := http.NewServeMux()

	var srv *httptest.Server
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("search called with method %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", got)
		}
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode search request: %v", err)
		}
		if req.Freshness != "noLimit" || !req.Summary {
			t.Errorf("unexpected search request: %+v", req)
		}

		var resp searchResponse
		for path := range pages {
			resp.Data.WebPages.Value = append(resp.Data.WebPages.Value, struct {
				URL string `json:"url"`
			}{URL: srv.URL + path})
		}
		json.NewEncoder(w).Encode(resp)
	})
	for path, handler := range pages {
		h := handler
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			pageHits++
			h(w, r)
		})
	}

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return NewSearchClient(srv.URL+"/search", "test-key"), srv, &pageHits
}

func htmlPage(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><head><style>.x{}</style></head><body><script>var x=1;</script><p>%s</p></body></html>", body)
	}
}

func TestSearch(t *testing.T) {
	client, _, _ := searchFixture(t, map[string]http.HandlerFunc{
		"/page1": htmlPage("马岭河峡谷门票80元"),
	})

	contents, err := client.Search(context.Background(), "兴义景点")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 page, got %d", len(contents))
	}
	if !strings.Contains(contents[0], "马岭河峡谷门票80元") {
		t.Errorf("page text missing content: %q", contents[0])
	}
	if strings.Contains(contents[0], "var x=1") {
		t.Errorf("script text leaked into page content: %q", contents[0])
	}
}

func TestSearchSkipsFailedPages(t *testing.T) {
	client, _, _ := searchFixture(t, map[string]http.HandlerFunc{
		"/ok": htmlPage("正常页面"),
		"/bad": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	})

	contents, err := client.Search(context.Background(), "兴义美食")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(contents) != 1 {
		t.Errorf("expected the failing page to be skipped, got %d pages", len(contents))
	}
}

func TestSearchTruncatesPageText(t *testing.T) {
	long := strings.Repeat("兴", 5000)
	client, _, _ := searchFixture(t, map[string]http.HandlerFunc{
		"/long": htmlPage(long),
	})

	contents, err := client.Search(context.Background(), "兴义")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 page, got %d", len(contents))
	}
	if n := utf8.RuneCountInString(contents[0]); n > pageTextLimit {
		t.Errorf("page text not truncated: %d runes", n)
	}
}

func TestSearchAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewSearchClient(srv.URL, "bad-key")
	if _, err := client.Search(context.Background(), "兴义"); err == nil {
		t.Fatal("expected error for search API failure")
	}
}

func TestAttractionDetailsFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Search succeeds but returns no hits
		json.NewEncoder(w).Encode(searchResponse{})
	}))
	defer srv.Close()

	client := NewSearchClient(srv.URL, "test-key")
	details, err := client.AttractionDetails(context.Background(), []string{"万峰林"})
	if err != nil {
		t.Fatalf("AttractionDetails() error: %v", err)
	}
	if details["万峰林"] != "暂无信息" {
		t.Errorf("expected placeholder for missing results, got %q", details["万峰林"])
	}
}

func TestExtractText(t *testing.T) {
	body := []byte(`<html><body><script>skip()</script><h1>标题</h1><style>p{}</style><p>正文</p></body></html>`)
	got := extractText(body)
	if !strings.Contains(got, "标题") || !strings.Contains(got, "正文") {
		t.Errorf("missing visible text: %q", got)
	}
	if strings.Contains(got, "skip()") || strings.Contains(got, "p{}") {
		t.Errorf("script or style leaked: %q", got)
	}
}
