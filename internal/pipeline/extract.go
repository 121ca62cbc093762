package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const extractUserAgent = "Mozilla/5.0 (compatible; DataPipeline/1.0)"

// sourceSpec fixes the request shape for a known source name. New sources
// get an entry here instead of a branch in the orchestrator.
type sourceSpec struct {
	url   string
	query func(limit int) url.Values
}

var sourceSpecs = map[string]sourceSpec{
	"marketing": {
		url: "https://fakestoreapi.com/products",
		query: func(limit int) url.Values {
			return url.Values{"limit": {strconv.Itoa(limit)}}
		},
	},
	"sales": {
		url: "https://jsonplaceholder.typicode.com/posts",
		query: func(limit int) url.Values {
			return url.Values{"_limit": {strconv.Itoa(limit)}}
		},
	},
	"crm": {
		url: "https://randomuser.me/api/",
		query: func(limit int) url.Values {
			return url.Values{"results": {strconv.Itoa(limit)}}
		},
	},
}

// Extractor fetches raw records from a source API over a single verified
// HTTPS client.
type Extractor struct {
	client *http.Client
}

func NewExtractor(timeout time.Duration) *Extractor {
	return &Extractor{client: &http.Client{Timeout: timeout}}
}

func NewExtractorWithClient(client *http.Client) *Extractor {
	return &Extractor{client: client}
}

// Extract fetches and normalizes the records for one source. All failures
// come back as an error; nothing panics on unexpected response shapes.
func (e *Extractor) Extract(ctx context.Context, sourceName string, cfg SourceConfig) ([]any, error) {
	limit := cfg.Limit()

	target, err := requestURL(sourceName, cfg, limit)
	if err != nil {
		return nil, err
	}

	log.Printf("fetching %s from %s", sourceName, target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", sourceName, err)
	}
	req.Header.Set("User-Agent", extractUserAgent)
	req.Header.Set("Accept", "application/json")

	res, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", sourceName, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", sourceName, err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: http %d: %s", sourceName, res.StatusCode, truncate(string(raw), 200))
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("invalid json from %s: %w", sourceName, err)
	}

	return normalizeRecords(data, limit), nil
}

// requestURL resolves the endpoint and query string for a source. Known
// names use their registry entry; anything else falls back to the
// configured URL with no parameters.
func requestURL(sourceName string, cfg SourceConfig, limit int) (string, error) {
	var endpoint string
	var query url.Values
	if s, ok := sourceSpecs[sourceName]; ok {
		endpoint = s.url
		query = s.query(limit)
	} else {
		if cfg.URL == "" {
			return "", fmt.Errorf("source %s has no url configured", sourceName)
		}
		endpoint = cfg.URL
		query = url.Values{}
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid url for %s: %w", sourceName, err)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

// normalizeRecords flattens the response shapes the three APIs are known
// to return: {results:[...]}, {data:[...]}, {products:[...]}, a bare
// object, or a bare list truncated to the limit.
func normalizeRecords(data any, limit int) []any {
	switch v := data.(type) {
	case map[string]any:
		for _, key := range []string{"results", "data", "products"} {
			inner, ok := v[key]
			if !ok {
				continue
			}
			if list, ok := inner.([]any); ok {
				return list
			}
			return []any{inner}
		}
		return []any{v}
	case []any:
		if limit > 0 && len(v) > limit {
			return v[:limit]
		}
		return v
	default:
		return []any{data}
	}
}
