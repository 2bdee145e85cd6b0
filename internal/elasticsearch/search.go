package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// searchFields are the analyzed fields of both article and post indices.
var searchFields = []string{
	"title^3",
	"description^2",
	"abstract^2",
	"lead_paragraph",
	"content",
	"text^2",
}

// SearchParams narrow the search endpoint query.
type SearchParams struct {
	Indices []string
	Query   string
	Source  string
	From    int
	Size    int
	Sort    string
	Start   *time.Time
	End     *time.Time
}

// Hit is one matching document.
type Hit struct {
	Index  string          `json:"index"`
	ID     string          `json:"id"`
	Score  float64         `json:"score"`
	Source json.RawMessage `json:"source"`
}

// SearchResult bundles hits and total count.
type SearchResult struct {
	Total int64 `json:"total"`
	Items []Hit `json:"items"`
}

// BuildSearchBody renders params as an Elasticsearch query DSL body.
func BuildSearchBody(params SearchParams) map[string]any {
	if params.Size <= 0 {
		params.Size = 20
	}
	if params.Size > 200 {
		params.Size = 200
	}
	if params.From < 0 {
		params.From = 0
	}

	must := make([]map[string]any, 0, 1)
	filters := make([]map[string]any, 0, 2)

	if params.Query != "" {
		must = append(must, map[string]any{
			"multi_match": map[string]any{
				"query":  params.Query,
				"fields": searchFields,
			},
		})
	}

	if params.Source != "" {
		filters = append(filters, map[string]any{
			"bool": map[string]any{
				"should": []map[string]any{
					{"term": map[string]any{"source": params.Source}},
					{"term": map[string]any{"username": params.Source}},
				},
				"minimum_should_match": 1,
			},
		})
	}

	if params.Start != nil || params.End != nil {
		rangeQuery := map[string]any{}
		if params.Start != nil {
			rangeQuery["gte"] = params.Start.UTC().Format(time.RFC3339)
		}
		if params.End != nil {
			rangeQuery["lte"] = params.End.UTC().Format(time.RFC3339)
		}
		filters = append(filters, map[string]any{
			"range": map[string]any{
				"indexed_date": rangeQuery,
			},
		})
	}

	boolQuery := map[string]any{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filters) > 0 {
		boolQuery["filter"] = filters
	}
	if len(must) == 0 && len(filters) == 0 {
		boolQuery["must"] = []map[string]any{
			{"match_all": map[string]any{}},
		}
	}

	body := map[string]any{
		"from":             params.From,
		"size":             params.Size,
		"track_total_hits": true,
		"query": map[string]any{
			"bool": boolQuery,
		},
	}

	sortField := params.Sort
	if sortField == "" {
		if params.Query != "" {
			sortField = "_score:desc"
		} else {
			sortField = "indexed_date:desc"
		}
	}

	parts := strings.Split(sortField, ":")
	order := "desc"
	field := parts[0]
	if field == "" {
		field = "indexed_date"
	}
	if len(parts) > 1 && parts[1] != "" {
		order = parts[1]
	}
	sortSpec := map[string]any{"order": order}
	if field != "_score" {
		// published_date is absent from the tweets mapping
		sortSpec["unmapped_type"] = "date"
	}
	body["sort"] = []map[string]any{{field: sortSpec}}

	return body
}

// Search executes a bool query across params.Indices.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	payload, err := json.Marshal(BuildSearchBody(params))
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(params.Indices...),
		c.es.Search.WithBody(bytes.NewReader(payload)),
		c.es.Search.WithIgnoreUnavailable(true),
		c.es.Search.WithAllowNoIndices(true),
	)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Index  string          `json:"_index"`
				ID     string          `json:"_id"`
				Score  float64         `json:"_score"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]Hit, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		items = append(items, Hit{Index: hit.Index, ID: hit.ID, Score: hit.Score, Source: hit.Source})
	}

	return &SearchResult{
		Total: parsed.Hits.Total.Value,
		Items: items,
	}, nil
}
