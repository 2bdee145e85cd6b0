package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/DeafMist/media-aggregator/internal/models"
)

const mediastackBaseURL = "http://api.mediastack.com"

// MediastackQuery filters the Mediastack news endpoint. Dates use YYYY-MM-DD;
// a missing DateTo means today.
type MediastackQuery struct {
	Keywords   string
	Countries  string
	Categories string
	DateFrom   string
	DateTo     string
	Limit      int
}

// MediastackClient talks to the Mediastack API.
type MediastackClient struct {
	base
	apiKey string
}

func NewMediastackClient(apiKey string, opts ...Option) (*MediastackClient, error) {
	if err := requireCredential("Mediastack API key", apiKey); err != nil {
		return nil, err
	}
	return &MediastackClient{base: newBase(SourceMediastack, mediastackBaseURL, opts), apiKey: apiKey}, nil
}

type mediastackResponse struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Data []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		Source      string `json:"source"`
		PublishedAt string `json:"published_at"`
		Category    string `json:"category"`
		Country     string `json:"country"`
		Language    string `json:"language"`
		Author      string `json:"author"`
		Image       string `json:"image"`
	} `json:"data"`
}

// Fetch returns up to q.Limit articles, newest first.
func (c *MediastackClient) Fetch(ctx context.Context, q MediastackQuery) ([]models.Article, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	params := url.Values{}
	params.Set("access_key", c.apiKey)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("sort", "published_desc")
	params.Set("languages", "en")
	setIfNotEmpty(params, "keywords", q.Keywords)
	setIfNotEmpty(params, "countries", q.Countries)
	setIfNotEmpty(params, "categories", q.Categories)
	if q.DateFrom != "" {
		to := q.DateTo
		if to == "" {
			to = c.now().Format("2006-01-02")
		}
		params.Set("date", q.DateFrom+","+to)
	}

	var payload mediastackResponse
	if err := c.getJSON(ctx, "/v1/news", params, nil, &payload); err != nil {
		return nil, err
	}
	if payload.Error != nil {
		return nil, fmt.Errorf("%s: api error %s: %s", c.name, payload.Error.Code, payload.Error.Message)
	}

	articles := make([]models.Article, 0, len(payload.Data))
	for _, item := range payload.Data {
		source := item.Source
		if source == "" {
			source = "Mediastack"
		}

		article := models.Article{
			Title:         item.Title,
			Description:   item.Description,
			URL:           item.URL,
			Source:        source,
			PublishedDate: item.PublishedAt,
			Category:      item.Category,
			Country:       item.Country,
			Language:      item.Language,
			Author:        item.Author,
			Image:         item.Image,
		}
		if err := c.persist(article, SourceMediastack); err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}

	return articles, nil
}
