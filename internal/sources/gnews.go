package sources

import (
	"context"
	"net/url"
	"strconv"

	"github.com/DeafMist/media-aggregator/internal/models"
)

const gnewsBaseURL = "https://gnews.io"

// GNewsQuery selects the search endpoint when Query is set and top headlines
// otherwise. From/To only apply to search, Category only to headlines.
type GNewsQuery struct {
	Query    string
	Category string
	Lang     string
	Country  string
	Max      int
	From     string
	To       string
}

// GNewsClient talks to the GNews API.
type GNewsClient struct {
	base
	apiKey string
}

func NewGNewsClient(apiKey string, opts ...Option) (*GNewsClient, error) {
	if err := requireCredential("GNews API key", apiKey); err != nil {
		return nil, err
	}
	return &GNewsClient{base: newBase(SourceGNews, gnewsBaseURL, opts), apiKey: apiKey}, nil
}

type gnewsResponse struct {
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		URL         string `json:"url"`
		Image       string `json:"image"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// Fetch returns one page of articles from search or top headlines.
func (c *GNewsClient) Fetch(ctx context.Context, q GNewsQuery) ([]models.Article, error) {
	lang, country, limit := q.Lang, q.Country, q.Max
	if lang == "" {
		lang = "en"
	}
	if country == "" {
		country = "us"
	}
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("lang", lang)
	params.Set("country", country)
	params.Set("max", strconv.Itoa(limit))
	params.Set("apikey", c.apiKey)

	path := "/api/v4/top-headlines"
	if q.Query != "" {
		path = "/api/v4/search"
		params.Set("q", q.Query)
		setIfNotEmpty(params, "from", q.From)
		setIfNotEmpty(params, "to", q.To)
	} else {
		setIfNotEmpty(params, "topic", q.Category)
	}

	var payload gnewsResponse
	if err := c.getJSON(ctx, path, params, nil, &payload); err != nil {
		return nil, err
	}

	articles := make([]models.Article, 0, len(payload.Articles))
	for _, item := range payload.Articles {
		source := item.Source.Name
		if source == "" {
			source = "Google News"
		}

		article := models.Article{
			Title:         item.Title,
			Description:   item.Description,
			Content:       item.Content,
			URL:           item.URL,
			Source:        source,
			PublishedDate: item.PublishedAt,
			Image:         item.Image,
		}
		if err := c.persist(article, SourceGNews); err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}

	return articles, nil
}
