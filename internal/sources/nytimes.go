package sources

import (
	"context"
	"net/url"

	"github.com/DeafMist/media-aggregator/internal/models"
)

const nytimesBaseURL = "https://api.nytimes.com"

// NYTimesQuery filters the Article Search API. Dates use YYYYMMDD.
type NYTimesQuery struct {
	Query     string
	BeginDate string
	EndDate   string
}

// NYTimesClient talks to the NY Times Article Search API.
type NYTimesClient struct {
	base
	apiKey string
}

func NewNYTimesClient(apiKey string, opts ...Option) (*NYTimesClient, error) {
	if err := requireCredential("NY Times API key", apiKey); err != nil {
		return nil, err
	}
	return &NYTimesClient{base: newBase(SourceNYTimes, nytimesBaseURL, opts), apiKey: apiKey}, nil
}

type nytimesResponse struct {
	Response struct {
		Docs []nytimesDoc `json:"docs"`
	} `json:"response"`
}

type nytimesDoc struct {
	Headline struct {
		Main string `json:"main"`
	} `json:"headline"`
	Abstract      string `json:"abstract"`
	LeadParagraph string `json:"lead_paragraph"`
	WebURL        string `json:"web_url"`
	PubDate       string `json:"pub_date"`
	Keywords      []struct {
		Value string `json:"value"`
	} `json:"keywords"`
	SectionName string `json:"section_name"`
	Byline      struct {
		Original string `json:"original"`
	} `json:"byline"`
}

// Fetch returns the first page of matching articles.
func (c *NYTimesClient) Fetch(ctx context.Context, q NYTimesQuery) ([]models.Article, error) {
	params := url.Values{}
	params.Set("api-key", c.apiKey)
	params.Set("sort", "relevance")
	setIfNotEmpty(params, "q", q.Query)
	setIfNotEmpty(params, "begin_date", q.BeginDate)
	setIfNotEmpty(params, "end_date", q.EndDate)

	var payload nytimesResponse
	if err := c.getJSON(ctx, "/svc/search/v2/articlesearch.json", params, nil, &payload); err != nil {
		return nil, err
	}

	articles := make([]models.Article, 0, len(payload.Response.Docs))
	for _, doc := range payload.Response.Docs {
		keywords := make([]string, 0, len(doc.Keywords))
		for _, kw := range doc.Keywords {
			keywords = append(keywords, kw.Value)
		}

		article := models.Article{
			Title:         doc.Headline.Main,
			Abstract:      doc.Abstract,
			LeadParagraph: doc.LeadParagraph,
			URL:           doc.WebURL,
			Source:        "NY Times",
			PublishedDate: doc.PubDate,
			Keywords:      uniqueStrings(keywords),
			Section:       doc.SectionName,
			Author:        doc.Byline.Original,
		}
		if err := c.persist(article, SourceNYTimes); err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}

	return articles, nil
}
