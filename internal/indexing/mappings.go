package indexing

import "github.com/DeafMist/media-aggregator/internal/models"

const dateFormat = "strict_date_optional_time||epoch_millis"

func keyword() map[string]any { return map[string]any{"type": "keyword"} }

func analyzed(analyzer string) map[string]any {
	return map[string]any{"type": "text", "analyzer": analyzer}
}

func date() map[string]any { return map[string]any{"type": "date", "format": dateFormat} }

func settings(analyzers map[string]any) map[string]any {
	return map[string]any{
		"number_of_shards":   2,
		"number_of_replicas": 1,
		"analysis": map[string]any{
			"analyzer": analyzers,
		},
	}
}

// ArticleMapping is the index body for article indices.
func ArticleMapping() map[string]any {
	return map[string]any{
		"settings": settings(map[string]any{
			"english_analyzer": map[string]any{"type": "english"},
		}),
		"mappings": map[string]any{
			"properties": map[string]any{
				"title":          analyzed("english_analyzer"),
				"description":    analyzed("english_analyzer"),
				"abstract":       analyzed("english_analyzer"),
				"content":        analyzed("english_analyzer"),
				"lead_paragraph": analyzed("english_analyzer"),
				"url":            keyword(),
				"source":         keyword(),
				"author":         keyword(),
				"published_date": date(),
				"indexed_date":   date(),
				"category":       keyword(),
				"section":        keyword(),
				"keywords":       keyword(),
				"country":        keyword(),
				"language":       keyword(),
				"image":          keyword(),
			},
		},
	}
}

// PostMapping is the index body for the social post index.
func PostMapping() map[string]any {
	return map[string]any{
		"settings": settings(map[string]any{
			"tweet_analyzer": map[string]any{"type": "standard", "stopwords": "_english_"},
		}),
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":            keyword(),
				"text":          analyzed("tweet_analyzer"),
				"username":      keyword(),
				"user_id":       keyword(),
				"url":           keyword(),
				"created_at":    date(),
				"indexed_date":  date(),
				"retweet_count": map[string]any{"type": "integer"},
				"reply_count":   map[string]any{"type": "integer"},
				"like_count":    map[string]any{"type": "integer"},
				"quote_count":   map[string]any{"type": "integer"},
				"hashtags":      keyword(),
				"mentions":      keyword(),
				"urls":          keyword(),
				"topics":        keyword(),
				"entities":      keyword(),
			},
		},
	}
}

// MappingFor returns the index body for records of kind.
func MappingFor(kind models.Kind) map[string]any {
	if kind == models.KindSocialPost {
		return PostMapping()
	}
	return ArticleMapping()
}
