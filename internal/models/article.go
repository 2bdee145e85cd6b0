package models

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Article is a news item normalized from one of the news APIs.
type Article struct {
	Title         string   `json:"title"`
	Abstract      string   `json:"abstract,omitempty"`
	Description   string   `json:"description,omitempty"`
	Content       string   `json:"content,omitempty"`
	LeadParagraph string   `json:"lead_paragraph,omitempty"`
	URL           string   `json:"url"`
	Source        string   `json:"source"`
	PublishedDate string   `json:"published_date"`
	Author        string   `json:"author,omitempty"`
	Category      string   `json:"category,omitempty"`
	Section       string   `json:"section,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	Country       string   `json:"country,omitempty"`
	Language      string   `json:"language,omitempty"`
	Image         string   `json:"image,omitempty"`
}

// IndexedArticle is the search-side copy of an Article.
type IndexedArticle struct {
	Article
	IndexedDate string `json:"indexed_date"`
}

func (a Article) Kind() Kind { return KindArticle }

// StoreID hashes the url, falling back to title+published_date when the url is empty.
// Two url-less articles with empty title and date share an id.
func (a Article) StoreID() (string, error) {
	key := a.URL
	if key == "" {
		key = a.Title + a.PublishedDate
	}
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:]), nil
}

// DocumentID is the MD5 of the url. Url-less articles get a backend-assigned id
// and are therefore not deduplicated across indexing runs.
func (a Article) DocumentID() string {
	if a.URL == "" {
		return ""
	}
	sum := md5.Sum([]byte(a.URL))
	return hex.EncodeToString(sum[:])
}

func (a Article) Document(indexedAt time.Time) any {
	return IndexedArticle{Article: a, IndexedDate: indexedAt.UTC().Format(IndexedDateLayout)}
}
