package models

import "time"

// SocialPost is a post fetched from the social media API.
type SocialPost struct {
	ID           FlexibleID `json:"id"`
	Text         string     `json:"text"`
	Username     string     `json:"username"`
	UserID       FlexibleID `json:"user_id"`
	URL          string     `json:"url"`
	CreatedAt    string     `json:"created_at,omitempty"`
	RetweetCount int        `json:"retweet_count"`
	ReplyCount   int        `json:"reply_count"`
	LikeCount    int        `json:"like_count"`
	QuoteCount   int        `json:"quote_count"`
	Hashtags     []string   `json:"hashtags,omitempty"`
	Mentions     []string   `json:"mentions,omitempty"`
	URLs         []string   `json:"urls,omitempty"`
	Topics       []string   `json:"topics,omitempty"`
	Entities     []string   `json:"entities,omitempty"`
}

// IndexedPost is the search-side copy of a SocialPost.
type IndexedPost struct {
	SocialPost
	IndexedDate string `json:"indexed_date"`
}

func (p SocialPost) Kind() Kind { return KindSocialPost }

// Validate checks the invariants a post must satisfy before it is persisted.
func (p SocialPost) Validate() error {
	if p.ID == "" {
		return ErrMissingID
	}
	if p.RetweetCount < 0 || p.ReplyCount < 0 || p.LikeCount < 0 || p.QuoteCount < 0 {
		return ErrNegativeCount
	}
	return nil
}

func (p SocialPost) StoreID() (string, error) {
	if p.ID == "" {
		return "", ErrMissingID
	}
	return string(p.ID), nil
}

func (p SocialPost) DocumentID() string { return string(p.ID) }

func (p SocialPost) Document(indexedAt time.Time) any {
	return IndexedPost{SocialPost: p, IndexedDate: indexedAt.UTC().Format(IndexedDateLayout)}
}
