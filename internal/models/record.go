package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind tells which record variant a value or a stored file holds.
type Kind int

const (
	KindArticle Kind = iota + 1
	KindSocialPost
)

func (k Kind) String() string {
	switch k {
	case KindArticle:
		return "article"
	case KindSocialPost:
		return "post"
	default:
		return "unknown"
	}
}

// ParseKind accepts the names produced by Kind.String.
func ParseKind(raw string) (Kind, error) {
	switch raw {
	case "article", "articles":
		return KindArticle, nil
	case "post", "posts", "tweet", "tweets":
		return KindSocialPost, nil
	default:
		return 0, fmt.Errorf("unknown record kind %q", raw)
	}
}

// IndexedDateLayout is the layout of the indexed_date field attached to index copies.
const IndexedDateLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	// ErrMissingID is returned for social posts without an id.
	ErrMissingID = errors.New("social post must have an id")
	// ErrEmptyRecord is returned by Decode for null or identity-less stored articles.
	ErrEmptyRecord = errors.New("record has no url, title or published date")
	// ErrNegativeCount is returned when an engagement counter is below zero.
	ErrNegativeCount = errors.New("engagement counters cannot be negative")
)

// Record is a normalized item produced by a fetcher.
type Record interface {
	Kind() Kind
	// StoreID names the file the record is persisted under.
	StoreID() (string, error)
	// DocumentID is the search document id; empty lets the backend assign one.
	DocumentID() string
	// Document returns the index copy of the record stamped with indexedAt.
	Document(indexedAt time.Time) any
}

// FlexibleID is a string identifier that also decodes from a JSON number.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = FlexibleID(n.String())
	return nil
}

func (id FlexibleID) String() string { return string(id) }

// Decode parses a stored JSON record of the given kind.
func Decode(kind Kind, data []byte) (Record, error) {
	switch kind {
	case KindArticle:
		var a Article
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, err
		}
		if a.URL == "" && a.Title == "" && a.PublishedDate == "" {
			return nil, ErrEmptyRecord
		}
		return a, nil
	case KindSocialPost:
		var p SocialPost
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("decode: unknown record kind %d", kind)
	}
}

// AsRecords widens a slice of one variant to []Record.
func AsRecords[T Record](items []T) []Record {
	out := make([]Record, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
