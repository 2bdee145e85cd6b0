// Package stream carries normalized records over Kafka between the fetch
// commands and the indexing worker.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/DeafMist/media-aggregator/internal/models"
)

// ErrEmptySource is returned for envelopes that name no source.
var ErrEmptySource = errors.New("envelope has no source")

// Envelope is the message value published for every record.
type Envelope struct {
	Kind   string          `json:"kind"`
	Source string          `json:"source"`
	Record json.RawMessage `json:"record"`
}

// Wrap encodes rec as an envelope for source.
func Wrap(source string, rec models.Record) (Envelope, error) {
	if strings.TrimSpace(source) == "" {
		return Envelope{}, ErrEmptySource
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s record: %w", rec.Kind(), err)
	}
	return Envelope{Kind: rec.Kind().String(), Source: source, Record: raw}, nil
}

// Unwrap parses a message value back into its source and record.
func Unwrap(value []byte) (string, models.Record, error) {
	var env Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return "", nil, fmt.Errorf("decode envelope: %w", err)
	}
	if strings.TrimSpace(env.Source) == "" {
		return "", nil, ErrEmptySource
	}
	kind, err := models.ParseKind(env.Kind)
	if err != nil {
		return "", nil, err
	}
	if len(env.Record) == 0 {
		return "", nil, errors.New("envelope has no record")
	}
	rec, err := models.Decode(kind, env.Record)
	if err != nil {
		return "", nil, fmt.Errorf("decode %s record: %w", kind, err)
	}
	return env.Source, rec, nil
}
