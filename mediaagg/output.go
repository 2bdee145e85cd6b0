package main

import (
	"fmt"
	"io"

	"github.com/DeafMist/media-aggregator/internal/models"
	"github.com/DeafMist/media-aggregator/internal/processing"
)

const previewWords = 30

func printRecords(w io.Writer, records []models.Record) {
	for i, rec := range records {
		switch r := rec.(type) {
		case models.Article:
			fmt.Fprintf(w, "\n%d. %s\n", i+1, r.Title)
			fmt.Fprintf(w, "   Source: %s | Published: %s\n", r.Source, r.PublishedDate)
			if summary := articleSummary(r); summary != "" {
				fmt.Fprintf(w, "   %s\n", summary)
			}
			fmt.Fprintf(w, "   URL: %s\n", r.URL)
		case models.SocialPost:
			fmt.Fprintf(w, "\n%d. @%s (%s)\n", i+1, r.Username, r.CreatedAt)
			fmt.Fprintf(w, "   %s\n", r.Text)
			fmt.Fprintf(w, "   Likes: %d, Retweets: %d\n", r.LikeCount, r.RetweetCount)
			fmt.Fprintf(w, "   URL: %s\n", r.URL)
		}
	}
}

func articleSummary(a models.Article) string {
	for _, text := range []string{a.Abstract, a.Description, a.LeadParagraph, a.Content} {
		if s := processing.Snippet(text, previewWords); s != "" {
			return s
		}
	}
	return ""
}
