package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DeafMist/media-aggregator/internal/scrape"
)

func (a *app) scrapeCommand() *cobra.Command {
	var (
		source       string
		noScreenshot bool
		lang         string
	)
	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Save a page's HTML, screenshot and OCR text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(a.out, "Scraping URL: %s\n", args[0])
			s := a.newScraper(!noScreenshot, lang)
			res, err := s.Scrape(cmd.Context(), args[0], scrape.Options{Source: source, Screenshot: !noScreenshot})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Title: %s\n", res.Metadata.Title)
			fmt.Fprintf(a.out, "\nArticle folder: %s\n", res.Dir)
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", scrape.DefaultSource, "source name for organizing scraped content")
	cmd.Flags().BoolVar(&noScreenshot, "no-screenshot", false, "skip screenshot rendering and OCR extraction")
	cmd.Flags().StringVar(&lang, "ocr-lang", "", "tesseract language, e.g. eng")
	return cmd
}
