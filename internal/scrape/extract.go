package scrape

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// nonContent lists elements dropped before the visible text is collected.
const nonContent = "script, style, noscript, nav, header, footer, iframe, svg"

type page struct {
	Title       string
	Description string
	Author      string
	Text        string
	Links       []string
}

func extractPage(pageURL string, body []byte) (*page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	base, _ := url.Parse(pageURL)

	p := &page{
		Title:       firstNonEmpty(doc.Find("title").First().Text(), metaContent(doc, "meta[property='og:title']")),
		Description: firstNonEmpty(metaContent(doc, "meta[name='description']"), metaContent(doc, "meta[property='og:description']")),
		Author:      metaContent(doc, "meta[name='author']"),
		Links:       links(doc, base),
	}

	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	root.Find(nonContent).Remove()

	var blocks []string
	root.Find("h1, h2, h3, h4, p, li, blockquote, pre, td").Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered("p, li, blockquote, td").Length() > 0 {
			return
		}
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			blocks = append(blocks, text)
		}
	})
	if len(blocks) == 0 {
		blocks = append(blocks, strings.Join(strings.Fields(root.Text()), " "))
	}
	p.Text = strings.Join(blocks, "\n\n")

	return p, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// links returns the absolute http(s) targets of the page anchors.
func links(doc *goquery.Document, base *url.URL) []string {
	var out []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return
		}
		ref.Fragment = ""
		out = append(out, ref.String())
	})
	return out
}
