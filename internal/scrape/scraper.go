// Package scrape downloads a web page into an artifact folder: the raw HTML,
// a rendered screenshot, the text read back from it and a metadata summary.
package scrape

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DeafMist/media-aggregator/internal/processing"
)

// DefaultSource is the source directory used when none is given.
const DefaultSource = "scraped"

// Artifact file names inside a page folder.
const (
	HTMLFile     = "raw.html"
	ImageFile    = "rendered.png"
	TextFile     = "extracted_text.txt"
	MetadataFile = "metadata.json"
)

const (
	maxPageBytes   = 20 << 20
	titleWords     = 12
	summaryWords   = 40
	keywordLimit   = 10
	keywordMinLen  = 4
	requestTimeout = 30 * time.Second
)

// ErrBadURL is returned for URLs that are not absolute http(s) URLs.
var ErrBadURL = errors.New("url must be an absolute http(s) url")

// ErrPageTooLarge is returned when a page body exceeds the download limit.
var ErrPageTooLarge = errors.New("page exceeds download limit")

// Dirs resolves the directory of a source; the content store satisfies it.
type Dirs interface {
	Dir(source string) string
}

// Renderer turns a saved HTML file into a PNG screenshot.
type Renderer interface {
	Render(ctx context.Context, htmlPath string) ([]byte, error)
}

// OCR reads the text out of an image file.
type OCR interface {
	Text(ctx context.Context, imagePath string) (string, error)
}

// Options toggle the optional scraping steps.
type Options struct {
	Source     string
	Screenshot bool
}

// Metadata is written to metadata.json next to the other artifacts.
type Metadata struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Author      string   `json:"author,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Links       []string `json:"links,omitempty"`
	TextSource  string   `json:"text_source"`
	ScrapedAt   string   `json:"scraped_at"`
}

// Result lists what a scrape produced. ImagePath is empty without a screenshot.
type Result struct {
	Dir       string
	HTMLPath  string
	ImagePath string
	TextPath  string
	Metadata  Metadata
}

// Scraper runs the download, render and OCR steps.
type Scraper struct {
	http     *http.Client
	dirs     Dirs
	renderer Renderer
	ocr      OCR
	log      *slog.Logger
	now      func() time.Time
	maxBytes int64
}

// New returns a scraper. renderer and ocr may be nil when screenshots are
// never requested.
func New(dirs Dirs, renderer Renderer, ocr OCR, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scraper{
		http:     &http.Client{Timeout: requestTimeout},
		dirs:     dirs,
		renderer: renderer,
		ocr:      ocr,
		log:      logger,
		now:      time.Now,
		maxBytes: maxPageBytes,
	}
}

// FolderID names the artifact folder of pageURL.
func FolderID(pageURL string) string {
	sum := sha256.Sum256([]byte(pageURL))
	return hex.EncodeToString(sum[:])
}

// Scrape saves the artifacts of pageURL under <source dir>/<FolderID(url)>/.
func (s *Scraper) Scrape(ctx context.Context, pageURL string, opts Options) (*Result, error) {
	if !isHTTPURL(pageURL) {
		return nil, fmt.Errorf("%q: %w", pageURL, ErrBadURL)
	}
	if opts.Source == "" {
		opts.Source = DefaultSource
	}
	if opts.Screenshot && (s.renderer == nil || s.ocr == nil) {
		return nil, errors.New("screenshot requested but no renderer or OCR is configured")
	}

	dir := filepath.Join(s.dirs.Dir(opts.Source), FolderID(pageURL))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create page folder: %w", err)
	}
	res := &Result{Dir: dir, HTMLPath: filepath.Join(dir, HTMLFile), TextPath: filepath.Join(dir, TextFile)}

	s.log.Info("downloading page", slog.String("url", pageURL))
	body, err := s.download(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(res.HTMLPath, body, 0o644); err != nil {
		return nil, fmt.Errorf("save html: %w", err)
	}

	pg, err := extractPage(pageURL, body)
	if err != nil {
		return nil, err
	}

	text, textSource := pg.Text, "html"
	if opts.Screenshot {
		res.ImagePath = filepath.Join(dir, ImageFile)
		if text, err = s.screenshotText(ctx, res.HTMLPath, res.ImagePath); err != nil {
			return nil, err
		}
		textSource = "ocr"
	}
	text = processing.NormalizeLines(text)
	if err := os.WriteFile(res.TextPath, []byte(text+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("save text: %w", err)
	}

	res.Metadata = s.metadata(pageURL, pg, text, textSource)
	if err := writeMetadata(filepath.Join(dir, MetadataFile), res.Metadata); err != nil {
		return nil, err
	}

	s.log.Info("page scraped", slog.String("dir", dir), slog.String("text_source", textSource))
	return res, nil
}

func (s *Scraper) download(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "mediaagg-scraper/1.0")

	res, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", pageURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("download %s: unexpected status %d", pageURL, res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pageURL, err)
	}
	if int64(len(body)) > s.maxBytes {
		return nil, fmt.Errorf("download %s: %w (%d bytes)", pageURL, ErrPageTooLarge, s.maxBytes)
	}
	return body, nil
}

func (s *Scraper) screenshotText(ctx context.Context, htmlPath, imagePath string) (string, error) {
	s.log.Info("rendering page")
	png, err := s.renderer.Render(ctx, htmlPath)
	if err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	if err := os.WriteFile(imagePath, png, 0o644); err != nil {
		return "", fmt.Errorf("save screenshot: %w", err)
	}

	s.log.Info("extracting text from screenshot")
	text, err := s.ocr.Text(ctx, imagePath)
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}
	return text, nil
}

func (s *Scraper) metadata(pageURL string, pg *page, text, textSource string) Metadata {
	title := pg.Title
	if title == "" {
		title = processing.Snippet(text, titleWords)
	}
	description := pg.Description
	if description == "" {
		description = processing.Snippet(text, summaryWords)
	}

	links := append(pg.Links, processing.ExtractURLs(text)...)

	return Metadata{
		URL:         pageURL,
		Title:       title,
		Description: description,
		Author:      pg.Author,
		Keywords:    processing.Keywords(pg.Title+"\n"+text, keywordLimit, keywordMinLen),
		Links:       uniqueLinks(links),
		TextSource:  textSource,
		ScrapedAt:   s.now().UTC().Format(time.RFC3339),
	}
}

func writeMetadata(path string, meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

func isHTTPURL(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func uniqueLinks(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
