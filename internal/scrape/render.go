package scrape

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	viewportWidth  = 1280
	viewportHeight = 1024
	renderTimeout  = 60 * time.Second
)

// ChromeRenderer screenshots pages with a headless Chrome driven over the
// DevTools protocol.
type ChromeRenderer struct {
	// ExecPath overrides the browser binary; empty uses the chromedp lookup.
	ExecPath string
}

// Render loads htmlPath from disk and returns a full-page PNG.
func (r ChromeRenderer) Render(ctx context.Context, htmlPath string) ([]byte, error) {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.WindowSize(viewportWidth, viewportHeight),
	)
	if r.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()
	runCtx, cancel := context.WithTimeout(browserCtx, renderTimeout)
	defer cancel()

	var png []byte
	if err := chromedp.Run(runCtx,
		chromedp.Navigate("file://"+filepath.ToSlash(abs)),
		chromedp.FullScreenshot(&png, 100),
	); err != nil {
		return nil, fmt.Errorf("chrome: %w", err)
	}
	return png, nil
}

// Tesseract runs the tesseract command line OCR engine.
type Tesseract struct {
	// Binary defaults to "tesseract" on PATH.
	Binary string
	// Lang is passed as -l when set, e.g. "eng".
	Lang string
}

// Text returns what tesseract reads from imagePath.
func (t Tesseract) Text(ctx context.Context, imagePath string) (string, error) {
	bin := t.Binary
	if bin == "" {
		bin = "tesseract"
	}
	args := []string{imagePath, "stdout"}
	if t.Lang != "" {
		args = append(args, "-l", t.Lang)
	}

	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", bin, err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}
