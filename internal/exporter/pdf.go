package exporter

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	apperrors "pvinsight/internal/errors"
)

// A4 in inches with 2 cm margins.
const (
	a4WidthIn  = 8.27
	a4HeightIn = 11.69
	marginIn   = 2 / 2.54
)

// Renderer prints an HTML document to PDF.
type Renderer interface {
	PrintPDF(ctx context.Context, doc Document) ([]byte, error)
}

// ChromeOptions configure the headless browser.
type ChromeOptions struct {
	// ExecPath overrides the browser binary lookup.
	ExecPath string
	Headless bool
	Timeout  time.Duration
}

// ChromeRenderer prints documents with a fresh headless Chrome per call.
type ChromeRenderer struct {
	opts   ChromeOptions
	logger *slog.Logger
}

// NewChromeRenderer creates a renderer. A zero timeout means 60 seconds.
func NewChromeRenderer(opts ChromeOptions, logger *slog.Logger) *ChromeRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChromeRenderer{opts: opts, logger: logger.With(slog.String("component", "pdf_renderer"))}
}

// PrintPDF loads doc into a blank page and prints it to A4.
func (r *ChromeRenderer) PrintPDF(ctx context.Context, doc Document) ([]byte, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", r.opts.Headless))
	if r.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.opts.ExecPath))
	}

	ctx, cancelTimeout := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancelTimeout()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	start := time.Now()
	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(doc.HTML)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			params := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(a4WidthIn).
				WithPaperHeight(a4HeightIn).
				WithMarginTop(marginIn).
				WithMarginBottom(marginIn).
				WithMarginLeft(marginIn).
				WithMarginRight(marginIn)
			if doc.Footer != "" {
				params = params.
					WithDisplayHeaderFooter(true).
					WithHeaderTemplate("<span></span>").
					WithFooterTemplate(footerTemplate(doc.Footer))
			}
			buf, _, err := params.Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, apperrors.NewExportError("failed to print PDF", err)
	}

	r.logger.DebugContext(ctx, "PDF printed",
		slog.String("title", doc.Title),
		slog.Int("bytes", len(pdf)),
		slog.Duration("duration", time.Since(start)))
	return pdf, nil
}

func footerTemplate(text string) string {
	return fmt.Sprintf(`<div style="width:100%%;font-size:8px;color:#888;text-align:right;padding-right:2cm;">%s</div>`,
		html.EscapeString(text))
}

// ExportPDF renders doc with r and writes the PDF to path.
func ExportPDF(ctx context.Context, r Renderer, doc Document, path string) error {
	pdf, err := r.PrintPDF(ctx, doc)
	if err != nil {
		return err
	}
	if err := writeText(path, string(pdf)); err != nil {
		return apperrors.NewExportError(fmt.Sprintf("failed to save %s", filepath.Base(path)), err)
	}
	return nil
}
