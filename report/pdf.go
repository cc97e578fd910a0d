package report

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// PDFRenderer prints a Document to PDF with headless Chrome. Every element
// becomes an absolutely positioned block on a fixed-size page, so the PDF
// matches the computed layout exactly.
type PDFRenderer struct {
	chromePath string
	Timeout    time.Duration
}

// NewPDFRenderer uses the Chrome binary at chromePath, or looks for one in
// the usual locations when chromePath is empty.
func NewPDFRenderer(chromePath string) *PDFRenderer {
	if chromePath == "" {
		chromePath = detectChromePath()
	}
	return &PDFRenderer{chromePath: chromePath, Timeout: 30 * time.Second}
}

func (r *PDFRenderer) Extension() string { return ".pdf" }

func (r *PDFRenderer) Render(ctx context.Context, doc *Document) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(buildHTML(doc)))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				WithPaperWidth(doc.Width / 72).
				WithPaperHeight(doc.Height / 72).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, fmt.Errorf("report: print pdf: %w", err)
	}
	return pdf, nil
}

var toneColors = map[Tone]string{
	ToneStrong:   "#15803d",
	ToneModerate: "#b45309",
	ToneWeak:     "#b91c1c",
}

func buildHTML(doc *Document) string {
	var b strings.Builder
	b.WriteString("<!doctype html><html><head><meta charset='utf-8'><title>")
	b.WriteString(html.EscapeString(doc.FileName))
	b.WriteString("</title><style>")
	fmt.Fprintf(&b, "@page{size:%gpt %gpt;margin:0;} ", doc.Width, doc.Height)
	b.WriteString("html,body{margin:0;padding:0;font-family:Helvetica,Arial,sans-serif;color:#1c1917;} ")
	fmt.Fprintf(&b, ".page{position:relative;width:%gpt;height:%gpt;overflow:hidden;break-after:page;page-break-after:always;} ", doc.Width, doc.Height)
	b.WriteString(".page:last-child{break-after:auto;page-break-after:auto;} ")
	b.WriteString(".el{position:absolute;white-space:pre;line-height:1.4;} ")
	b.WriteString(".rule{position:absolute;border-top:0.75pt solid #a8a29e;} ")
	b.WriteString("</style></head><body>")

	for _, p := range doc.Pages {
		b.WriteString("<div class='page'>")
		for _, el := range p.Elements {
			writeElement(&b, el)
		}
		b.WriteString("</div>")
	}
	b.WriteString("</body></html>")
	return b.String()
}

func writeElement(b *strings.Builder, el Element) {
	switch el.Kind {
	case KindRule:
		fmt.Fprintf(b, "<div class='rule' style='left:%gpt;top:%gpt;width:%gpt;'></div>", el.X, el.Y+ruleGap/2, el.Size)
		return
	case KindRow:
		fmt.Fprintf(b, "<div class='el' style='left:%gpt;top:%gpt;font-size:%gpt;color:#44403c;'>%s</div>",
			el.X, el.Y, el.Size, html.EscapeString(el.Text))
		fmt.Fprintf(b, "<div class='el' style='left:%gpt;top:%gpt;font-size:%gpt;font-weight:700;'>%s</div>",
			el.X+ValueColumn, el.Y, el.Size, html.EscapeString(el.Value))
		return
	}

	style := fmt.Sprintf("left:%gpt;top:%gpt;font-size:%gpt;", el.X, el.Y, el.Size)
	if el.Bold {
		style += "font-weight:700;"
	}
	if c, ok := toneColors[el.Tone]; ok {
		style += "color:" + c + ";"
	}
	fmt.Fprintf(b, "<div class='el' data-section='%s' style='%s'>%s</div>", el.Section, style, html.EscapeString(el.Text))
}

func detectChromePath() string {
	if p := os.Getenv("CHROME_BIN"); p != "" {
		return p
	}
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
		"/usr/bin/google-chrome-stable",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
