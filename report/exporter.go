// Package report lays out a deal analysis as a paginated A4 document and
// renders it to text or PDF.
package report

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"deal-analyzer/models"
	"deal-analyzer/utils"
)

// A4 in points.
const (
	PageWidth     = 595.0
	PageHeight    = 842.0
	DefaultMargin = 48.0
)

// Text metrics are approximate: every glyph is assumed to advance half the
// font size. ValueColumn is the offset of values in label/value rows.
const (
	ValueColumn  = 220.0
	lineSpacing  = 1.4
	glyphWidth   = 0.5
	bulletIndent = 14.0
	ruleGap      = 14.0
	paragraphGap = 4.0
)

// Tone is the emphasis applied to the score block.
type Tone string

const (
	ToneNone     Tone = ""
	ToneStrong   Tone = "strong"
	ToneModerate Tone = "moderate"
	ToneWeak     Tone = "weak"
)

// ScoreTone maps an investment score onto its emphasis: above 75 is strong,
// 50 through 75 is moderate and anything lower is weak.
func ScoreTone(score int) Tone {
	switch {
	case score > 75:
		return ToneStrong
	case score >= 50:
		return ToneModerate
	}
	return ToneWeak
}

// Section names the part of the report an element belongs to.
type Section string

const (
	SectionTitle      Section = "title"
	SectionScore      Section = "score"
	SectionSummary    Section = "summary"
	SectionMetrics    Section = "metrics"
	SectionMarket     Section = "market"
	SectionMemo       Section = "memo"
	SectionDisclaimer Section = "disclaimer"
)

// Sections lists every section in the order it appears.
var Sections = []Section{
	SectionTitle, SectionScore, SectionSummary, SectionMetrics,
	SectionMarket, SectionMemo, SectionDisclaimer,
}

// ElementKind is what a renderer draws for an element.
type ElementKind string

const (
	KindText ElementKind = "text"
	KindRow  ElementKind = "row"
	KindRule ElementKind = "rule"
)

// Element is one positioned line. X and Y are the top-left corner in points.
type Element struct {
	Kind  ElementKind
	X, Y  float64
	Size  float64
	Bold  bool
	Text  string
	Value string // rows only
	Tone  Tone

	Section Section
	// Volatile marks content that changes on every export (timestamps and
	// the report id).
	Volatile bool
}

// Page is one A4 page of elements in drawing order.
type Page struct {
	Elements []Element
}

// Document is a laid-out report.
type Document struct {
	ID          string
	GeneratedAt time.Time
	FileName    string
	Width       float64
	Height      float64
	Margin      float64
	Pages       []Page
}

// Elements returns every element across pages in drawing order.
func (d *Document) Elements() []Element {
	var out []Element
	for _, p := range d.Pages {
		out = append(out, p.Elements...)
	}
	return out
}

// PropertyMeta describes the property the analysis is about.
type PropertyMeta struct {
	City  string
	Label string
	Price float64
}

// Exporter turns an analysis result into a Document.
type Exporter struct {
	Margin float64
	Now    func() time.Time
	NewID  func() string
}

// NewExporter creates an Exporter with A4 margins, the wall clock and
// uuid-derived report ids.
func NewExporter() *Exporter {
	return &Exporter{Margin: DefaultMargin, Now: time.Now, NewID: NewReportID}
}

// NewReportID returns an identifier such as DA-3F2A9C1B.
func NewReportID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "DA-" + strings.ToUpper(hex[:8])
}

// FileName builds the download name for a report on city generated at t.
func FileName(city string, t time.Time) string {
	label := cityLabel(city)
	if label == "" {
		label = "Property"
	}
	return fmt.Sprintf("DealReport-%s-%s.pdf", strings.ReplaceAll(label, " ", "-"), t.Format("2006-01-02"))
}

func cityLabel(city string) string {
	words := strings.Fields(city)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = strings.ToUpper(string(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

const disclaimerText = "This report is generated from model estimates and market data supplied by the " +
	"analysis engine. It is not financial advice. Verify every figure independently " +
	"before making an investment decision."

// Export lays out result for meta. Apart from the report id and timestamps,
// the output depends only on its inputs.
func (e *Exporter) Export(result *models.DealAnalysis, meta PropertyMeta) *Document {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	newID := NewReportID
	if e.NewID != nil {
		newID = e.NewID
	}
	margin := e.Margin
	if margin <= 0 {
		margin = DefaultMargin
	}

	generated := now()
	doc := &Document{
		ID:          newID(),
		GeneratedAt: generated,
		FileName:    FileName(meta.City, generated),
		Width:       PageWidth,
		Height:      PageHeight,
		Margin:      margin,
	}
	l := &layout{doc: doc, margin: margin, width: PageWidth - 2*margin}
	l.newPage()

	l.titleBlock(meta, generated)
	l.rule()
	l.scoreBlock(result)
	l.rule()
	l.summaryBlock(result)
	l.rule()
	l.table(SectionMetrics, "Key Metrics", [][2]string{
		{"ROI", utils.FormatPercent(result.ROIPercent, 1)},
		{"Rental Yield", utils.FormatPercent(result.RentalYield, 2)},
		{"Annual Cash Flow", utils.FormatINR(result.CashFlow)},
		{"Risk Level", orDash(result.RiskLevel)},
		{"Market Sentiment", orDash(result.MarketSnapshot.MarketSentiment)},
		{"Liquidity Score", fmt.Sprintf("%.1f", result.MarketSnapshot.LiquidityScore)},
	})
	l.rule()
	l.table(SectionMarket, "Market Snapshot", [][2]string{
		{"Avg. Price / sq.ft", utils.FormatINR(result.MarketSnapshot.AvgPricePerSqft)},
		{"Avg. Rental Yield", utils.FormatPercent(result.MarketSnapshot.AvgRentalYield, 2)},
		{"Avg. Appreciation", utils.FormatPercent(result.MarketSnapshot.AvgAppreciation, 1)},
		{"Vacancy Rate", utils.FormatPercent(result.MarketSnapshot.VacancyRate, 1)},
	})
	l.rule()
	l.memoBlock(result.InvestmentMemo)
	l.rule()
	l.disclaimerBlock(doc.ID, generated)
	return doc
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// line is an element waiting for its vertical position.
type line struct {
	el     Element
	height float64
}

type layout struct {
	doc    *Document
	margin float64
	width  float64
	y      float64
}

func (l *layout) bottom() float64 { return l.doc.Height - l.margin }

func (l *layout) newPage() {
	l.doc.Pages = append(l.doc.Pages, Page{})
	l.y = l.margin
}

// ensure starts a new page when h more points do not fit, unless the page
// is still empty.
func (l *layout) ensure(h float64) {
	if l.y+h > l.bottom() && l.y > l.margin {
		l.newPage()
	}
}

func (l *layout) place(ln line) {
	ln.el.Y = l.y
	page := &l.doc.Pages[len(l.doc.Pages)-1]
	page.Elements = append(page.Elements, ln.el)
	l.y += ln.height
}

// keep places lines as one unit that is never split across pages.
func (l *layout) keep(lines ...line) {
	var h float64
	for _, ln := range lines {
		h += ln.height
	}
	l.ensure(h)
	for _, ln := range lines {
		l.place(ln)
	}
}

// flow places lines one at a time, keeping the first lead lines together
// with the line that follows them.
func (l *layout) flow(lead int, lines []line) {
	if len(lines) == 0 {
		return
	}
	n := lead + 1
	if n > len(lines) {
		n = len(lines)
	}
	l.keep(lines[:n]...)
	for _, ln := range lines[n:] {
		l.ensure(ln.height)
		l.place(ln)
	}
}

func (l *layout) rule() {
	l.ensure(ruleGap)
	if l.y == l.margin {
		// A rule at the top of a page separates nothing.
		return
	}
	l.place(line{el: Element{Kind: KindRule, X: l.margin, Size: l.width}, height: ruleGap})
}

func (l *layout) text(section Section, s string, size float64, bold bool) line {
	return line{
		el:     Element{Kind: KindText, X: l.margin, Size: size, Bold: bold, Text: s, Section: section},
		height: size * lineSpacing,
	}
}

func (l *layout) heading(section Section, s string) line {
	return l.text(section, s, 14, true)
}

// wrapped breaks s into lines that fit the content width at size, starting
// at indent points from the margin.
func (l *layout) wrapped(section Section, s string, size, indent float64) []line {
	var out []line
	for _, w := range wrap(s, charsPerLine(l.width-indent, size)) {
		ln := l.text(section, w, size, false)
		ln.el.X += indent
		out = append(out, ln)
	}
	return out
}

func (l *layout) titleBlock(meta PropertyMeta, generated time.Time) {
	label := meta.Label
	if label == "" {
		label = cityLabel(meta.City) + " Property"
	}
	date := l.text(SectionTitle, "Generated: "+generated.Format("02 Jan 2006, 15:04"), 10, false)
	date.el.Volatile = true
	l.keep(
		l.text(SectionTitle, "Property Investment Analysis Report", 20, true),
		l.text(SectionTitle, label, 12, false),
		l.text(SectionTitle, "Listed Price: "+utils.FormatINR(meta.Price), 11, false),
		date,
	)
}

func (l *layout) scoreBlock(result *models.DealAnalysis) {
	tone := ScoreTone(result.InvestmentScore)
	score := l.text(SectionScore, fmt.Sprintf("%d / 100", result.InvestmentScore), 28, true)
	score.el.Tone = tone
	verdict := l.text(SectionScore, orDash(result.Verdict), 14, true)
	verdict.el.Tone = tone
	l.keep(l.heading(SectionScore, "Investment Score"), score, verdict)
}

func (l *layout) summaryBlock(result *models.DealAnalysis) {
	lines := []line{l.heading(SectionSummary, "Executive Summary")}
	summary := strings.TrimSpace(result.ExecutiveSummary)
	if summary == "" {
		summary = "No summary was provided."
	}
	lines = append(lines, l.wrapped(SectionSummary, summary, 10, 0)...)
	if rec := strings.TrimSpace(result.Recommendation); rec != "" {
		lines = append(lines, l.wrapped(SectionSummary, "Recommendation: "+rec, 10, 0)...)
	}
	l.flow(1, lines)
}

func (l *layout) table(section Section, title string, rows [][2]string) {
	lines := []line{l.heading(section, title)}
	for _, r := range rows {
		lines = append(lines, line{
			el:     Element{Kind: KindRow, X: l.margin, Size: 10, Text: r[0], Value: r[1], Section: section},
			height: 10 * lineSpacing,
		})
	}
	l.flow(1, lines)
}

func (l *layout) memoBlock(memo string) {
	blocks := ParseMemo(memo)
	if len(blocks) == 0 {
		blocks = []MemoBlock{{Kind: MemoParagraph, Text: "No investment memo was provided."}}
	}

	// Headings wait for the block they introduce so the two share a page.
	pending := []line{l.heading(SectionMemo, "Investment Memo")}
	for _, b := range blocks {
		if b.Kind == MemoHeading {
			pending = append(pending, l.text(SectionMemo, b.Text, 12, true))
			continue
		}
		var body []line
		if b.Kind == MemoBullet {
			// The marker hangs in the indent and the text wraps after it.
			body = l.wrapped(SectionMemo, b.Text, 10, bulletIndent)
			if len(body) > 0 {
				body[0].el.X = l.margin
				body[0].el.Text = b.Marker + " " + body[0].el.Text
			}
		} else {
			body = l.wrapped(SectionMemo, b.Text, 10, 0)
		}
		l.flow(len(pending), append(pending, body...))
		pending = nil
		l.y += paragraphGap
	}
	if len(pending) > 0 {
		l.keep(pending...)
	}
}

func (l *layout) disclaimerBlock(id string, generated time.Time) {
	lines := []line{l.text(SectionDisclaimer, "Disclaimer", 9, true)}
	lines = append(lines, l.wrapped(SectionDisclaimer, disclaimerText, 8, 0)...)
	idLine := l.text(SectionDisclaimer, "Report ID: "+id, 8, false)
	idLine.el.Volatile = true
	ts := l.text(SectionDisclaimer, "Generated at: "+generated.Format(time.RFC3339), 8, false)
	ts.el.Volatile = true
	lines = append(lines, idLine, ts)
	l.keep(lines...)
}

func charsPerLine(width, size float64) int {
	n := int(math.Floor(width / (size * glyphWidth)))
	if n < 1 {
		n = 1
	}
	return n
}

// wrap splits s into lines of at most max runes, breaking on whitespace and
// hard-splitting words that are longer than a line.
func wrap(s string, max int) []string {
	var lines []string
	var cur []rune
	for _, word := range strings.Fields(s) {
		w := []rune(word)
		for len(w) > max {
			if len(cur) > 0 {
				lines = append(lines, string(cur))
				cur = nil
			}
			lines = append(lines, string(w[:max]))
			w = w[max:]
		}
		switch {
		case len(cur) == 0:
			cur = w
		case len(cur)+1+len(w) <= max:
			cur = append(append(cur, ' '), w...)
		default:
			lines = append(lines, string(cur))
			cur = w
		}
	}
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return lines
}
