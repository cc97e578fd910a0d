package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"deal-analyzer/models"
)

func sampleAnalysis() *models.DealAnalysis {
	return &models.DealAnalysis{
		InvestmentScore:  78,
		Verdict:          models.VerdictStrongBuy,
		RentalYield:      8.57,
		CashFlow:         300000,
		ROIPercent:       42.3,
		ROIProjection:    []float64{8, 16, 25, 33, 42.3},
		RiskLevel:        "Low",
		ExecutiveSummary: "A well priced apartment in a high demand micro market with steady rental absorption.",
		Recommendation:   "Proceed after verifying the title.",
		MarketSnapshot: models.MarketSnapshot{
			AvgPricePerSqft: 18500,
			AvgRentalYield:  3.2,
			AvgAppreciation: 6.5,
			VacancyRate:     4.1,
			LiquidityScore:  7.8,
			MarketSentiment: "Bullish",
		},
		InvestmentMemo: "## Thesis\nRental demand is **strong**.\n\n- Close to the metro\n- New IT park nearby\n",
	}
}

func fixedExporter(now time.Time, id string) *Exporter {
	return &Exporter{
		Margin: DefaultMargin,
		Now:    func() time.Time { return now },
		NewID:  func() string { return id },
	}
}

func stable(doc *Document) []Element {
	var out []Element
	for _, el := range doc.Elements() {
		if !el.Volatile {
			out = append(out, el)
		}
	}
	return out
}

func TestExportIsDeterministicApartFromVolatileFields(t *testing.T) {
	meta := PropertyMeta{City: "mumbai", Price: 3500000}
	a := fixedExporter(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), "DA-AAAAAAAA").Export(sampleAnalysis(), meta)
	b := fixedExporter(time.Date(2026, 7, 9, 18, 5, 0, 0, time.UTC), "DA-BBBBBBBB").Export(sampleAnalysis(), meta)

	ea, eb := stable(a), stable(b)
	if len(ea) != len(eb) {
		t.Fatalf("element count: %d vs %d", len(ea), len(eb))
	}
	for i := range ea {
		if ea[i] != eb[i] {
			t.Errorf("element %d differs:\n %+v\n %+v", i, ea[i], eb[i])
		}
	}
	if len(a.Pages) != len(b.Pages) {
		t.Errorf("pages: %d vs %d", len(a.Pages), len(b.Pages))
	}

	var volatile int
	for _, el := range a.Elements() {
		if el.Volatile {
			volatile++
		}
	}
	if volatile != 3 {
		t.Errorf("volatile elements: got %d, want 3 (date, id, timestamp)", volatile)
	}
}

func TestExportSectionsInOrder(t *testing.T) {
	doc := NewExporter().Export(sampleAnalysis(), PropertyMeta{City: "bangalore", Price: 9000000})

	var order []Section
	rules := 0
	for _, el := range doc.Elements() {
		if el.Kind == KindRule {
			rules++
			continue
		}
		if len(order) == 0 || order[len(order)-1] != el.Section {
			order = append(order, el.Section)
		}
	}
	if len(order) != len(Sections) {
		t.Fatalf("sections: got %v, want %v", order, Sections)
	}
	for i := range Sections {
		if order[i] != Sections[i] {
			t.Errorf("section %d: got %s, want %s", i, order[i], Sections[i])
		}
	}
	if rules != len(Sections)-1 {
		t.Errorf("rules: got %d, want %d", rules, len(Sections)-1)
	}
}

func TestExportFormatsMetrics(t *testing.T) {
	doc := fixedExporter(time.Now(), "DA-00000000").Export(sampleAnalysis(), PropertyMeta{City: "mumbai", Price: 3500000})

	rows := map[string]string{}
	var texts []string
	for _, el := range doc.Elements() {
		if el.Kind == KindRow {
			rows[el.Text] = el.Value
		}
		texts = append(texts, el.Text)
	}

	want := map[string]string{
		"ROI":                "42.3%",
		"Rental Yield":       "8.57%",
		"Annual Cash Flow":   "₹3,00,000",
		"Risk Level":         "Low",
		"Market Sentiment":   "Bullish",
		"Liquidity Score":    "7.8",
		"Avg. Price / sq.ft": "₹18,500",
		"Vacancy Rate":       "4.1%",
	}
	for k, v := range want {
		if rows[k] != v {
			t.Errorf("row %q: got %q, want %q", k, rows[k], v)
		}
	}

	joined := strings.Join(texts, "\n")
	for _, s := range []string{"Listed Price: ₹35,00,000", "Mumbai Property", "78 / 100", "Strong Buy", "Report ID: DA-00000000"} {
		if !strings.Contains(joined, s) {
			t.Errorf("missing %q", s)
		}
	}
}

func TestScoreTone(t *testing.T) {
	tests := []struct {
		score int
		want  Tone
	}{
		{100, ToneStrong},
		{76, ToneStrong},
		{75, ToneModerate},
		{50, ToneModerate},
		{49, ToneWeak},
		{0, ToneWeak},
	}
	for _, tt := range tests {
		if got := ScoreTone(tt.score); got != tt.want {
			t.Errorf("ScoreTone(%d): got %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestScoreElementsCarryTone(t *testing.T) {
	res := sampleAnalysis()
	res.InvestmentScore = 42
	doc := NewExporter().Export(res, PropertyMeta{City: "hyderabad"})
	for _, el := range doc.Elements() {
		if el.Section == SectionScore && el.Text == "42 / 100" {
			if el.Tone != ToneWeak {
				t.Errorf("score tone: got %q", el.Tone)
			}
			return
		}
	}
	t.Error("score element not found")
}

func TestLongMemoPaginates(t *testing.T) {
	res := sampleAnalysis()
	var memo strings.Builder
	for i := 0; i < 80; i++ {
		memo.WriteString("The locality has seen consistent absorption of new inventory and rents have tracked inflation closely over the last cycle.\n\n")
	}
	res.InvestmentMemo = memo.String()

	doc := NewExporter().Export(res, PropertyMeta{City: "mumbai", Price: 3500000})
	if len(doc.Pages) < 3 {
		t.Fatalf("pages: got %d, want at least 3", len(doc.Pages))
	}

	bottom := doc.Height - doc.Margin
	for i, p := range doc.Pages {
		if len(p.Elements) == 0 {
			t.Errorf("page %d is empty", i+1)
		}
		for _, el := range p.Elements {
			if el.Y < doc.Margin {
				t.Errorf("page %d: element above margin at %v", i+1, el.Y)
			}
			if el.Kind == KindText && el.Y+el.Size*lineSpacing > bottom+0.001 {
				t.Errorf("page %d: %q overflows at %v", i+1, el.Text, el.Y)
			}
		}
	}

	last := doc.Pages[len(doc.Pages)-1].Elements
	if last[len(last)-1].Section != SectionDisclaimer {
		t.Errorf("document should end with the disclaimer, got %s", last[len(last)-1].Section)
	}
}

func TestDisclaimerIsNeverSplit(t *testing.T) {
	res := sampleAnalysis()
	res.InvestmentMemo = strings.Repeat("word ", 2600)

	doc := NewExporter().Export(res, PropertyMeta{City: "pune"})
	pages := map[int]bool{}
	for i, p := range doc.Pages {
		for _, el := range p.Elements {
			if el.Section == SectionDisclaimer {
				pages[i] = true
			}
		}
	}
	if len(pages) != 1 {
		t.Errorf("disclaimer spans %d pages", len(pages))
	}
}

func TestMemoHeadingStaysWithFirstLine(t *testing.T) {
	doc := NewExporter().Export(sampleAnalysis(), PropertyMeta{City: "mumbai"})
	for pi, p := range doc.Pages {
		for i, el := range p.Elements {
			if el.Section == SectionMemo && el.Text == "Investment Memo" {
				if i == len(p.Elements)-1 {
					t.Errorf("memo heading is the last element of page %d", pi+1)
				}
				return
			}
		}
	}
	t.Error("memo heading not found")
}

func TestFileName(t *testing.T) {
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		city string
		want string
	}{
		{"mumbai", "DealReport-Mumbai-2026-10-15.pdf"},
		{"navi mumbai", "DealReport-Navi-Mumbai-2026-10-15.pdf"},
		{"", "DealReport-Property-2026-10-15.pdf"},
	}
	for _, tt := range tests {
		if got := FileName(tt.city, at); got != tt.want {
			t.Errorf("FileName(%q): got %q, want %q", tt.city, got, tt.want)
		}
	}
}

func TestNewReportID(t *testing.T) {
	id := NewReportID()
	if !strings.HasPrefix(id, "DA-") || len(id) != 11 {
		t.Errorf("id: got %q", id)
	}
	if id == NewReportID() {
		t.Error("ids should differ between calls")
	}
}

func TestWrap(t *testing.T) {
	got := wrap("alpha beta gamma delta", 11)
	want := []string{"alpha beta", "gamma delta"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("wrap: got %q, want %q", got, want)
	}

	got = wrap("abcdefghij", 4)
	if strings.Join(got, "|") != "abcd|efgh|ij" {
		t.Errorf("hard split: got %q", got)
	}
}

func TestTextRendererMarksPages(t *testing.T) {
	res := sampleAnalysis()
	res.InvestmentMemo = strings.Repeat("word ", 2600)
	doc := NewExporter().Export(res, PropertyMeta{City: "mumbai", Price: 3500000})

	out, err := TextRenderer{}.Render(context.Background(), doc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	text := string(out)
	if n := strings.Count(text, "--- Page "); n != len(doc.Pages) {
		t.Errorf("page markers: got %d, want %d", n, len(doc.Pages))
	}
	if !strings.Contains(text, "₹35,00,000") {
		t.Error("price missing from text output")
	}
}

func TestBuildHTMLPositionsEveryPage(t *testing.T) {
	res := sampleAnalysis()
	res.ExecutiveSummary = "Rent <= EMI & taxes"
	doc := NewExporter().Export(res, PropertyMeta{City: "mumbai"})

	out := buildHTML(doc)
	if n := strings.Count(out, "<div class='page'>"); n != len(doc.Pages) {
		t.Errorf("pages in html: got %d, want %d", n, len(doc.Pages))
	}
	if !strings.Contains(out, "Rent &lt;= EMI &amp; taxes") {
		t.Error("summary text should be escaped")
	}
	if !strings.Contains(out, "@page{size:595pt 842pt;margin:0;}") {
		t.Error("page size rule missing")
	}
}
