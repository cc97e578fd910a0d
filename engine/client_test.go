package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"deal-analyzer/models"
	"deal-analyzer/utils"
)

const sampleAnalysis = `{
	"investment_score": 78,
	"verdict": "Buy",
	"rental_yield": 8.57,
	"cash_flow": 300000,
	"roi_percent": 42.1,
	"roi_projection": [3620000, 3750000, 3880000, 4010000, 4150000],
	"risk_level": "Moderate",
	"executive_summary": "Solid yield in a liquid market.",
	"recommendation": "Buy",
	"market_snapshot": {
		"avg_price_per_sqft": 26500,
		"avg_rental_yield": 3.1,
		"avg_appreciation": 5.2,
		"vacancy_rate": 6.5,
		"liquidity_score": 8.2,
		"market_sentiment": "Bullish"
	},
	"ai_investment_memo": "## Thesis\nStrong rental demand."
}`

func newTestClient(url string) *Client {
	return NewClient(url, 5*time.Second, utils.NewNopLogger())
}

func sampleRequest() models.DealRequest {
	return models.DealRequest{
		City: "mumbai", PropertyPrice: 3500000, ExpectedRent: 25000,
		AnnualCosts: 0, AppreciationRate: 3.5, LoanYears: 5,
	}
}

func TestAnalyzeSendsSnakeCasePayload(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/deal/analyze" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type: got %q", ct)
		}
		blob, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(blob, &got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleAnalysis))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL+"/").Analyze(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	for _, key := range []string{"city", "property_price", "expected_rent", "annual_costs", "appreciation_rate", "loan_years"} {
		if _, ok := got[key]; !ok {
			t.Errorf("payload missing key %q: %v", key, got)
		}
	}
	if res.InvestmentScore != 78 || res.Verdict != "Buy" {
		t.Errorf("result: got score %d verdict %q", res.InvestmentScore, res.Verdict)
	}
	if len(res.ROIProjection) != 5 {
		t.Errorf("ROIProjection len: got %d, want 5", len(res.ROIProjection))
	}
	if res.MarketSnapshot.MarketSentiment != "Bullish" || res.MarketSnapshot.LiquidityScore != 8.2 {
		t.Errorf("market snapshot: got %+v", res.MarketSnapshot)
	}
	if !strings.HasPrefix(res.InvestmentMemo, "## Thesis") {
		t.Errorf("memo: got %q", res.InvestmentMemo)
	}
}

func TestAnalyzeStructuredRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"validation_error","message":"Invalid input","detail":"City not covered"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Analyze(context.Background(), sampleRequest())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != 400 || apiErr.Message != "Invalid input" || apiErr.Detail != "City not covered" {
		t.Errorf("APIError: got %+v", apiErr)
	}
	if !apiErr.ClientError() || apiErr.ServerError() {
		t.Errorf("classification: client=%v server=%v", apiErr.ClientError(), apiErr.ServerError())
	}
}

func TestAnalyzeErrorFallsBackToErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"Unprocessable deal"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Analyze(context.Background(), sampleRequest())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Message != "Unprocessable deal" {
		t.Errorf("Message: got %q", apiErr.Message)
	}
}

func TestAnalyzeUnparsableServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Traceback (most recent call last): ..."))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Analyze(context.Background(), sampleRequest())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != 500 {
		t.Errorf("StatusCode: got %d, want 500", apiErr.StatusCode)
	}
	if apiErr.Message != "HTTP 500: Internal Server Error" {
		t.Errorf("Message: got %q", apiErr.Message)
	}
	if strings.Contains(apiErr.Error(), "Traceback") {
		t.Errorf("raw body leaked into error: %v", apiErr)
	}
}

func TestAnalyzeTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).Analyze(context.Background(), sampleRequest())
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Error("transport failure must not look like an APIError")
	}
}

func TestAnalyzeMalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"investment_score": 78, "verdict": `))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).Analyze(context.Background(), sampleRequest())
	if err == nil {
		t.Fatalf("expected decode error, got result %+v", res)
	}
	var apiErr *APIError
	var tErr *TransportError
	if errors.As(err, &apiErr) || errors.As(err, &tErr) {
		t.Errorf("decode failure should be a plain error, got %T", err)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/health" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	status, err := newTestClient(srv.URL).Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if status.Status != "ok" {
		t.Errorf("Status: got %q, want ok", status.Status)
	}
}
