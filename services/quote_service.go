package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"marketgist_backend/models"

	"golang.org/x/time/rate"
)

// Finnhub API constants
const (
	FinnhubBaseURL      = "https://finnhub.io/api/v1"
	QuoteRequestTimeout = 10 * time.Second
	QuoteMaxRetries     = 2
	QuoteRetryDelay     = 500 * time.Millisecond
)

// ErrQuoteUnavailable indicates no usable price data for a symbol
var ErrQuoteUnavailable = errors.New("no price data available")

// FinnhubQuote represents the quote response from Finnhub
type FinnhubQuote struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PrevClose     float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// QuoteService fetches current prices from Finnhub. Requests share a rate
// budget so a large cycle cannot exhaust the API quota.
type QuoteService struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewQuoteService creates a quote service with the given per-minute rate budget
func NewQuoteService(apiKey string, ratePerMinute int) *QuoteService {
	if ratePerMinute <= 0 {
		ratePerMinute = 50
	}
	return &QuoteService{
		apiKey:  apiKey,
		baseURL: FinnhubBaseURL,
		httpClient: &http.Client{
			Timeout: QuoteRequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), ratePerMinute),
	}
}

// GetQuote fetches the current quote for a symbol. Transient failures are
// retried a bounded number of times with a short backoff; failures stay
// isolated to the symbol being fetched.
func (s *QuoteService) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("FINNHUB_API_KEY is not configured")
	}

	var lastErr error
	for attempt := 0; attempt <= QuoteMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * QuoteRetryDelay):
			}
		}

		quote, err := s.fetchQuote(ctx, symbol)
		if err == nil {
			return quote, nil
		}
		lastErr = err
		if errors.Is(err, ErrQuoteUnavailable) || ctx.Err() != nil {
			break
		}
		log.Printf("Warning: quote fetch attempt %d failed for %s: %v", attempt+1, symbol, err)
	}
	return nil, lastErr
}

func (s *QuoteService) fetchQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/quote?symbol=%s&token=%s", s.baseURL, url.QueryEscape(symbol), s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed for %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("quote request for %s returned %d: %s", symbol, resp.StatusCode, string(body))
	}

	var fq FinnhubQuote
	if err := json.NewDecoder(resp.Body).Decode(&fq); err != nil {
		return nil, fmt.Errorf("failed to decode quote for %s: %w", symbol, err)
	}

	// Finnhub returns c=0 for unknown symbols and outside coverage
	if fq.Current == 0 {
		return nil, fmt.Errorf("%w for %s", ErrQuoteUnavailable, symbol)
	}

	return &models.Quote{
		Symbol:    symbol,
		Price:     fq.Current,
		Timestamp: time.Now(),
	}, nil
}
