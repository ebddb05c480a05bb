// Package smartapi serves daily price history from the Angel One SmartAPI
// historical candle endpoint.
package smartapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"signalbench/internal/model"
	"signalbench/pkg/smartconnect"
)

// maxDaysPerRequest is the widest ONE_DAY window the API serves at once.
const maxDaysPerRequest = 2000

// Config holds SmartAPI credentials.
type Config struct {
	APIKey     string
	ClientCode string
	Password   string
	TOTPSecret string
	Exchange   string // default NSE

	RootURL    string       // optional; for tests
	HTTPClient *http.Client // optional
}

// Source implements model.SeriesSource over getCandleData.
type Source struct {
	cfg    Config
	client *smartconnect.SmartConnect
	now    func() time.Time

	mu       sync.Mutex
	loggedIn bool
	tokens   map[string]string // ticker -> symbol token
}

// New creates a Source. Login happens on first use.
func New(cfg Config) *Source {
	if cfg.Exchange == "" {
		cfg.Exchange = "NSE"
	}
	return &Source{
		cfg: cfg,
		client: smartconnect.NewSmartConnect(smartconnect.Config{
			APIKey:     cfg.APIKey,
			RootURL:    cfg.RootURL,
			HTTPClient: cfg.HTTPClient,
		}),
		now:    time.Now,
		tokens: make(map[string]string),
	}
}

func (s *Source) login(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loggedIn {
		return nil
	}
	code, err := totp.GenerateCode(s.cfg.TOTPSecret, s.now())
	if err != nil {
		return fmt.Errorf("smartapi: totp: %w", err)
	}
	if err := s.client.GenerateSession(ctx, s.cfg.ClientCode, s.cfg.Password, code); err != nil {
		return fmt.Errorf("smartapi: login: %w", err)
	}
	s.loggedIn = true
	log.Printf("[smartapi] logged in as %s", s.cfg.ClientCode)
	return nil
}

func (s *Source) invalidateSession() {
	s.mu.Lock()
	s.loggedIn = false
	s.mu.Unlock()
}

// symbolToken resolves a ticker through searchScrip, preferring the
// "<TICKER>-EQ" listing.
func (s *Source) symbolToken(ctx context.Context, ticker string) (string, error) {
	s.mu.Lock()
	tok, ok := s.tokens[ticker]
	s.mu.Unlock()
	if ok {
		return tok, nil
	}

	scrips, err := s.client.SearchScrip(ctx, s.cfg.Exchange, ticker)
	if err != nil {
		return "", fmt.Errorf("smartapi: search %s: %w", ticker, err)
	}
	if len(scrips) == 0 {
		return "", fmt.Errorf("smartapi: no instrument for %s on %s", ticker, s.cfg.Exchange)
	}
	tok = scrips[0].SymbolToken
	for _, sc := range scrips {
		if strings.EqualFold(sc.TradingSymbol, ticker+"-EQ") || strings.EqualFold(sc.TradingSymbol, ticker) {
			tok = sc.SymbolToken
			break
		}
	}

	s.mu.Lock()
	s.tokens[ticker] = tok
	s.mu.Unlock()
	return tok, nil
}

// GetSeries downloads daily bars with start <= date <= end. A zero end
// means today.
func (s *Source) GetSeries(ctx context.Context, ticker string, start, end time.Time) (*model.PriceSeries, error) {
	series, err := s.getSeries(ctx, ticker, start, end)
	var apiErr *smartconnect.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorType == "TokenException" {
		log.Printf("[smartapi] session expired, logging in again")
		s.invalidateSession()
		series, err = s.getSeries(ctx, ticker, start, end)
	}
	return series, err
}

func (s *Source) getSeries(ctx context.Context, ticker string, start, end time.Time) (*model.PriceSeries, error) {
	if err := s.login(ctx); err != nil {
		return nil, err
	}
	tok, err := s.symbolToken(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if end.IsZero() {
		end = s.now()
	}

	series := &model.PriceSeries{Ticker: ticker, Span: model.SpanDaily}
	for from := start; !from.After(end); from = from.AddDate(0, 0, maxDaysPerRequest) {
		to := from.AddDate(0, 0, maxDaysPerRequest-1)
		if to.After(end) {
			to = end
		}
		candles, err := s.client.GetCandleData(ctx, smartconnect.CandleRequest{
			Exchange:    s.cfg.Exchange,
			SymbolToken: tok,
			Interval:    smartconnect.IntervalOneDay,
			From:        time.Date(from.Year(), from.Month(), from.Day(), 9, 15, 0, 0, time.UTC),
			To:          time.Date(to.Year(), to.Month(), to.Day(), 15, 30, 0, 0, time.UTC),
		})
		if err != nil {
			return nil, fmt.Errorf("smartapi: candles %s: %w", ticker, err)
		}
		for _, c := range candles {
			series.Bars = appendBar(series.Bars, toBar(c), start, end)
		}
	}
	return series, nil
}

// toBar dates the candle at UTC midnight of its exchange-local day.
func toBar(c smartconnect.Candle) model.PriceBar {
	d := time.Date(c.Time.Year(), c.Time.Month(), c.Time.Day(), 0, 0, 0, 0, time.UTC)
	return model.PriceBar{
		Date: d, Open: c.Open, High: c.High, Low: c.Low,
		Close: c.Close, AdjClose: c.Close, Volume: c.Volume,
	}
}

func appendBar(bars []model.PriceBar, b model.PriceBar, start, end time.Time) []model.PriceBar {
	if b.Date.Before(dayOf(start)) || b.Date.After(dayOf(end)) {
		return bars
	}
	if n := len(bars); n > 0 && !b.Date.After(bars[n-1].Date) {
		return bars
	}
	return append(bars, b)
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
