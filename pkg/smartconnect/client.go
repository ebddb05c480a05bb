// Package smartconnect is a minimal client for the Angel One SmartAPI REST
// endpoints used for historical data: password+TOTP login, scrip search and
// candle download.
//
// Usage example:
//
//	sc := smartconnect.NewSmartConnect(smartconnect.Config{APIKey: "your_api_key"})
//	if err := sc.GenerateSession(ctx, "CLIENTID", "PASSWORD", "123456"); err != nil { log.Fatal(err) }
//	candles, err := sc.GetCandleData(ctx, smartconnect.CandleRequest{
//	    Exchange: "NSE", SymbolToken: "3045", Interval: smartconnect.IntervalOneDay,
//	    From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), To: time.Now(),
//	})
package smartconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ---- Config & client ----

type Config struct {
	APIKey string

	RootURL        string        // default: https://apiconnect.angelone.in
	Debug          bool          // log requests and responses
	Timeout        time.Duration // default: 7s
	HTTPClient     *http.Client  // optional; overrides Timeout
	Accept         string        // default: application/json
	UserType       string        // default: USER
	SourceID       string        // default: WEB
	ClientPublicIP string        // default 106.193.147.98
	ClientLocalIP  string        // default resolved, else 127.0.0.1
	ClientMAC      string        // default from interface MAC
}

type SmartConnect struct {
	apiKey  string
	rootURL string
	debug   bool

	httpClient *http.Client

	// header fields
	accept   string
	userType string
	sourceID string

	clientPublicIP string
	clientLocalIP  string
	clientMAC      string

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	feedToken    string
	userID       string

	// Optional callback for 403 TokenException
	SessionExpiryHook func()
}

const defaultRoot = "https://apiconnect.angelone.in"

// Candle intervals accepted by getCandleData.
const (
	IntervalOneMinute = "ONE_MINUTE"
	IntervalOneHour   = "ONE_HOUR"
	IntervalOneDay    = "ONE_DAY"
)

var routes = map[string]string{
	"api.login":        "/rest/auth/angelbroking/user/v1/loginByPassword",
	"api.logout":       "/rest/secure/angelbroking/user/v1/logout",
	"api.token":        "/rest/auth/angelbroking/jwt/v1/generateTokens",
	"api.user.profile": "/rest/secure/angelbroking/user/v1/getProfile",
	"api.candle.data":  "/rest/secure/angelbroking/historical/v1/getCandleData",
	"api.search.scrip": "/rest/secure/angelbroking/order/v1/searchScrip",
}

// ErrLoginFailed is returned when the login response carries status=false.
var ErrLoginFailed = errors.New("smartconnect: login failed")

// APIError is an error envelope returned by the API.
type APIError struct {
	Status    int
	ErrorType string // e.g. TokenException
	Code      string // errorcode on status=false responses
	Message   string
}

func (e *APIError) Error() string {
	if e.ErrorType != "" {
		return fmt.Sprintf("smartconnect: %s: %s (http %d)", e.ErrorType, e.Message, e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("smartconnect: %s [%s] (http %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("smartconnect: %s (http %d)", e.Message, e.Status)
}

// GetLocalIP finds your local IP address
func GetLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}

	for _, address := range addrs {
		// Check if it's an IP address and not a loopback
		if ipNet, ok := address.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
			if ipNet.IP.To4() != nil {
				return ipNet.IP.String(), nil
			}
		}
	}
	return "", fmt.Errorf("no local IP found")
}

// NewSmartConnect initializes the client with header defaults.
func NewSmartConnect(cfg Config) *SmartConnect {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 7 * time.Second
	}
	if cfg.Accept == "" {
		cfg.Accept = "application/json"
	}
	if cfg.UserType == "" {
		cfg.UserType = "USER"
	}
	if cfg.SourceID == "" {
		cfg.SourceID = "WEB"
	}
	if cfg.ClientLocalIP == "" {
		localIP, err := GetLocalIP()
		if err != nil {
			log.Printf("[smartconnect] local IP: %v", err)
		}
		cfg.ClientLocalIP = firstNonEmpty(localIP, "127.0.0.1")
	}
	cfg.ClientPublicIP = firstNonEmpty(cfg.ClientPublicIP, "106.193.147.98")
	if cfg.ClientMAC == "" {
		cfg.ClientMAC = getMACFallback()
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	return &SmartConnect{
		apiKey:         cfg.APIKey,
		rootURL:        strings.TrimRight(cfg.RootURL, "/"),
		debug:          cfg.Debug,
		httpClient:     client,
		accept:         cfg.Accept,
		userType:       cfg.UserType,
		sourceID:       cfg.SourceID,
		clientPublicIP: cfg.ClientPublicIP,
		clientLocalIP:  cfg.ClientLocalIP,
		clientMAC:      cfg.ClientMAC,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func getMACFallback() string {
	ifs, _ := net.Interfaces()
	for _, ifc := range ifs {
		if len(ifc.HardwareAddr) > 0 {
			return ifc.HardwareAddr.String()
		}
	}
	return "00:11:22:33:44:55"
}

// ---- Helpers ----

func (sc *SmartConnect) requestHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", sc.accept)
	h.Set("Accept", sc.accept)
	h.Set("X-ClientLocalIP", sc.clientLocalIP)
	h.Set("X-ClientPublicIP", sc.clientPublicIP)
	h.Set("X-MACAddress", sc.clientMAC)
	h.Set("X-PrivateKey", sc.apiKey)
	h.Set("X-UserType", sc.userType)
	h.Set("X-SourceID", sc.sourceID)
	if tok := sc.AccessToken(); tok != "" {
		h.Set("Authorization", "Bearer "+tok)
	}
	return h
}

// envelope is the common SmartAPI response shape.
type envelope struct {
	Status    bool            `json:"status"`
	Message   string          `json:"message"`
	ErrorCode string          `json:"errorcode"`
	ErrorType string          `json:"error_type"`
	Data      json.RawMessage `json:"data"`
}

// post sends params as JSON and decodes the envelope. A non-nil out receives
// the data field.
func (sc *SmartConnect) post(ctx context.Context, route string, params map[string]any, out any) error {
	uri, ok := routes[route]
	if !ok {
		return fmt.Errorf("smartconnect: unknown route: %s", route)
	}
	fullURL := sc.rootURL + uri

	if params == nil {
		params = map[string]any{}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("smartconnect: marshal %s: %w", route, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header = sc.requestHeaders()

	if sc.debug {
		log.Printf("[smartconnect] request: POST %s", fullURL)
	}

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("smartconnect: %s: %w", route, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("smartconnect: read %s: %w", route, err)
	}

	if sc.debug {
		log.Printf("[smartconnect] response: code=%d body=%s", resp.StatusCode, string(raw))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("smartconnect: couldn't parse JSON response (http %d): %w", resp.StatusCode, err)
	}
	if env.ErrorType != "" {
		if sc.SessionExpiryHook != nil && resp.StatusCode == http.StatusForbidden && env.ErrorType == "TokenException" {
			sc.SessionExpiryHook()
		}
		return &APIError{Status: resp.StatusCode, ErrorType: env.ErrorType, Message: env.Message}
	}
	if !env.Status {
		return &APIError{Status: resp.StatusCode, Code: env.ErrorCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("smartconnect: decode %s data: %w", route, err)
		}
	}
	return nil
}

// ---- Session ----

func (sc *SmartConnect) AccessToken() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.accessToken
}

func (sc *SmartConnect) UserID() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.userID
}

type sessionData struct {
	JWTToken     string `json:"jwtToken"`
	RefreshToken string `json:"refreshToken"`
	FeedToken    string `json:"feedToken"`
}

// GenerateSession logs in with client code, password and a current TOTP and
// stores the returned tokens.
func (sc *SmartConnect) GenerateSession(ctx context.Context, clientCode, password, totp string) error {
	var data sessionData
	err := sc.post(ctx, "api.login", map[string]any{
		"clientcode": clientCode, "password": password, "totp": totp,
	}, &data)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.ErrorType == "" {
			return fmt.Errorf("%w: %s", ErrLoginFailed, apiErr)
		}
		return err
	}
	if data.JWTToken == "" {
		return fmt.Errorf("%w: response carried no jwtToken", ErrLoginFailed)
	}

	sc.mu.Lock()
	sc.accessToken = data.JWTToken
	sc.refreshToken = data.RefreshToken
	sc.feedToken = data.FeedToken
	sc.userID = clientCode
	sc.mu.Unlock()
	return nil
}

// TerminateSession logs out and clears the stored tokens.
func (sc *SmartConnect) TerminateSession(ctx context.Context) error {
	err := sc.post(ctx, "api.logout", map[string]any{"clientcode": sc.UserID()}, nil)
	sc.mu.Lock()
	sc.accessToken, sc.refreshToken, sc.feedToken = "", "", ""
	sc.mu.Unlock()
	return err
}

// ---- Market data ----

// Scrip is one searchScrip match.
type Scrip struct {
	Exchange      string `json:"exchange"`
	TradingSymbol string `json:"tradingsymbol"`
	SymbolToken   string `json:"symboltoken"`
}

// SearchScrip looks up instruments by symbol text.
func (sc *SmartConnect) SearchScrip(ctx context.Context, exchange, query string) ([]Scrip, error) {
	var out []Scrip
	err := sc.post(ctx, "api.search.scrip", map[string]any{"exchange": exchange, "searchscrip": query}, &out)
	return out, err
}

// CandleRequest selects a getCandleData window.
type CandleRequest struct {
	Exchange    string
	SymbolToken string
	Interval    string
	From, To    time.Time
}

// Candle is one OHLCV row.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

const candleTimeLayout = "2006-01-02 15:04"

// GetCandleData downloads candles in [From, To].
func (sc *SmartConnect) GetCandleData(ctx context.Context, r CandleRequest) ([]Candle, error) {
	var rows [][]json.RawMessage
	err := sc.post(ctx, "api.candle.data", map[string]any{
		"exchange":    r.Exchange,
		"symboltoken": r.SymbolToken,
		"interval":    r.Interval,
		"fromdate":    r.From.Format(candleTimeLayout),
		"todate":      r.To.Format(candleTimeLayout),
	}, &rows)
	if err != nil {
		return nil, err
	}

	out := make([]Candle, 0, len(rows))
	for i, row := range rows {
		c, err := parseCandle(row)
		if err != nil {
			return nil, fmt.Errorf("smartconnect: candle %d: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// parseCandle decodes ["2024-01-02T00:00:00+05:30", o, h, l, c, v].
func parseCandle(row []json.RawMessage) (Candle, error) {
	if len(row) < 6 {
		return Candle{}, fmt.Errorf("want 6 fields, got %d", len(row))
	}
	var ts string
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return Candle{}, fmt.Errorf("timestamp: %w", err)
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return Candle{}, fmt.Errorf("timestamp: %w", err)
	}
	var v [5]float64
	for i := range v {
		if err := json.Unmarshal(row[i+1], &v[i]); err != nil {
			return Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
	}
	return Candle{Time: t, Open: v[0], High: v[1], Low: v[2], Close: v[3], Volume: int64(v[4])}, nil
}
