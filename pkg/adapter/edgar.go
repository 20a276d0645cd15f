package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/m-mizutani/edgarchat/pkg/model"
	"github.com/m-mizutani/edgarchat/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultEDGARWWWURL    = "https://www.sec.gov"
	DefaultEDGARDataURL   = "https://data.sec.gov"
	DefaultEDGARTimeout   = 30 * time.Second
	DefaultEDGARRateLimit = 10 // requests per second, SEC fair access
	DefaultUserAgent      = "edgarchat/1.0 (contact@example.com)"
	DefaultTickersTTL     = time.Hour

	// filing documents above this size are cut off before parsing
	maxDocumentBytes = 32 << 20
)

var (
	ErrNotFound = goerr.New("resource not found")
)

// EDGAR is the filing registry collaborator
type EDGAR interface {
	// CompanyTickers returns the ticker directory in registry order
	CompanyTickers(ctx context.Context) ([]*model.Company, error)
	// Submissions returns company metadata and recent filings, most recent first
	Submissions(ctx context.Context, cik model.CIK) (*Submissions, error)
	// Document downloads the primary document of a filing
	Document(ctx context.Context, filing *model.Filing) ([]byte, error)
}

type Submissions struct {
	CIK                  model.CIK
	Name                 string
	Tickers              []string
	SICDescription       string
	StateOfIncorporation string
	FiscalYearEnd        string
	Filings              []*model.Filing
}

type EDGARClient struct {
	wwwURL     string
	dataURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	tickersTTL time.Duration
	now        func() time.Time

	mu        sync.Mutex
	tickers   []*model.Company
	fetchedAt time.Time
}

var _ EDGAR = (*EDGARClient)(nil)

type EDGAROption func(*EDGARClient)

// WithEDGARBaseURLs overrides both hosts, mainly for tests
func WithEDGARBaseURLs(wwwURL, dataURL string) EDGAROption {
	return func(c *EDGARClient) {
		c.wwwURL = wwwURL
		c.dataURL = dataURL
	}
}

// WithUserAgent sets the contact bearing User-Agent SEC requires
func WithUserAgent(ua string) EDGAROption {
	return func(c *EDGARClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

func WithEDGARRateLimit(requestsPerSecond int) EDGAROption {
	return func(c *EDGARClient) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

func WithEDGARTimeout(timeout time.Duration) EDGAROption {
	return func(c *EDGARClient) {
		c.httpClient.Timeout = timeout
	}
}

func WithEDGARHTTPClient(client *http.Client) EDGAROption {
	return func(c *EDGARClient) {
		c.httpClient = client
	}
}

// WithTickersTTL sets how long the ticker directory is cached. Zero disables
// caching.
func WithTickersTTL(ttl time.Duration) EDGAROption {
	return func(c *EDGARClient) {
		c.tickersTTL = ttl
	}
}

func WithEDGARClock(now func() time.Time) EDGAROption {
	return func(c *EDGARClient) {
		c.now = now
	}
}

func NewEDGAR(opts ...EDGAROption) *EDGARClient {
	c := &EDGARClient{
		wwwURL:     DefaultEDGARWWWURL,
		dataURL:    DefaultEDGARDataURL,
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: DefaultEDGARTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultEDGARRateLimit), DefaultEDGARRateLimit),
		tickersTTL: DefaultTickersTTL,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *EDGARClient) get(ctx context.Context, url, accept string, limit int64) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, goerr.Wrap(err, "failed to wait for rate limit", goerr.V("url", url))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("url", url))
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)

	logger := logging.From(ctx)
	logger.Debug("EDGAR request", "url", url)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to send EDGAR request", goerr.V("url", url))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, goerr.Wrap(ErrNotFound, "EDGAR resource not found", goerr.V("url", url))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logger.Warn("EDGAR non-OK response",
			"url", url,
			"status", resp.StatusCode,
			"elapsed", time.Since(start),
		)
		return nil, goerr.New("EDGAR request failed",
			goerr.V("url", url),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)),
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read EDGAR response", goerr.V("url", url))
	}

	logger.Debug("EDGAR response", "url", url, "bytes", len(body), "elapsed", time.Since(start))
	return body, nil
}

type tickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

func (c *EDGARClient) CompanyTickers(ctx context.Context) ([]*model.Company, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tickers != nil && c.tickersTTL > 0 && c.now().Sub(c.fetchedAt) < c.tickersTTL {
		return c.tickers, nil
	}

	body, err := c.get(ctx, c.wwwURL+"/files/company_tickers.json", "application/json", maxDocumentBytes)
	if err != nil {
		return nil, err
	}

	// keyed by "0", "1", ... in registry order
	var raw map[string]tickerEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, goerr.Wrap(err, "failed to decode company tickers")
	}

	type indexed struct {
		idx   int
		entry tickerEntry
	}
	entries := make([]indexed, 0, len(raw))
	for key, e := range raw {
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, goerr.Wrap(err, "unexpected key in company tickers", goerr.V("key", key))
		}
		entries = append(entries, indexed{idx: idx, entry: e})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })

	companies := make([]*model.Company, 0, len(entries))
	for _, e := range entries {
		companies = append(companies, &model.Company{
			CIK:    model.CIK(fmt.Sprintf("%010d", e.entry.CIK)),
			Ticker: e.entry.Ticker,
			Name:   e.entry.Title,
		})
	}

	c.tickers = companies
	c.fetchedAt = c.now()
	return companies, nil
}

type submissionsResponse struct {
	CIK                  string   `json:"cik"`
	Name                 string   `json:"name"`
	Tickers              []string `json:"tickers"`
	SICDescription       string   `json:"sicDescription"`
	StateOfIncorporation string   `json:"stateOfIncorporation"`
	FiscalYearEnd        string   `json:"fiscalYearEnd"`
	Filings              struct {
		Recent struct {
			AccessionNumber []string `json:"accessionNumber"`
			FilingDate      []string `json:"filingDate"`
			Form            []string `json:"form"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

func (c *EDGARClient) Submissions(ctx context.Context, cik model.CIK) (*Submissions, error) {
	url := fmt.Sprintf("%s/submissions/CIK%s.json", c.dataURL, cik)
	body, err := c.get(ctx, url, "application/json", maxDocumentBytes)
	if err != nil {
		return nil, err
	}

	var resp submissionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to decode submissions", goerr.V("cik", cik))
	}

	out := &Submissions{
		CIK:                  cik,
		Name:                 resp.Name,
		Tickers:              resp.Tickers,
		SICDescription:       resp.SICDescription,
		StateOfIncorporation: resp.StateOfIncorporation,
		FiscalYearEnd:        resp.FiscalYearEnd,
	}

	recent := resp.Filings.Recent
	for i, form := range recent.Form {
		out.Filings = append(out.Filings, &model.Filing{
			CIK:             cik,
			FormType:        form,
			FilingDate:      at(recent.FilingDate, i),
			Accession:       at(recent.AccessionNumber, i),
			PrimaryDocument: at(recent.PrimaryDocument, i),
		})
	}

	return out, nil
}

func (c *EDGARClient) Document(ctx context.Context, filing *model.Filing) ([]byte, error) {
	if filing == nil || filing.Accession == "" || filing.PrimaryDocument == "" {
		return nil, goerr.New("filing has no document reference", goerr.V("filing", filing))
	}
	url := c.wwwURL + "/Archives/edgar/data/" + filing.DocumentPath()
	return c.get(ctx, url, "text/html,application/xhtml+xml", maxDocumentBytes)
}
