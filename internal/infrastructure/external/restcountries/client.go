// Package restcountries reads the reference country list from restcountries.com.
package restcountries

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultURL is the upstream endpoint, restricted to the fields we map
const DefaultURL = "https://restcountries.com/v3.1/all?fields=name,cca2,currencies"

// Config holds client settings; zero values fall back to defaults
type Config struct {
	URL        string
	CacheTTL   time.Duration
	Timeout    time.Duration
	Attempts   uint
	RetryDelay time.Duration
}

// Client is a cached CountryDirectory
type Client struct {
	httpClient *http.Client
	url        string
	ttl        time.Duration
	attempts   uint
	delay      time.Duration
	now        func() time.Time
	logger     *zap.Logger

	group     singleflight.Group
	mu        sync.RWMutex
	countries []entity.Country
	fetchedAt time.Time
}

// NewClient creates a new restcountries client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	c := &Client{
		url:      cfg.URL,
		ttl:      cfg.CacheTTL,
		attempts: cfg.Attempts,
		delay:    cfg.RetryDelay,
		now:      time.Now,
		logger:   logger,
	}
	if c.url == "" {
		c.url = DefaultURL
	}
	if c.ttl <= 0 {
		c.ttl = 24 * time.Hour
	}
	if c.attempts == 0 {
		c.attempts = 3
	}
	if c.delay <= 0 {
		c.delay = 500 * time.Millisecond
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c.httpClient = &http.Client{Timeout: timeout}
	return c
}

// List returns the cached countries, fetching them when the cache is empty or stale.
// A failed fetch falls back to stale data when there is any.
func (c *Client) List(ctx context.Context) ([]entity.Country, error) {
	if countries, fresh := c.cached(); fresh {
		return countries, nil
	}

	countries, err := c.load(ctx)
	if err == nil {
		return countries, nil
	}

	if stale, _ := c.cached(); stale != nil {
		c.logger.Warn("Serving stale country list", zap.Error(err))
		return stale, nil
	}
	return nil, err
}

// Refresh fetches the list regardless of cache age
func (c *Client) Refresh(ctx context.Context) error {
	_, err := c.load(ctx)
	return err
}

func (c *Client) cached() ([]entity.Country, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.countries == nil {
		return nil, false
	}
	return append([]entity.Country(nil), c.countries...), c.now().Sub(c.fetchedAt) < c.ttl
}

// load fetches once for all concurrent callers and stores the result.
// The shared fetch ignores the cancellation of whichever caller started it;
// each caller stops waiting when its own ctx is done.
func (c *Client) load(ctx context.Context) ([]entity.Country, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan("countries", func() (interface{}, error) {
		countries, err := c.fetch(detached)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.countries = countries
		c.fetchedAt = c.now()
		c.mu.Unlock()

		c.logger.Info("Country list refreshed", zap.Int("count", len(countries)))
		return countries, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		c.logger.Debug("Country fetch shared between callers")
	}
	return append([]entity.Country(nil), res.Val.([]entity.Country)...), nil
}

type upstreamCountry struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	CCA2       string `json:"cca2"`
	Currencies map[string]struct {
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	} `json:"currencies"`
}

// statusError is an unexpected upstream status code
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("restcountries returned status %d", e.code)
}

// retryable rejects client errors other than 429
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}

func (c *Client) fetch(ctx context.Context) ([]entity.Country, error) {
	var body []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
			if err != nil {
				return err
			}
			req.Header.Set("Accept", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return &statusError{code: resp.StatusCode}
			}

			body, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(attempt uint, err error) {
			c.logger.Warn("Retrying country fetch", zap.Uint("attempt", attempt+1), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch countries: %w", err)
	}

	var upstream []upstreamCountry
	if err := json.Unmarshal(body, &upstream); err != nil {
		return nil, fmt.Errorf("failed to decode countries: %w", err)
	}
	return mapCountries(upstream), nil
}

// mapCountries drops entries without a name or code and sorts by name ignoring case
func mapCountries(upstream []upstreamCountry) []entity.Country {
	countries := make([]entity.Country, 0, len(upstream))
	for _, u := range upstream {
		name := strings.TrimSpace(u.Name.Common)
		code := strings.ToUpper(strings.TrimSpace(u.CCA2))
		if name == "" || code == "" {
			continue
		}

		currencyCodes := make([]string, 0, len(u.Currencies))
		for cc := range u.Currencies {
			currencyCodes = append(currencyCodes, cc)
		}
		sort.Strings(currencyCodes)

		currencies := make([]entity.Currency, 0, len(currencyCodes))
		for _, cc := range currencyCodes {
			info := u.Currencies[cc]
			currencies = append(currencies, entity.Currency{Code: cc, Name: info.Name, Symbol: info.Symbol})
		}

		countries = append(countries, entity.Country{Name: name, Code: code, Currencies: currencies})
	}

	coll := collate.New(language.English, collate.IgnoreCase)
	sort.SliceStable(countries, func(i, j int) bool {
		return coll.CompareString(countries[i].Name, countries[j].Name) < 0
	})
	return countries
}

var _ port.CountryDirectory = (*Client)(nil)
