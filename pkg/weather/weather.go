package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arnavshah/rota-api-go/pkg/config"
	"github.com/arnavshah/rota-api-go/pkg/models"
	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// ErrUnavailable wraps every failure to obtain a forecast
var ErrUnavailable = errors.New("weather forecast unavailable")

// Forecaster provides staffing forecasts for a date range
type Forecaster interface {
	Forecast(ctx context.Context, start, end time.Time) (models.Forecast, error)
}

// Client fetches forecasts over HTTP and caches them in memory
type Client struct {
	http     *resty.Client
	location string
	enabled  bool
	cache    *cache.Cache
	ttl      time.Duration
	logger   *zap.Logger
}

// NewClient creates a forecast client. Calls are not retried; a failed
// fetch is reported to the caller, which falls back to unadjusted staffing.
func NewClient(cfg config.WeatherConfig, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}

	return &Client{
		http:     httpClient,
		location: cfg.Location,
		enabled:  cfg.BaseURL != "",
		cache:    cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		ttl:      cfg.CacheTTL,
		logger:   logger,
	}
}

// Forecast returns one entry per day of the inclusive range
func (c *Client) Forecast(ctx context.Context, start, end time.Time) (models.Forecast, error) {
	if !c.enabled {
		return nil, fmt.Errorf("%w: no provider configured", ErrUnavailable)
	}

	from := start.Format(models.DateLayout)
	to := end.Format(models.DateLayout)
	key := c.location + "|" + from + "|" + to
	if cached, found := c.cache.Get(key); found {
		return cached.(models.Forecast), nil
	}

	var forecast models.Forecast
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"start":    from,
			"end":      to,
			"location": c.location,
		}).
		SetResult(&forecast).
		Get("/forecast")
	if err != nil {
		c.logger.Warn("weather request failed", zap.Error(err), zap.String("start", from), zap.String("end", to))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		c.logger.Warn("weather provider returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("start", from),
			zap.String("end", to),
		)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}

	for i := range forecast {
		forecast[i].StaffingImpact = models.Impact(strings.ToLower(strings.TrimSpace(string(forecast[i].StaffingImpact))))
	}
	c.cache.Set(key, forecast, c.ttl)
	c.logger.Debug("weather forecast fetched", zap.Int("days", len(forecast)))
	return forecast, nil
}
