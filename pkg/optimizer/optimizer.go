package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/arnavshah/rota-api-go/pkg/config"
	"github.com/arnavshah/rota-api-go/pkg/models"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var (
	// ErrUnavailable wraps transport and provider failures
	ErrUnavailable = errors.New("schedule optimizer unavailable")
	// ErrInvalidProposal is returned when the reply holds no usable schedule
	ErrInvalidProposal = errors.New("invalid schedule proposal")
)

// Optimizer proposes a schedule for a roster and date range
type Optimizer interface {
	Optimize(ctx context.Context, req Request) (*models.Proposal, error)
}

// Request is sent to the optimizer. Station names are display names, which
// is what the proposal is keyed on.
type Request struct {
	OrganizationID string                 `json:"organizationId"`
	StartDate      string                 `json:"startDate"`
	EndDate        string                 `json:"endDate"`
	Model          string                 `json:"model,omitempty"`
	Staff          []models.Staff         `json:"staff"`
	Shifts         []models.ShiftTemplate `json:"shifts"`
	Weather        models.Forecast        `json:"weather,omitempty"`
}

// Client calls the optimizer over HTTP
type Client struct {
	http   *resty.Client
	model  string
	logger *zap.Logger
}

// NewClient creates an optimizer client. Calls are not retried.
func NewClient(cfg config.OptimizerConfig, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}
	return &Client{http: httpClient, model: cfg.Model, logger: logger}
}

// Optimize posts the request and parses the proposal from the reply
func (c *Client) Optimize(ctx context.Context, req Request) (*models.Proposal, error) {
	if req.Model == "" {
		req.Model = c.model
	}

	c.logger.Info("calling schedule optimizer",
		zap.String("organization_id", req.OrganizationID),
		zap.String("start", req.StartDate),
		zap.String("end", req.EndDate),
		zap.Int("staff_count", len(req.Staff)),
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post("/optimize")
	if err != nil {
		c.logger.Error("schedule optimizer call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.IsError() {
		c.logger.Error("schedule optimizer returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", truncate(resp.String(), 512)),
		)
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode())
	}

	proposal, err := ParseProposal(resp.Body())
	if err != nil {
		c.logger.Error("failed to parse optimizer reply", zap.Error(err))
		return nil, err
	}
	return proposal, nil
}

// ParseProposal decodes a proposal. Replies from text-generation services
// may wrap the JSON in prose or markdown fences, so the outermost object is
// extracted first.
func ParseProposal(body []byte) (*models.Proposal, error) {
	start := bytes.IndexByte(body, '{')
	end := bytes.LastIndexByte(body, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrInvalidProposal)
	}

	var envelope struct {
		models.Proposal
		Content string `json:"content"`
	}
	if err := json.Unmarshal(body[start:end+1], &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProposal, err)
	}
	// Some providers return {"content": "<text with JSON>"}
	if len(envelope.Schedule) == 0 && envelope.Content != "" {
		return ParseProposal([]byte(envelope.Content))
	}
	if len(envelope.Schedule) == 0 {
		return nil, fmt.Errorf("%w: empty schedule", ErrInvalidProposal)
	}
	return &envelope.Proposal, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
