package optimizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arnavshah/rota-api-go/pkg/config"
	"github.com/arnavshah/rota-api-go/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseProposal(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"plain json", `{"schedule":{"monday":{"lunch":{"Kitchen":[{"name":"Jane Doe"}]}}},"reasoning":"ok","efficiency":88}`},
		{"markdown fence", "Here is the plan:\n```json\n{\"schedule\":{\"monday\":{\"lunch\":{\"Kitchen\":[{\"name\":\"Jane Doe\"}]}}},\"reasoning\":\"ok\",\"efficiency\":88}\n```\nEnjoy."},
		{"content envelope", `{"content":"{\"schedule\":{\"monday\":{\"lunch\":{\"Kitchen\":[{\"name\":\"Jane Doe\"}]}}},\"reasoning\":\"ok\",\"efficiency\":88}"}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := ParseProposal([]byte(tc.body))
			require.NoError(t, err)
			assert.Equal(t, "Jane Doe", p.Schedule["monday"]["lunch"]["Kitchen"][0].Name)
			assert.Equal(t, "ok", p.Reasoning)
			assert.Equal(t, 88.0, p.Efficiency)
		})
	}
}

func TestParseProposal_Invalid(t *testing.T) {
	for _, body := range []string{"", "no json here", `{"schedule":{}}`, `{"schedule":`} {
		_, err := ParseProposal([]byte(body))
		assert.ErrorIs(t, err, ErrInvalidProposal, "body %q", body)
	}
}

func TestClient_Optimize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/optimize", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))

		var req Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "org-1", req.OrganizationID)
		assert.Equal(t, "test-model", req.Model)
		assert.Len(t, req.Staff, 1)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"schedule":{"monday":{"Lunch":{"Bar":[{"id":"s1","name":"Ann Lee"}]}}},"costSavings":42}`))
	}))
	defer server.Close()

	client := NewClient(config.OptimizerConfig{BaseURL: server.URL, APIKey: "key-1", Model: "test-model", Timeout: 2 * time.Second}, zap.NewNop())

	p, err := client.Optimize(context.Background(), Request{
		OrganizationID: "org-1",
		StartDate:      "2024-01-01",
		EndDate:        "2024-01-07",
		Staff:          []models.Staff{{ID: "s1", Name: "Ann Lee"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", p.Schedule["monday"]["Lunch"]["Bar"][0].ID)
	assert.Equal(t, 42.0, p.CostSavings)
}

func TestClient_OptimizeProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(config.OptimizerConfig{BaseURL: server.URL, Timeout: 2 * time.Second}, zap.NewNop())

	_, err := client.Optimize(context.Background(), Request{OrganizationID: "org-1"})
	assert.ErrorIs(t, err, ErrUnavailable)
}
