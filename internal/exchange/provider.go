package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avoronov/billfold/internal/domain"
)

// RateProvider fetches a conversion rate for an ordered currency pair.
type RateProvider interface {
	PairRate(ctx context.Context, from, to string) (float64, error)
}

// APIProvider talks to the exchangerate-api v6 pair endpoint:
//
//	GET {base}/pair/{FROM}/{TO} → {"result":"success","conversion_rate":N}
type APIProvider struct {
	baseURL string
	client  *http.Client
}

// NewAPIProvider creates a provider against the given base URL, which must
// already include the API key segment, e.g.
// "https://v6.exchangerate-api.com/v6/<key>".
func NewAPIProvider(baseURL string) *APIProvider {
	return &APIProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type pairResponse struct {
	Result         string   `json:"result"`
	ConversionRate *float64 `json:"conversion_rate"`
	ErrorType      string   `json:"error-type"`
}

// PairRate fetches the rate for converting one unit of from into to.
func (p *APIProvider) PairRate(ctx context.Context, from, to string) (float64, error) {
	url := fmt.Sprintf("%s/pair/%s/%s", p.baseURL, strings.ToUpper(from), strings.ToUpper(to))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, domain.External("exchange-rate", "building request", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, domain.External("exchange-rate", "provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, domain.External("exchange-rate",
			fmt.Sprintf("provider returned status %d", resp.StatusCode), nil)
	}

	var body pairResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, domain.External("exchange-rate", "decoding provider response", err)
	}

	if body.Result != "success" {
		reason := body.ErrorType
		if reason == "" {
			reason = "non-success result"
		}
		return 0, domain.External("exchange-rate", reason, nil)
	}
	if body.ConversionRate == nil || *body.ConversionRate <= 0 {
		return 0, domain.External("exchange-rate", "missing conversion rate", nil)
	}

	return *body.ConversionRate, nil
}
