// Package merchant talks to the merchant configuration service that owns
// per-merchant processing limits.
package merchant

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hackload-kz/payment-sub008/internal/config"
	"github.com/hackload-kz/payment-sub008/internal/domain"
)

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(cfg config.MerchantConfig) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

type limitsResponse struct {
	MerchantID           string   `json:"merchant_id"`
	MinAmount            int64    `json:"min_amount"`
	MaxAmount            int64    `json:"max_amount"`
	DailyLimit           int64    `json:"daily_limit"`
	SupportedCurrencies  []string `json:"supported_currencies"`
	AllowPartialRefunds  bool     `json:"allow_partial_refunds"`
	AllowPartialCaptures bool     `json:"allow_partial_captures"`
}

func (c *HTTPClient) GetLimits(ctx context.Context, merchantID string) (domain.MerchantLimits, error) {
	url := fmt.Sprintf("%s/api/v1/merchants/%s/limits", c.baseURL, merchantID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.MerchantLimits{}, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.MerchantLimits{}, domain.NewMerchantUnavailableError(merchantID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var errResp serviceErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			return domain.MerchantLimits{}, fmt.Errorf("merchant service returned status %d: %s", resp.StatusCode, string(body))
		}
		return domain.MerchantLimits{}, &ServiceError{
			Code:       errResp.Err,
			Message:    errResp.Message,
			StatusCode: resp.StatusCode,
		}
	}

	var lr limitsResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return domain.MerchantLimits{}, fmt.Errorf("error decoding json response: %w", err)
	}

	return domain.MerchantLimits{
		MerchantID:           lr.MerchantID,
		MinAmount:            lr.MinAmount,
		MaxAmount:            lr.MaxAmount,
		DailyLimit:           lr.DailyLimit,
		SupportedCurrencies:  lr.SupportedCurrencies,
		AllowPartialRefunds:  lr.AllowPartialRefunds,
		AllowPartialCaptures: lr.AllowPartialCaptures,
	}, nil
}
