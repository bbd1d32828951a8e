// Package assessor estimates crop damage from claim photos, falling back to a
// seeded estimate when the model service is slow, failing or tripped.
package assessor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"farmshield/internal/claim/models"
)

const (
	predictPath         = "/api/predict"
	defaultModelVersion = "1.0.0"
)

// HTTPClient calls the model service's prediction endpoint.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient builds a client. Deadlines come from the caller's context.
func NewHTTPClient(baseURL string, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type predictRequest struct {
	ImageURLs []string `json:"image_urls"`
}

func (c *HTTPClient) Predict(ctx context.Context, imageRefs []string) (*models.Prediction, error) {
	body, err := json.Marshal(predictRequest{ImageURLs: imageRefs})
	if err != nil {
		return nil, fmt.Errorf("encode predict request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+predictPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call assessor: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("assessor status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var raw map[string]any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode assessor response: %w", err)
	}
	return parsePrediction(raw)
}

func parsePrediction(raw map[string]any) (*models.Prediction, error) {
	num, ok := raw["damage_percentage"].(json.Number)
	if !ok {
		return nil, fmt.Errorf("assessor response missing damage_percentage")
	}
	damage, err := decimal.NewFromString(num.String())
	if err != nil {
		return nil, fmt.Errorf("assessor damage_percentage: %w", err)
	}
	if damage.IsNegative() || damage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, fmt.Errorf("assessor damage_percentage %s out of range", damage)
	}
	finding, _ := raw["disease_detected"].(string)
	version, _ := raw["model_version"].(string)
	if version == "" {
		version = defaultModelVersion
	}
	return &models.Prediction{
		DamagePercent: damage,
		Finding:       finding,
		ModelVersion:  version,
		Details:       raw,
	}, nil
}
