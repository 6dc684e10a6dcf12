package estimator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"transit-observer/src/interfaces"
	"transit-observer/src/logger"
)

// -----------------------------------------------------------------------------
// HTTPEstimator calls an external travel-time estimator service. The service
// is a black box: it takes route/traffic features and answers with an ETA and
// a confidence. Any failure — timeout, non-200, bad body — is reported as
// "unavailable" so the strategy chain falls through.
// -----------------------------------------------------------------------------

type HTTPEstimator struct {
	URL        string
	HttpClient *http.Client
	Logger     *logger.Logger
}

type estimateResponse struct {
	EtaSeconds float64 `json:"eta_seconds"`
	Confidence float64 `json:"confidence"`
}

// -----------------------------------------------------------------------------

func NewHTTPEstimator(url string) *HTTPEstimator {
	return &HTTPEstimator{
		URL:        url,
		HttpClient: &http.Client{},
		Logger:     logger.NewLogger("Estimator"),
	}
}

// -----------------------------------------------------------------------------

// Estimate implements interfaces.IEstimator. The caller bounds the context;
// the request is cancelled with it.
func (e *HTTPEstimator) Estimate(ctx context.Context, features interfaces.EstimatorFeatures) (float64, float64, bool) {
	if e.URL == "" {
		return 0, 0, false
	}

	body, err := json.Marshal(features)
	if err != nil {
		return 0, 0, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return 0, 0, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HttpClient.Do(req)
	if err != nil {
		e.Logger.Debug("estimator call failed: %v", err)
		return 0, 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.Logger.Debug("estimator returned HTTP %d", resp.StatusCode)
		return 0, 0, false
	}

	var parsed estimateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		e.Logger.Debug("estimator response decode failed: %v", err)
		return 0, 0, false
	}
	if parsed.EtaSeconds < 0 {
		return 0, 0, false
	}
	return parsed.EtaSeconds, parsed.Confidence, true
}

// -----------------------------------------------------------------------------

var _ interfaces.IEstimator = (*HTTPEstimator)(nil)

func (e *HTTPEstimator) String() string {
	return fmt.Sprintf("HTTPEstimator(%s)", e.URL)
}
