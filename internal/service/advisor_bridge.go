package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/wayline/backend/internal/domain"
)

// AdvisorBridge talks to the external advisory service that turns route
// context into free-text driving advice. The service is an opaque
// collaborator: on any failure the bridge answers with a deterministic
// local advisory instead of an error.
type AdvisorBridge struct {
	serviceURL string
	httpClient *http.Client
}

// NewAdvisorBridge creates a new advisor bridge.
func NewAdvisorBridge(serviceURL string) *AdvisorBridge {
	return &AdvisorBridge{
		serviceURL: serviceURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// AdviceRequest carries the route context sent to the advisory service.
type AdviceRequest struct {
	OriginName      string                `json:"origin_name,omitempty"`
	DestinationName string                `json:"destination_name,omitempty"`
	DistanceMeters  float64               `json:"distance_meters"`
	DurationSeconds float64               `json:"duration_seconds"`
	Alerts          []domain.TrafficAlert `json:"alerts,omitempty"`
	Query           string                `json:"query,omitempty"`
}

// AdviceResponse is the structured advisory output.
type AdviceResponse struct {
	Advice          string  `json:"advice"`
	ConfidenceScore float64 `json:"confidence_score"`
	Reasoning       string  `json:"reasoning"`
	IsMock          bool    `json:"is_mock"`
}

// Advise calls the advisory service, falling back to a deterministic local
// advisory on transport failure or a non-success status.
func (b *AdvisorBridge) Advise(ctx context.Context, req AdviceRequest) (AdviceResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return AdviceResponse{}, fmt.Errorf("advisor: failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/advise", b.serviceURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return AdviceResponse{}, fmt.Errorf("advisor: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return b.fallbackAdvice(req), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return b.fallbackAdvice(req), nil
	}

	var advice AdviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&advice); err != nil {
		return b.fallbackAdvice(req), nil
	}
	return advice, nil
}

// fallbackAdvice builds a deterministic advisory from the request's alert
// severity and trip length.
func (b *AdvisorBridge) fallbackAdvice(req AdviceRequest) AdviceResponse {
	maxSeverity := 0.0
	for _, a := range req.Alerts {
		if a.Severity > maxSeverity {
			maxSeverity = a.Severity
		}
	}

	var advice string
	switch {
	case maxSeverity >= 0.8:
		advice = "Heavy congestion expected along this route. Consider leaving a few minutes early or reviewing the alternatives."
	case maxSeverity >= 0.4:
		advice = "Moderate traffic expected near some points on this route. Allow a small time buffer."
	case req.DistanceMeters > 20000:
		advice = "Long trip with light traffic expected. Check fuel and plan a break if needed."
	default:
		advice = "Traffic looks clear along this route. Drive safely."
	}

	return AdviceResponse{
		Advice:          advice,
		ConfidenceScore: 0.6,
		Reasoning:       "Derived locally from congestion alerts; advisory service unavailable",
		IsMock:          true,
	}
}
