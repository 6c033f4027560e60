package compreface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	appconfig "github.com/matheuscascao/attendance-registry/config"
	"github.com/matheuscascao/attendance-registry/internal/facematch"

	log "github.com/sirupsen/logrus"
)

// Client is the CompreFace verification comparator. It uses the
// verification service, which compares a source image against a target
// image without requiring subjects to be enrolled in CompreFace itself.
type Client struct {
	config              appconfig.CompreFaceConfig
	similarityThreshold float64
	httpClient          *http.Client
}

// FaceMatch is one pairing in a verification response. CompreFace
// reports similarity in the 0-1 range.
type FaceMatch struct {
	Similarity float64         `json:"similarity"`
	Box        json.RawMessage `json:"box,omitempty"`
}

// VerificationResult is one source face with its pairings.
type VerificationResult struct {
	FaceMatches []FaceMatch `json:"face_matches"`
}

// VerificationResponse is the verification API response body.
type VerificationResponse struct {
	Result []VerificationResult `json:"result"`
}

// NewClient creates a new CompreFace verification client.
func NewClient(cfg appconfig.CompreFaceConfig, similarityThreshold float64) *Client {
	return &Client{
		config:              cfg,
		similarityThreshold: similarityThreshold,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the provider type.
func (c *Client) Name() facematch.ProviderType {
	return facematch.ProviderCompreFace
}

// Ping checks whether the CompreFace service is reachable.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	apiURL, err := url.JoinPath(c.config.URL, "/api/v1/verification/verify")
	if err != nil {
		return false, fmt.Errorf("failed to create API URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, apiURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.config.VerificationAPIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError, nil
}

// Compare submits the two images to the verification endpoint and
// returns the pairings at or above the configured similarity threshold,
// converted to percent.
func (c *Client) Compare(ctx context.Context, sourceImage, targetImage []byte) ([]facematch.Match, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	sourcePart, err := writer.CreateFormFile("source_image", "source.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create source form file: %w", err)
	}
	if _, err := sourcePart.Write(sourceImage); err != nil {
		return nil, fmt.Errorf("failed to write source image data: %w", err)
	}

	targetPart, err := writer.CreateFormFile("target_image", "target.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create target form file: %w", err)
	}
	if _, err := targetPart.Write(targetImage); err != nil {
		return nil, fmt.Errorf("failed to write target image data: %w", err)
	}

	detProbThreshold := fmt.Sprintf("%.2f", c.config.DetProbThreshold)
	if err := writer.WriteField("det_prob_threshold", detProbThreshold); err != nil {
		log.Warnf("Failed to add det_prob_threshold parameter: %v", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	apiURL, err := url.JoinPath(c.config.URL, "/api/v1/verification/verify")
	if err != nil {
		return nil, fmt.Errorf("failed to create API URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("x-api-key", c.config.VerificationAPIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	log.Debugf("CompreFace verification request took %s", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("CompreFace API returned error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var result VerificationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var matches []facematch.Match
	for _, r := range result.Result {
		for _, fm := range r.FaceMatches {
			similarity := fm.Similarity * 100.0
			if similarity < c.similarityThreshold {
				continue
			}
			match := facematch.Match{Similarity: similarity}
			if raw, err := json.Marshal(fm); err == nil {
				match.Raw = raw
			}
			matches = append(matches, match)
		}
	}

	log.Debugf("CompreFace verification returned %d pairing(s) above threshold", len(matches))
	return matches, nil
}
