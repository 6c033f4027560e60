// Package facematch defines the comparator abstraction used by the
// recognition loop. A comparator takes two images and reports how
// similar the best face pairing is; the actual detection and scoring is
// done by an external service.
package facematch

import (
	"context"
	"encoding/json"
)

// ProviderType identifies a face comparison backend.
type ProviderType string

const (
	// ProviderRekognition is the AWS Rekognition CompareFaces API.
	ProviderRekognition ProviderType = "rekognition"

	// ProviderCompreFace is the CompreFace verification API.
	ProviderCompreFace ProviderType = "compreface"
)

// Match is one face pairing reported by a comparator.
type Match struct {
	// Similarity is the confidence of the pairing, percent (0-100).
	Similarity float64 `json:"similarity"`

	// Raw is the provider's payload for this pairing, if available.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// Comparator compares a captured frame against a reference image.
// Implementations hold their similarity threshold and quality filter in
// configuration; a returned empty slice means no face pairing reached
// the threshold.
type Comparator interface {
	// Name returns the provider behind this comparator.
	Name() ProviderType

	// Compare submits (sourceImage, targetImage) to the remote service
	// and returns the pairings at or above the configured threshold.
	Compare(ctx context.Context, sourceImage, targetImage []byte) ([]Match, error)
}
