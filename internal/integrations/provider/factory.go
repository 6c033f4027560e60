package provider

import (
	"context"
	"fmt"

	"github.com/matheuscascao/attendance-registry/config"
	"github.com/matheuscascao/attendance-registry/internal/facematch"
	"github.com/matheuscascao/attendance-registry/internal/integrations/compreface"
	"github.com/matheuscascao/attendance-registry/internal/integrations/rekognition"

	log "github.com/sirupsen/logrus"
)

// NewComparator builds the comparator selected in the configuration.
func NewComparator(ctx context.Context, cfg *config.Config) (facematch.Comparator, error) {
	switch facematch.ProviderType(cfg.Recognition.Provider) {
	case facematch.ProviderRekognition:
		return rekognition.NewClient(ctx, cfg.Rekognition, cfg.Recognition.SimilarityThreshold)
	case facematch.ProviderCompreFace:
		client := compreface.NewClient(cfg.CompreFace, cfg.Recognition.SimilarityThreshold)
		if ok, err := client.Ping(ctx); err != nil || !ok {
			log.WithError(err).Warn("CompreFace service not reachable at startup, continuing anyway")
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown recognition provider: %q", cfg.Recognition.Provider)
	}
}
