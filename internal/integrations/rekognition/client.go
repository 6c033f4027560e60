package rekognition

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	appconfig "github.com/matheuscascao/attendance-registry/config"
	"github.com/matheuscascao/attendance-registry/internal/facematch"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsrekognition "github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	log "github.com/sirupsen/logrus"
)

// CompareFacesAPI is the subset of the Rekognition API used here.
type CompareFacesAPI interface {
	CompareFaces(ctx context.Context, params *awsrekognition.CompareFacesInput, optFns ...func(*awsrekognition.Options)) (*awsrekognition.CompareFacesOutput, error)
}

// Client is the AWS Rekognition comparator.
type Client struct {
	api                 CompareFacesAPI
	similarityThreshold float64
	qualityFilter       types.QualityFilter
}

// NewClient builds a Rekognition comparator from configuration. Static
// credentials from the config take precedence; otherwise the default
// AWS credential chain applies.
func NewClient(ctx context.Context, cfg appconfig.RekognitionConfig, similarityThreshold float64) (*Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	qualityFilter := types.QualityFilterAuto
	if cfg.QualityFilter != "" {
		qualityFilter = types.QualityFilter(cfg.QualityFilter)
	}

	log.Infof("Rekognition comparator initialized (region=%s, quality_filter=%s)", cfg.Region, qualityFilter)

	return &Client{
		api:                 awsrekognition.NewFromConfig(awsCfg),
		similarityThreshold: similarityThreshold,
		qualityFilter:       qualityFilter,
	}, nil
}

// NewClientWithAPI builds a comparator over an existing API implementation.
func NewClientWithAPI(api CompareFacesAPI, similarityThreshold float64, qualityFilter types.QualityFilter) *Client {
	return &Client{
		api:                 api,
		similarityThreshold: similarityThreshold,
		qualityFilter:       qualityFilter,
	}
}

// Name returns the provider type.
func (c *Client) Name() facematch.ProviderType {
	return facematch.ProviderRekognition
}

// Compare submits both images to CompareFaces and returns the pairings
// at or above the configured similarity threshold.
func (c *Client) Compare(ctx context.Context, sourceImage, targetImage []byte) ([]facematch.Match, error) {
	start := time.Now()

	out, err := c.api.CompareFaces(ctx, &awsrekognition.CompareFacesInput{
		SourceImage:         &types.Image{Bytes: sourceImage},
		TargetImage:         &types.Image{Bytes: targetImage},
		SimilarityThreshold: aws.Float32(float32(c.similarityThreshold)),
		QualityFilter:       c.qualityFilter,
	})
	if err != nil {
		return nil, fmt.Errorf("CompareFaces request failed: %w", err)
	}

	log.Debugf("Rekognition CompareFaces request took %s", time.Since(start))

	matches := make([]facematch.Match, 0, len(out.FaceMatches))
	for _, fm := range out.FaceMatches {
		match := facematch.Match{
			Similarity: float64(aws.ToFloat32(fm.Similarity)),
		}
		if raw, err := json.Marshal(fm); err == nil {
			match.Raw = raw
		}
		matches = append(matches, match)
	}

	return matches, nil
}
