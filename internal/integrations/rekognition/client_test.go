package rekognition

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsrekognition "github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

type stubAPI struct {
	output *awsrekognition.CompareFacesOutput
	err    error
	input  *awsrekognition.CompareFacesInput
}

func (s *stubAPI) CompareFaces(ctx context.Context, params *awsrekognition.CompareFacesInput, optFns ...func(*awsrekognition.Options)) (*awsrekognition.CompareFacesOutput, error) {
	s.input = params
	return s.output, s.err
}

func TestCompare_ReturnsMatches(t *testing.T) {
	api := &stubAPI{
		output: &awsrekognition.CompareFacesOutput{
			FaceMatches: []types.CompareFacesMatch{
				{Similarity: aws.Float32(92.5)},
				{Similarity: aws.Float32(85.0)},
			},
		},
	}
	client := NewClientWithAPI(api, 80.0, types.QualityFilterAuto)

	matches, err := client.Compare(context.Background(), []byte("src"), []byte("dst"))
	if err != nil {
		t.Fatalf("Compare(): %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Compare() len = %d, want 2", len(matches))
	}
	if matches[0].Similarity != 92.5 {
		t.Errorf("matches[0].Similarity = %v, want 92.5", matches[0].Similarity)
	}
}

func TestCompare_ForwardsThresholdAndQualityFilter(t *testing.T) {
	api := &stubAPI{output: &awsrekognition.CompareFacesOutput{}}
	client := NewClientWithAPI(api, 80.0, types.QualityFilterAuto)

	if _, err := client.Compare(context.Background(), []byte("src"), []byte("dst")); err != nil {
		t.Fatalf("Compare(): %v", err)
	}

	if api.input == nil {
		t.Fatal("CompareFaces was not called")
	}
	if got := aws.ToFloat32(api.input.SimilarityThreshold); got != 80.0 {
		t.Errorf("SimilarityThreshold = %v, want 80.0", got)
	}
	if api.input.QualityFilter != types.QualityFilterAuto {
		t.Errorf("QualityFilter = %v, want AUTO", api.input.QualityFilter)
	}
	if string(api.input.SourceImage.Bytes) != "src" {
		t.Errorf("SourceImage.Bytes = %q, want %q", api.input.SourceImage.Bytes, "src")
	}
}

func TestCompare_NoMatches(t *testing.T) {
	api := &stubAPI{output: &awsrekognition.CompareFacesOutput{}}
	client := NewClientWithAPI(api, 80.0, types.QualityFilterAuto)

	matches, err := client.Compare(context.Background(), []byte("src"), []byte("dst"))
	if err != nil {
		t.Fatalf("Compare(): %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Compare() len = %d, want 0", len(matches))
	}
}

func TestCompare_PropagatesError(t *testing.T) {
	api := &stubAPI{err: errors.New("throttled")}
	client := NewClientWithAPI(api, 80.0, types.QualityFilterAuto)

	if _, err := client.Compare(context.Background(), []byte("src"), []byte("dst")); err == nil {
		t.Fatal("Compare() err = nil, want error")
	}
}

func TestName(t *testing.T) {
	client := NewClientWithAPI(&stubAPI{}, 80.0, types.QualityFilterAuto)
	if client.Name() != "rekognition" {
		t.Errorf("Name() = %q, want rekognition", client.Name())
	}
}
