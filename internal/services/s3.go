package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/hoistci/hoist/internal/reconcile"
)

// S3API is the subset of the S3 client the bucket service uses.
type S3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// BucketService reconciles the pipeline's artifact bucket.
type BucketService struct {
	client S3API
	region string
}

// NewBucketService creates a BucketService for the given region.
func NewBucketService(client S3API, region string) *BucketService {
	return &BucketService{client: client, region: region}
}

// Ensure creates the bucket if it does not exist. An existing bucket we own
// is an unchanged success.
func (s *BucketService) Ensure(ctx context.Context, name string) reconcile.Result {
	logger := zerolog.Ctx(ctx)

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	if err == nil {
		logger.Info().Str("bucket", name).Msg("Bucket already exists")
		return reconcile.Unchanged("bucket", name)
	}
	if !reconcile.IsNotFound(err) {
		return reconcile.Failed("bucket", name, fmt.Errorf("failed to probe bucket: %w", err))
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	// us-east-1 rejects an explicit location constraint
	if s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}

	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		if reconcile.IsConflict(err) {
			logger.Info().Str("bucket", name).Msg("Bucket already owned")
			return reconcile.Unchanged("bucket", name)
		}
		return reconcile.Failed("bucket", name, fmt.Errorf("failed to create bucket: %w", err))
	}

	logger.Info().Str("bucket", name).Msg("Bucket created")
	return reconcile.Created("bucket", name)
}
