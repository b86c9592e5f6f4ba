package services

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"golang.org/x/time/rate"
)

// RateLimitedCloudFormation wraps a CloudFormation client with a token-bucket
// limiter so the stack waiter's polling stays inside the service's request
// quota.
type RateLimitedCloudFormation struct {
	client  CloudFormationAPI
	limiter *rate.Limiter
}

// NewRateLimitedCloudFormation wraps client with a conservative limit of 5
// requests per second with a burst of 10.
func NewRateLimitedCloudFormation(client CloudFormationAPI) *RateLimitedCloudFormation {
	return &RateLimitedCloudFormation{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

func (r *RateLimitedCloudFormation) DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.client.DescribeStacks(ctx, params, optFns...)
}

func (r *RateLimitedCloudFormation) CreateStack(ctx context.Context, params *cloudformation.CreateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.CreateStackOutput, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.client.CreateStack(ctx, params, optFns...)
}

func (r *RateLimitedCloudFormation) UpdateStack(ctx context.Context, params *cloudformation.UpdateStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateStackOutput, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.client.UpdateStack(ctx, params, optFns...)
}

func (r *RateLimitedCloudFormation) DescribeStackResources(ctx context.Context, params *cloudformation.DescribeStackResourcesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackResourcesOutput, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.client.DescribeStackResources(ctx, params, optFns...)
}

func (r *RateLimitedCloudFormation) DescribeStackEvents(ctx context.Context, params *cloudformation.DescribeStackEventsInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackEventsOutput, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.client.DescribeStackEvents(ctx, params, optFns...)
}
