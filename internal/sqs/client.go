package sqs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/iyhunko/dapp-marketplace/internal/config"
)

// NewClient creates an SQS client for the configured region, honoring a custom
// endpoint such as LocalStack.
func NewClient(ctx context.Context, conf config.AWSConfig) (*sqs.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(conf.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if conf.Endpoint != "" {
		awsCfg.BaseEndpoint = aws.String(conf.Endpoint)
	}

	return sqs.NewFromConfig(awsCfg), nil
}
