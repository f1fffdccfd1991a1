// Package awsconfig loads the AWS configuration shared by the S3 engine and
// the DynamoDB journal.
package awsconfig

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/rotisserie/eris"
)

// EndpointEnv overrides the service endpoint, e.g. for LocalStack.
const EndpointEnv = "AWS_ENDPOINT"

type Options struct {
	// Endpoint takes precedence over $AWS_ENDPOINT.
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Load resolves the default AWS configuration chain with the given overrides.
// Static credentials are used only when both key and secret are set.
func Load(ctx context.Context, o Options) (aws.Config, error) {
	endpoint := o.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv(EndpointEnv)
	}

	loaders := []func(*config.LoadOptions) error{
		config.WithEndpointResolverWithOptions(endpointResolver(endpoint)),
	}
	if o.Region != "" {
		loaders = append(loaders, config.WithRegion(o.Region))
	}
	if o.AccessKeyID != "" && o.SecretAccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKeyID, o.SecretAccessKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, eris.Wrap(err, "failed to load AWS config")
	}
	return cfg, nil
}

func endpointResolver(endpoint string) aws.EndpointResolverWithOptions {
	return aws.EndpointResolverWithOptionsFunc(
		func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			if endpoint != "" {
				return aws.Endpoint{
					URL:           endpoint,
					SigningRegion: region,
					Source:        aws.EndpointSourceCustom,
				}, nil
			}
			// EndpointNotFoundError lets the SDK fall back to its default resolution.
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		},
	)
}
