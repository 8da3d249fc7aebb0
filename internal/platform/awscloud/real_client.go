package awscloud

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/meshlab-io/meshlab/internal/config"
)

// RealClient implements CloudManager against the live AWS APIs of a single
// account/profile.
type RealClient struct {
	ec2      *ec2.Client
	ecs      *ecs.Client
	eks      *eks.Client
	iam      *iam.Client
	elbv2    *elasticloadbalancingv2.Client
	logs     *cloudwatchlogs.Client
	sts      *sts.Client
	region   string
	timeouts *config.Timeouts
}

// NewRealClient builds a client for the given profile and region. An empty
// profile uses the default credential chain.
func NewRealClient(ctx context.Context, profile, region string) (*RealClient, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config for profile %q: %w", profile, err)
	}

	return &RealClient{
		ec2:      ec2.NewFromConfig(awsCfg),
		ecs:      ecs.NewFromConfig(awsCfg),
		eks:      eks.NewFromConfig(awsCfg),
		iam:      iam.NewFromConfig(awsCfg),
		elbv2:    elasticloadbalancingv2.NewFromConfig(awsCfg),
		logs:     cloudwatchlogs.NewFromConfig(awsCfg),
		sts:      sts.NewFromConfig(awsCfg),
		region:   region,
		timeouts: config.LoadTimeouts(),
	}, nil
}

// Region returns the region the client operates in.
func (c *RealClient) Region() string {
	return c.region
}

// CallerIdentity returns the account ID and ARN of the active credentials.
func (c *RealClient) CallerIdentity(ctx context.Context) (string, string, error) {
	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", "", fmt.Errorf("failed to get caller identity: %w", err)
	}
	return stringValue(out.Account), stringValue(out.Arn), nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
