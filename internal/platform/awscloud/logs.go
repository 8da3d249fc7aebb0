package awscloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
)

// EnsureLogGroup creates the CloudWatch log group if it does not exist.
func (c *RealClient) EnsureLogGroup(ctx context.Context, name string, tagSet map[string]string) error {
	_, err := c.logs.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(name),
		Tags:         tagSet,
	})
	if err != nil && !IsAlreadyExists(err) {
		return fmt.Errorf("failed to create log group %s: %w", name, err)
	}
	return nil
}

// DeleteLogGroup deletes the log group and its streams.
func (c *RealClient) DeleteLogGroup(ctx context.Context, name string) error {
	return c.deleteWithRetry(ctx, "log group", name, func(ctx context.Context) error {
		_, err := c.logs.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{
			LogGroupName: aws.String(name),
		})
		return err
	})
}
