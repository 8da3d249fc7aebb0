package awscloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/meshlab-io/meshlab/internal/util/tags"
)

// DeleteTaggedLoadBalancers removes load balancers carrying the environment
// tag. The east-west gateway Service provisions an NLB through the cloud
// controller; it blocks VPC deletion unless removed first.
func (c *RealClient) DeleteTaggedLoadBalancers(ctx context.Context, env string) error {
	paginator := elasticloadbalancingv2.NewDescribeLoadBalancersPaginator(c.elbv2, &elasticloadbalancingv2.DescribeLoadBalancersInput{})

	var arns []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to list load balancers: %w", err)
		}
		for _, lb := range page.LoadBalancers {
			arns = append(arns, stringValue(lb.LoadBalancerArn))
		}
	}
	if len(arns) == 0 {
		return nil
	}

	// DescribeTags accepts at most 20 ARNs per call.
	for start := 0; start < len(arns); start += 20 {
		end := start + 20
		if end > len(arns) {
			end = len(arns)
		}

		tagsOut, err := c.elbv2.DescribeTags(ctx, &elasticloadbalancingv2.DescribeTagsInput{
			ResourceArns: arns[start:end],
		})
		if err != nil {
			return fmt.Errorf("failed to describe load balancer tags: %w", err)
		}

		for _, desc := range tagsOut.TagDescriptions {
			if !lbHasEnvTag(desc.Tags, env) {
				continue
			}
			arn := stringValue(desc.ResourceArn)
			err := c.deleteWithRetry(ctx, "load balancer", arn, func(ctx context.Context) error {
				_, err := c.elbv2.DeleteLoadBalancer(ctx, &elasticloadbalancingv2.DeleteLoadBalancerInput{
					LoadBalancerArn: desc.ResourceArn,
				})
				return err
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// lbHasEnvTag matches either our own environment tag or the Kubernetes
// cluster ownership tag the cloud controller stamps on Service NLBs.
func lbHasEnvTag(lbTags []elbv2types.Tag, env string) bool {
	want := tags.Environment(env)
	clusterTag := "kubernetes.io/cluster/" + env + "-eks"
	for _, tag := range lbTags {
		key := stringValue(tag.Key)
		if v, ok := want[key]; ok && stringValue(tag.Value) == v {
			return true
		}
		if key == clusterTag && stringValue(tag.Value) == "owned" {
			return true
		}
	}
	return false
}
