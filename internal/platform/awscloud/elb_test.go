package awscloud

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/stretchr/testify/assert"
)

func TestLBHasEnvTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tags []elbv2types.Tag
		want bool
	}{
		{
			name: "environment tag match",
			tags: []elbv2types.Tag{
				{Key: aws.String("meshlab.io/environment"), Value: aws.String("demo")},
			},
			want: true,
		},
		{
			name: "kubernetes cluster ownership tag",
			tags: []elbv2types.Tag{
				{Key: aws.String("kubernetes.io/cluster/demo-eks"), Value: aws.String("owned")},
			},
			want: true,
		},
		{
			name: "different environment",
			tags: []elbv2types.Tag{
				{Key: aws.String("meshlab.io/environment"), Value: aws.String("other")},
			},
			want: false,
		},
		{
			name: "shared cluster tag does not count",
			tags: []elbv2types.Tag{
				{Key: aws.String("kubernetes.io/cluster/demo-eks"), Value: aws.String("shared")},
			},
			want: false,
		},
		{
			name: "no tags",
			tags: nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, lbHasEnvTag(tt.tags, "demo"))
		})
	}
}
