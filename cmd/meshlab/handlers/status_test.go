package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubIstioctlVersion(t *testing.T) *int {
	t.Helper()
	calls := 0

	orig := istioctlVersion
	t.Cleanup(func() { istioctlVersion = orig })
	istioctlVersion = func(context.Context) (string, error) {
		calls++
		return "1.24.2-solo", nil
	}
	return &calls
}

func TestStatusWithEmptyState(t *testing.T) {
	cfg := testConfig(t)
	stubCommon(t, cfg)
	calls := stubIstioctlVersion(t)

	require.NoError(t, Status(context.Background(), Options{ConfigPath: "meshlab.yaml"}))
	assert.Equal(t, 1, *calls)
}

func TestStatusWithRecordedState(t *testing.T) {
	cfg := testConfig(t)
	stubCommon(t, cfg)
	stubIstioctlVersion(t)

	pctx, err := buildContext(context.Background(), cfg)
	require.NoError(t, err)
	pctx.State.ECSClusterARN = "arn:aws:ecs:us-east-1:000000000000:cluster/demo-ecs"
	pctx.State.EKSClusterName = "demo-eks"
	pctx.State.Local.VPCID = "vpc-123"
	require.NoError(t, pctx.State.Save(cfg.StatePath))

	require.NoError(t, Status(context.Background(), Options{ConfigPath: "meshlab.yaml"}))
}
