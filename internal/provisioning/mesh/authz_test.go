package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"github.com/meshlab-io/meshlab/internal/config"
)

func TestRenderAuthorizationPolicy(t *testing.T) {
	t.Parallel()

	manifest, err := RenderAuthorizationPolicy(config.AuthzPolicySpec{
		Name:             "allow-web",
		Namespace:        "demo",
		Action:           "ALLOW",
		TargetService:    "api",
		SourcePrincipals: []string{"cluster.local/ns/demo/sa/web"},
		Ports:            []int32{8080},
	})
	require.NoError(t, err)

	var parsed map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(manifest), &parsed))

	assert.Equal(t, "security.istio.io/v1", parsed["apiVersion"])
	assert.Equal(t, "AuthorizationPolicy", parsed["kind"])

	metadata := parsed["metadata"].(map[string]interface{})
	assert.Equal(t, "allow-web", metadata["name"])
	assert.Equal(t, "demo", metadata["namespace"])

	spec := parsed["spec"].(map[string]interface{})
	assert.Equal(t, "ALLOW", spec["action"])

	selector := spec["selector"].(map[string]interface{})
	labels := selector["matchLabels"].(map[string]interface{})
	assert.Equal(t, "api", labels["app"])

	rules := spec["rules"].([]interface{})
	require.Len(t, rules, 1)
	assert.Contains(t, manifest, "cluster.local/ns/demo/sa/web")
	assert.Contains(t, manifest, `"8080"`)
}

func TestRenderAuthorizationPolicyDefaultsToAllow(t *testing.T) {
	t.Parallel()

	manifest, err := RenderAuthorizationPolicy(config.AuthzPolicySpec{
		Name:      "default-action",
		Namespace: "demo",
	})
	require.NoError(t, err)
	assert.Contains(t, manifest, "action: ALLOW")
}

func TestRenderAuthorizationPolicyDeny(t *testing.T) {
	t.Parallel()

	manifest, err := RenderAuthorizationPolicy(config.AuthzPolicySpec{
		Name:             "deny-external",
		Namespace:        "demo",
		Action:           "DENY",
		SourcePrincipals: []string{"cluster.local/ns/demo/sa/untrusted"},
	})
	require.NoError(t, err)
	assert.Contains(t, manifest, "action: DENY")
	assert.NotContains(t, manifest, "selector")
}

func TestRenderAuthorizationPolicyRequiresIdentity(t *testing.T) {
	t.Parallel()

	_, err := RenderAuthorizationPolicy(config.AuthzPolicySpec{Name: "x"})
	assert.Error(t, err)
}
