package mesh

import (
	"fmt"
	"strconv"

	"sigs.k8s.io/yaml"

	"github.com/meshlab-io/meshlab/internal/config"
)

// RenderAuthorizationPolicy renders an Istio AuthorizationPolicy manifest
// from its spec. Rendering through a map keeps us off the Istio client-go
// types, which the vendor distribution does not publish.
func RenderAuthorizationPolicy(spec config.AuthzPolicySpec) (string, error) {
	if spec.Name == "" || spec.Namespace == "" {
		return "", fmt.Errorf("authorization policy needs name and namespace")
	}

	action := spec.Action
	if action == "" {
		action = "ALLOW"
	}

	policy := map[string]interface{}{
		"apiVersion": "security.istio.io/v1",
		"kind":       "AuthorizationPolicy",
		"metadata": map[string]interface{}{
			"name":      spec.Name,
			"namespace": spec.Namespace,
		},
		"spec": map[string]interface{}{
			"action": action,
		},
	}

	policySpec := policy["spec"].(map[string]interface{})

	if spec.TargetService != "" {
		policySpec["selector"] = map[string]interface{}{
			"matchLabels": map[string]interface{}{
				"app": spec.TargetService,
			},
		}
	}

	rule := map[string]interface{}{}
	if len(spec.SourcePrincipals) > 0 {
		rule["from"] = []interface{}{
			map[string]interface{}{
				"source": map[string]interface{}{
					"principals": toInterfaceSlice(spec.SourcePrincipals),
				},
			},
		}
	}
	if len(spec.Ports) > 0 {
		ports := make([]interface{}, 0, len(spec.Ports))
		for _, p := range spec.Ports {
			ports = append(ports, strconv.Itoa(int(p)))
		}
		rule["to"] = []interface{}{
			map[string]interface{}{
				"operation": map[string]interface{}{
					"ports": ports,
				},
			},
		}
	}
	if len(rule) > 0 {
		policySpec["rules"] = []interface{}{rule}
	}

	out, err := yaml.Marshal(policy)
	if err != nil {
		return "", fmt.Errorf("failed to render authorization policy %s: %w", spec.Name, err)
	}
	return string(out), nil
}

func toInterfaceSlice(in []string) []interface{} {
	out := make([]interface{}, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}
