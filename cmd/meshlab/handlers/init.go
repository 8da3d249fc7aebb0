package handlers

import (
	"fmt"
	"os"
)

// starterConfig is the config file 'meshlab init' writes. It describes a
// working single-account environment with two demo ECS services and one
// deny check; commented lines show the multi-account knobs.
const starterConfig = `# meshlab environment configuration
environment_name: demo
region: us-east-1

# single-account puts both VPCs in one account; multi-account peers a second
# account (set external_profile) and runs the ECS workloads there.
scenario: single-account
# local_profile: ""
# external_profile: ""

network:
  local_cidr: 10.10.0.0/16
  external_cidr: 10.20.0.0/16
  az_count: 2

ecs:
  services:
    - name: web
      image: public.ecr.aws/nginx/nginx:stable
      port: 80
    - name: api
      image: public.ecr.aws/docker/library/httpd:2.4
      port: 80

eks:
  version: "1.31"
  instance_type: t3.large
  node_count: 2

mesh:
  version: "1.24.2"
  trust_domain: cluster.local
  ambient_namespaces:
    - demo
  # The deny policy matches the identity of the in-cluster probe client, so
  # the client-to-api-denied check below proves enforcement end to end.
  authorization_policies:
    - name: deny-client-to-api
      namespace: demo
      target_service: api
      action: DENY
      source_principals:
        - cluster.local/ns/demo/sa/mesh-client

verify:
  checks:
    - name: eks-to-ecs
      from_namespace: demo
      from_selector: app=mesh-client
      url: http://web.demo.svc.cluster.local/
      expect_status: 200
    - name: client-to-api-denied
      from_namespace: demo
      from_selector: app=mesh-client
      url: http://api.demo.svc.cluster.local/
      expect_failure: true
`

// writeFile is replaceable in tests.
var writeFile = os.WriteFile

// Init writes a starter configuration file.
func Init(outputPath string, force bool) error {
	if _, err := os.Stat(outputPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", outputPath)
	}

	if err := writeFile(outputPath, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outputPath, err)
	}

	fmt.Printf("Wrote %s. Edit it, then run 'meshlab apply'.\n", outputPath)
	return nil
}
