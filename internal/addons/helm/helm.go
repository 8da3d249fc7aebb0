// Package helm wraps the Helm action API for installing mesh charts on EKS.
package helm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"helm.sh/helm/v3/pkg/action"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	"helm.sh/helm/v3/pkg/storage/driver"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

// ChartSpec identifies one chart to install.
type ChartSpec struct {
	ReleaseName string
	Namespace   string
	RepoURL     string
	ChartName   string
	Version     string
	Values      map[string]interface{}
	Timeout     time.Duration
}

// Client handles Helm operations against one cluster.
type Client struct {
	restConfig *rest.Config
	settings   *cli.EnvSettings
}

// NewClient creates a Helm client speaking to the cluster behind restConfig.
func NewClient(restConfig *rest.Config) *Client {
	return &Client{
		restConfig: restConfig,
		settings:   cli.New(),
	}
}

// InstallOrUpgrade installs the chart, or upgrades the release if it already
// exists. Waits for the release resources to become ready.
func (c *Client) InstallOrUpgrade(ctx context.Context, spec ChartSpec) error {
	actionConfig, err := c.actionConfig(spec.Namespace)
	if err != nil {
		return err
	}

	timeout := spec.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	cp := &action.ChartPathOptions{
		RepoURL: spec.RepoURL,
		Version: spec.Version,
	}
	chartPath, err := cp.LocateChart(spec.ChartName, c.settings)
	if err != nil {
		return fmt.Errorf("failed to locate chart %s: %w", spec.ChartName, err)
	}

	chart, err := loader.Load(chartPath)
	if err != nil {
		return fmt.Errorf("failed to load chart %s: %w", spec.ChartName, err)
	}

	histClient := action.NewHistory(actionConfig)
	histClient.Max = 1
	if _, err := histClient.Run(spec.ReleaseName); err == nil {
		upgrade := action.NewUpgrade(actionConfig)
		upgrade.Namespace = spec.Namespace
		upgrade.Wait = true
		upgrade.Timeout = timeout
		if _, err := upgrade.RunWithContext(ctx, spec.ReleaseName, chart, spec.Values); err != nil {
			return fmt.Errorf("helm upgrade of %s failed: %w", spec.ReleaseName, err)
		}
		return nil
	}

	install := action.NewInstall(actionConfig)
	install.Namespace = spec.Namespace
	install.ReleaseName = spec.ReleaseName
	install.CreateNamespace = true
	install.Wait = true
	install.Timeout = timeout
	if _, err := install.RunWithContext(ctx, chart, spec.Values); err != nil {
		return fmt.Errorf("helm install of %s failed: %w", spec.ReleaseName, err)
	}
	return nil
}

// Uninstall removes a release. A missing release is not an error.
func (c *Client) Uninstall(namespace, releaseName string) error {
	actionConfig, err := c.actionConfig(namespace)
	if err != nil {
		return err
	}

	uninstall := action.NewUninstall(actionConfig)
	uninstall.Wait = true
	uninstall.Timeout = 5 * time.Minute
	if _, err := uninstall.Run(releaseName); err != nil {
		if errors.Is(err, driver.ErrReleaseNotFound) {
			return nil
		}
		return fmt.Errorf("helm uninstall of %s failed: %w", releaseName, err)
	}
	return nil
}

func (c *Client) actionConfig(namespace string) (*action.Configuration, error) {
	actionConfig := new(action.Configuration)
	getter := &restClientGetter{
		config:    c.restConfig,
		namespace: namespace,
	}
	if err := actionConfig.Init(getter, namespace, os.Getenv("HELM_DRIVER"), log.Printf); err != nil {
		return nil, fmt.Errorf("failed to init helm action config: %w", err)
	}
	return actionConfig, nil
}

// restClientGetter implements the RESTClientGetter Helm wants, backed by an
// in-memory rest config instead of a kubeconfig file.
type restClientGetter struct {
	config    *rest.Config
	namespace string
}

func (g *restClientGetter) ToRESTConfig() (*rest.Config, error) {
	return g.config, nil
}

func (g *restClientGetter) ToDiscoveryClient() (discovery.CachedDiscoveryInterface, error) {
	discoveryClient, err := discovery.NewDiscoveryClientForConfig(g.config)
	if err != nil {
		return nil, err
	}
	return memory.NewMemCacheClient(discoveryClient), nil
}

func (g *restClientGetter) ToRESTMapper() (meta.RESTMapper, error) {
	discoveryClient, err := g.ToDiscoveryClient()
	if err != nil {
		return nil, err
	}
	return restmapper.NewDeferredDiscoveryRESTMapper(discoveryClient), nil
}

func (g *restClientGetter) ToRawKubeConfigLoader() clientcmd.ClientConfig {
	return clientcmd.NewDefaultClientConfig(*clientcmdapi.NewConfig(), &clientcmd.ConfigOverrides{})
}
