package kube

import (
	"encoding/base64"
	"fmt"
	"os"

	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

// BuildKubeconfig renders a kubeconfig for the cluster as YAML bytes. Used
// for tools that cannot take an in-memory rest config, like istioctl.
func BuildKubeconfig(clusterName, endpoint, caData, token string) ([]byte, error) {
	ca, err := base64.StdEncoding.DecodeString(caData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cluster CA: %w", err)
	}

	cfg := clientcmdapi.NewConfig()
	cfg.Clusters[clusterName] = &clientcmdapi.Cluster{
		Server:                   endpoint,
		CertificateAuthorityData: ca,
	}
	cfg.AuthInfos[clusterName] = &clientcmdapi.AuthInfo{
		Token: token,
	}
	contextName := clusterName
	cfg.Contexts[contextName] = &clientcmdapi.Context{
		Cluster:  clusterName,
		AuthInfo: clusterName,
	}
	cfg.CurrentContext = contextName

	out, err := clientcmd.Write(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize kubeconfig: %w", err)
	}
	return out, nil
}

// WriteTempKubeconfig writes the kubeconfig to a temp file and returns its
// path with a cleanup func. The token inside is short-lived, so the file is
// per-invocation.
func WriteTempKubeconfig(clusterName, endpoint, caData, token string) (string, func(), error) {
	data, err := BuildKubeconfig(clusterName, endpoint, caData, token)
	if err != nil {
		return "", nil, err
	}

	f, err := os.CreateTemp("", "meshlab-kubeconfig-*.yaml")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp kubeconfig: %w", err)
	}
	path := f.Name()

	if err := os.Chmod(path, 0o600); err != nil {
		f.Close()
		os.Remove(path)
		return "", nil, fmt.Errorf("failed to chmod kubeconfig: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", nil, fmt.Errorf("failed to write kubeconfig: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", nil, fmt.Errorf("failed to close kubeconfig: %w", err)
	}

	return path, func() { os.Remove(path) }, nil
}
