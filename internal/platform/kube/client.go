// Package kube provides a Kubernetes client wrapper for the EKS side of a
// meshlab environment.
package kube

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/remotecommand"
)

// AmbientDataplaneLabel marks a namespace for ztunnel capture.
const AmbientDataplaneLabel = "istio.io/dataplane-mode"

// AmbientDataplaneMode is the label value enrolling a namespace in ambient.
const AmbientDataplaneMode = "ambient"

// fieldManager identifies meshlab as the owner of server-side applied fields.
const fieldManager = "meshlab"

// Client wraps Kubernetes API operations against one cluster.
type Client struct {
	clientset  kubernetes.Interface
	dynamic    dynamic.Interface
	mapper     meta.RESTMapper
	restConfig *rest.Config
}

// NewClientForEKS builds a client from the EKS control plane description: the
// API endpoint, the base64-encoded cluster CA, and a pre-signed STS token.
// No kubeconfig file is written.
func NewClientForEKS(endpoint, caData, token string) (*Client, error) {
	ca, err := base64.StdEncoding.DecodeString(caData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cluster CA: %w", err)
	}

	restConfig := &rest.Config{
		Host:        endpoint,
		BearerToken: token,
		TLSClientConfig: rest.TLSClientConfig{
			CAData: ca,
		},
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}

	return &Client{
		clientset:  clientset,
		dynamic:    dynamicClient,
		mapper:     restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(discoveryClient)),
		restConfig: restConfig,
	}, nil
}

// RESTConfig exposes the underlying rest config for the Helm action client.
func (c *Client) RESTConfig() *rest.Config {
	return c.restConfig
}

// EnsureNamespace creates the namespace if missing and merges the given
// labels onto it. Enrolling an existing namespace in ambient only needs the
// label update.
func (c *Client) EnsureNamespace(ctx context.Context, name string, labels map[string]string) error {
	ns, err := c.clientset.CoreV1().Namespaces().Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		_, err := c.clientset.CoreV1().Namespaces().Create(ctx, &corev1.Namespace{
			ObjectMeta: metav1.ObjectMeta{
				Name:   name,
				Labels: labels,
			},
		}, metav1.CreateOptions{})
		if err != nil && !apierrors.IsAlreadyExists(err) {
			return fmt.Errorf("failed to create namespace %s: %w", name, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get namespace %s: %w", name, err)
	}

	changed := false
	if ns.Labels == nil {
		ns.Labels = map[string]string{}
	}
	for k, v := range labels {
		if ns.Labels[k] != v {
			ns.Labels[k] = v
			changed = true
		}
	}
	if !changed {
		return nil
	}

	_, err = c.clientset.CoreV1().Namespaces().Update(ctx, ns, metav1.UpdateOptions{})
	if err != nil {
		return fmt.Errorf("failed to update namespace %s: %w", name, err)
	}
	return nil
}

// EnsureAmbientNamespace creates the namespace and enrolls it in the ambient
// dataplane.
func (c *Client) EnsureAmbientNamespace(ctx context.Context, name string) error {
	return c.EnsureNamespace(ctx, name, map[string]string{
		AmbientDataplaneLabel: AmbientDataplaneMode,
	})
}

// Apply applies a multi-document YAML manifest with server-side apply, so
// repeated applies converge and fields removed from the manifest are pruned.
func (c *Client) Apply(ctx context.Context, manifest string) error {
	decoder := yaml.NewYAMLOrJSONDecoder(strings.NewReader(manifest), 4096)

	for {
		var obj unstructured.Unstructured
		err := decoder.Decode(&obj)
		if err != nil {
			if err.Error() == "EOF" {
				break
			}
			return fmt.Errorf("failed to decode manifest: %w", err)
		}
		if len(obj.Object) == 0 {
			continue
		}

		if err := c.applyObject(ctx, &obj); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) applyObject(ctx context.Context, obj *unstructured.Unstructured) error {
	iface, err := c.resourceFor(obj)
	if err != nil {
		return err
	}

	data, err := obj.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", obj.GetKind(), obj.GetName(), err)
	}

	_, err = iface.Patch(ctx, obj.GetName(), types.ApplyPatchType, data, metav1.PatchOptions{
		FieldManager: fieldManager,
	})
	if err != nil {
		return fmt.Errorf("failed to apply %s/%s: %w", obj.GetKind(), obj.GetName(), err)
	}
	return nil
}

// Delete removes every object in a multi-document YAML manifest. Missing
// objects are ignored.
func (c *Client) Delete(ctx context.Context, manifest string) error {
	decoder := yaml.NewYAMLOrJSONDecoder(strings.NewReader(manifest), 4096)

	for {
		var obj unstructured.Unstructured
		err := decoder.Decode(&obj)
		if err != nil {
			if err.Error() == "EOF" {
				break
			}
			return fmt.Errorf("failed to decode manifest: %w", err)
		}
		if len(obj.Object) == 0 {
			continue
		}

		iface, err := c.resourceFor(&obj)
		if err != nil {
			return err
		}

		err = iface.Delete(ctx, obj.GetName(), metav1.DeleteOptions{})
		if err != nil && !apierrors.IsNotFound(err) {
			return fmt.Errorf("failed to delete %s/%s: %w", obj.GetKind(), obj.GetName(), err)
		}
	}
	return nil
}

// resourceFor resolves the dynamic client interface for an object through
// discovery. The mapper cache is reset once on a miss; the Istio charts
// install CRDs after the client is built.
func (c *Client) resourceFor(obj *unstructured.Unstructured) (dynamic.ResourceInterface, error) {
	gvk := obj.GroupVersionKind()
	mapping, err := c.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if meta.IsNoMatchError(err) {
		if resettable, ok := c.mapper.(meta.ResettableRESTMapper); ok {
			resettable.Reset()
			mapping, err = c.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("no resource mapping for %s: %w", gvk, err)
	}

	if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
		namespace := obj.GetNamespace()
		if namespace == "" {
			namespace = "default"
		}
		return c.dynamic.Resource(mapping.Resource).Namespace(namespace), nil
	}
	return c.dynamic.Resource(mapping.Resource), nil
}

// CreateSecret creates or updates an opaque secret.
func (c *Client) CreateSecret(ctx context.Context, namespace, name string, data map[string][]byte) error {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: namespace,
		},
		Data: data,
		Type: corev1.SecretTypeOpaque,
	}

	_, err := c.clientset.CoreV1().Secrets(namespace).Create(ctx, secret, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		_, err = c.clientset.CoreV1().Secrets(namespace).Update(ctx, secret, metav1.UpdateOptions{})
	}
	if err != nil {
		return fmt.Errorf("failed to create or update secret %s/%s: %w", namespace, name, err)
	}
	return nil
}

// DeleteSecret deletes a secret. A missing secret is not an error.
func (c *Client) DeleteSecret(ctx context.Context, namespace, name string) error {
	err := c.clientset.CoreV1().Secrets(namespace).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete secret %s/%s: %w", namespace, name, err)
	}
	return nil
}

// DeleteNamespace deletes a namespace and everything in it. A missing
// namespace is not an error.
func (c *Client) DeleteNamespace(ctx context.Context, name string) error {
	err := c.clientset.CoreV1().Namespaces().Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete namespace %s: %w", name, err)
	}
	return nil
}

// WaitForDeployment waits until a deployment reports all replicas available.
func (c *Client) WaitForDeployment(ctx context.Context, namespace, name string, timeout time.Duration) error {
	err := wait.PollUntilContextTimeout(ctx, 5*time.Second, timeout, true, func(ctx context.Context) (bool, error) {
		deployment, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, nil
		}
		return isDeploymentReady(deployment), nil
	})
	if err != nil {
		return fmt.Errorf("deployment %s/%s not ready: %w", namespace, name, err)
	}
	return nil
}

// WaitForDaemonSet waits until a daemonset has all scheduled pods ready.
func (c *Client) WaitForDaemonSet(ctx context.Context, namespace, name string, timeout time.Duration) error {
	err := wait.PollUntilContextTimeout(ctx, 5*time.Second, timeout, true, func(ctx context.Context) (bool, error) {
		daemonSet, err := c.clientset.AppsV1().DaemonSets(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			return false, nil
		}
		return isDaemonSetReady(daemonSet), nil
	})
	if err != nil {
		return fmt.Errorf("daemonset %s/%s not ready: %w", namespace, name, err)
	}
	return nil
}

// GetReadyPod returns the name of one running, ready pod matching the label
// selector.
func (c *Client) GetReadyPod(ctx context.Context, namespace, labelSelector string) (string, error) {
	podList, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: labelSelector,
	})
	if err != nil {
		return "", fmt.Errorf("failed to list pods for %q in %s: %w", labelSelector, namespace, err)
	}

	for _, pod := range podList.Items {
		if pod.Status.Phase != corev1.PodRunning {
			continue
		}
		if isPodReady(&pod) {
			return pod.Name, nil
		}
	}
	return "", fmt.Errorf("no ready pod for %q in namespace %s", labelSelector, namespace)
}

// ExecResult holds the output of a pod exec.
type ExecResult struct {
	Stdout string
	Stderr string
}

// Exec runs a command in the first container of a pod and captures its
// output. A non-zero exit comes back as an error with stderr attached.
func (c *Client) Exec(ctx context.Context, namespace, pod string, command []string) (ExecResult, error) {
	req := c.clientset.CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(namespace).
		Name(pod).
		SubResource("exec").
		VersionedParams(&corev1.PodExecOptions{
			Command: command,
			Stdout:  true,
			Stderr:  true,
		}, scheme.ParameterCodec)

	executor, err := remotecommand.NewSPDYExecutor(c.restConfig, "POST", req.URL())
	if err != nil {
		return ExecResult{}, fmt.Errorf("failed to create executor: %w", err)
	}

	var stdout, stderr bytes.Buffer
	err = executor.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: &stdout,
		Stderr: &stderr,
	})

	result := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		return result, fmt.Errorf("exec in pod %s/%s failed: %w (stderr: %s)", namespace, pod, err, strings.TrimSpace(stderr.String()))
	}
	return result, nil
}

func isDeploymentReady(deployment *appsv1.Deployment) bool {
	if deployment.Spec.Replicas == nil {
		return false
	}
	replicas := *deployment.Spec.Replicas
	if deployment.Status.UpdatedReplicas != replicas ||
		deployment.Status.Replicas != replicas ||
		deployment.Status.AvailableReplicas != replicas {
		return false
	}

	for _, condition := range deployment.Status.Conditions {
		if condition.Type == appsv1.DeploymentAvailable &&
			condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

func isDaemonSetReady(daemonSet *appsv1.DaemonSet) bool {
	return daemonSet.Status.DesiredNumberScheduled > 0 &&
		daemonSet.Status.NumberReady == daemonSet.Status.DesiredNumberScheduled &&
		daemonSet.Status.NumberAvailable == daemonSet.Status.DesiredNumberScheduled
}

func isPodReady(pod *corev1.Pod) bool {
	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady && condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

