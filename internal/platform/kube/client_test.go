package kube

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
)

func int32Ptr(i int32) *int32 { return &i }

func TestEnsureNamespaceCreates(t *testing.T) {
	t.Parallel()

	clientset := fake.NewSimpleClientset()
	c := &Client{clientset: clientset}

	err := c.EnsureAmbientNamespace(context.Background(), "demo")
	require.NoError(t, err)

	ns, err := clientset.CoreV1().Namespaces().Get(context.Background(), "demo", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, AmbientDataplaneMode, ns.Labels[AmbientDataplaneLabel])
}

func TestEnsureNamespaceMergesLabels(t *testing.T) {
	t.Parallel()

	clientset := fake.NewSimpleClientset(&corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name:   "demo",
			Labels: map[string]string{"team": "platform"},
		},
	})
	c := &Client{clientset: clientset}

	err := c.EnsureAmbientNamespace(context.Background(), "demo")
	require.NoError(t, err)

	ns, err := clientset.CoreV1().Namespaces().Get(context.Background(), "demo", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "platform", ns.Labels["team"])
	assert.Equal(t, AmbientDataplaneMode, ns.Labels[AmbientDataplaneLabel])
}

func TestEnsureNamespaceIdempotent(t *testing.T) {
	t.Parallel()

	clientset := fake.NewSimpleClientset()
	c := &Client{clientset: clientset}

	require.NoError(t, c.EnsureAmbientNamespace(context.Background(), "demo"))
	require.NoError(t, c.EnsureAmbientNamespace(context.Background(), "demo"))
}

func TestCreateSecretUpdatesExisting(t *testing.T) {
	t.Parallel()

	clientset := fake.NewSimpleClientset(&corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "creds", Namespace: "demo"},
		Data:       map[string][]byte{"token": []byte("old")},
	})
	c := &Client{clientset: clientset}

	err := c.CreateSecret(context.Background(), "demo", "creds", map[string][]byte{"token": []byte("new")})
	require.NoError(t, err)

	secret, err := clientset.CoreV1().Secrets("demo").Get(context.Background(), "creds", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), secret.Data["token"])
}

func TestGetReadyPod(t *testing.T) {
	t.Parallel()

	notReady := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "app-1",
			Namespace: "demo",
			Labels:    map[string]string{"app": "web"},
		},
		Status: corev1.PodStatus{Phase: corev1.PodPending},
	}
	ready := &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "app-2",
			Namespace: "demo",
			Labels:    map[string]string{"app": "web"},
		},
		Status: corev1.PodStatus{
			Phase: corev1.PodRunning,
			Conditions: []corev1.PodCondition{
				{Type: corev1.PodReady, Status: corev1.ConditionTrue},
			},
		},
	}

	c := &Client{clientset: fake.NewSimpleClientset(notReady, ready)}

	name, err := c.GetReadyPod(context.Background(), "demo", "app=web")
	require.NoError(t, err)
	assert.Equal(t, "app-2", name)
}

func TestGetReadyPodNoneReady(t *testing.T) {
	t.Parallel()

	c := &Client{clientset: fake.NewSimpleClientset()}

	_, err := c.GetReadyPod(context.Background(), "demo", "app=web")
	assert.Error(t, err)
}

func TestIsDeploymentReady(t *testing.T) {
	t.Parallel()

	ready := &appsv1.Deployment{
		Spec: appsv1.DeploymentSpec{Replicas: int32Ptr(2)},
		Status: appsv1.DeploymentStatus{
			Replicas:          2,
			UpdatedReplicas:   2,
			AvailableReplicas: 2,
			Conditions: []appsv1.DeploymentCondition{
				{Type: appsv1.DeploymentAvailable, Status: corev1.ConditionTrue},
			},
		},
	}
	assert.True(t, isDeploymentReady(ready))

	rollingOut := ready.DeepCopy()
	rollingOut.Status.UpdatedReplicas = 1
	assert.False(t, isDeploymentReady(rollingOut))

	noCondition := ready.DeepCopy()
	noCondition.Status.Conditions = nil
	assert.False(t, isDeploymentReady(noCondition))
}

func TestIsDaemonSetReady(t *testing.T) {
	t.Parallel()

	ds := &appsv1.DaemonSet{
		Status: appsv1.DaemonSetStatus{
			DesiredNumberScheduled: 2,
			NumberReady:            2,
			NumberAvailable:        2,
		},
	}
	assert.True(t, isDaemonSetReady(ds))

	ds.Status.NumberReady = 1
	assert.False(t, isDaemonSetReady(ds))

	empty := &appsv1.DaemonSet{}
	assert.False(t, isDaemonSetReady(empty))
}

// testMapper covers the kinds the apply tests exercise.
func testMapper() meta.RESTMapper {
	mapper := meta.NewDefaultRESTMapper(nil)
	mapper.Add(schema.GroupVersionKind{Group: "apps", Version: "v1", Kind: "Deployment"}, meta.RESTScopeNamespace)
	mapper.Add(schema.GroupVersionKind{Group: "security.istio.io", Version: "v1", Kind: "AuthorizationPolicy"}, meta.RESTScopeNamespace)
	mapper.Add(schema.GroupVersionKind{Group: "", Version: "v1", Kind: "Namespace"}, meta.RESTScopeRoot)
	return mapper
}

type patchRecord struct {
	resource  string
	namespace string
	name      string
	patchType types.PatchType
}

func recordPatches(dyn *dynamicfake.FakeDynamicClient, patches *[]patchRecord) {
	dyn.PrependReactor("patch", "*", func(action k8stesting.Action) (bool, runtime.Object, error) {
		patch := action.(k8stesting.PatchAction)
		*patches = append(*patches, patchRecord{
			resource:  patch.GetResource().Resource,
			namespace: patch.GetNamespace(),
			name:      patch.GetName(),
			patchType: patch.GetPatchType(),
		})
		return true, &unstructured.Unstructured{}, nil
	})
}

func TestApplyUsesServerSideApply(t *testing.T) {
	t.Parallel()

	dyn := dynamicfake.NewSimpleDynamicClient(runtime.NewScheme())
	var patches []patchRecord
	recordPatches(dyn, &patches)

	c := &Client{dynamic: dyn, mapper: testMapper()}

	manifest := `apiVersion: apps/v1
kind: Deployment
metadata:
  name: mesh-client
  namespace: demo
---
apiVersion: security.istio.io/v1
kind: AuthorizationPolicy
metadata:
  name: deny-client-to-api
  namespace: demo
`
	require.NoError(t, c.Apply(context.Background(), manifest))

	require.Len(t, patches, 2)
	assert.Equal(t, "deployments", patches[0].resource)
	assert.Equal(t, "authorizationpolicies", patches[1].resource)
	for _, p := range patches {
		assert.Equal(t, types.ApplyPatchType, p.patchType)
		assert.Equal(t, "demo", p.namespace)
	}
}

func TestApplyDefaultsNamespace(t *testing.T) {
	t.Parallel()

	dyn := dynamicfake.NewSimpleDynamicClient(runtime.NewScheme())
	var patches []patchRecord
	recordPatches(dyn, &patches)

	c := &Client{dynamic: dyn, mapper: testMapper()}

	manifest := `apiVersion: apps/v1
kind: Deployment
metadata:
  name: mesh-client
`
	require.NoError(t, c.Apply(context.Background(), manifest))

	require.Len(t, patches, 1)
	assert.Equal(t, "default", patches[0].namespace)
}

func TestApplyClusterScoped(t *testing.T) {
	t.Parallel()

	dyn := dynamicfake.NewSimpleDynamicClient(runtime.NewScheme())
	var patches []patchRecord
	recordPatches(dyn, &patches)

	c := &Client{dynamic: dyn, mapper: testMapper()}

	manifest := `apiVersion: v1
kind: Namespace
metadata:
  name: demo
`
	require.NoError(t, c.Apply(context.Background(), manifest))

	require.Len(t, patches, 1)
	assert.Equal(t, "namespaces", patches[0].resource)
	assert.Empty(t, patches[0].namespace)
}

func TestApplyUnknownKind(t *testing.T) {
	t.Parallel()

	c := &Client{dynamic: dynamicfake.NewSimpleDynamicClient(runtime.NewScheme()), mapper: testMapper()}

	err := c.Apply(context.Background(), "apiVersion: v1\nkind: Widget\nmetadata:\n  name: x\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no resource mapping")
}

func TestDeleteIgnoresMissing(t *testing.T) {
	t.Parallel()

	dyn := dynamicfake.NewSimpleDynamicClient(runtime.NewScheme())
	dyn.PrependReactor("delete", "*", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewNotFound(schema.GroupResource{Resource: "deployments"}, "mesh-client")
	})

	c := &Client{dynamic: dyn, mapper: testMapper()}

	manifest := `apiVersion: apps/v1
kind: Deployment
metadata:
  name: mesh-client
  namespace: demo
`
	require.NoError(t, c.Delete(context.Background(), manifest))
}

func TestDeleteSecretIgnoresMissing(t *testing.T) {
	t.Parallel()

	c := &Client{clientset: fake.NewSimpleClientset()}
	require.NoError(t, c.DeleteSecret(context.Background(), "istio-system", "cacerts"))
}

func TestDeleteNamespace(t *testing.T) {
	t.Parallel()

	clientset := fake.NewSimpleClientset(&corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: "demo"},
	})
	c := &Client{clientset: clientset}

	require.NoError(t, c.DeleteNamespace(context.Background(), "demo"))
	_, err := clientset.CoreV1().Namespaces().Get(context.Background(), "demo", metav1.GetOptions{})
	assert.True(t, apierrors.IsNotFound(err))

	require.NoError(t, c.DeleteNamespace(context.Background(), "demo"))
}
