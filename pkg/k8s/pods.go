// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package k8s

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/eloycoto/cluster-diagnosis/pkg/k8s/client"
)

// Namespace is the namespace the diagnosed agent pods run in.
const Namespace = "kube-system"

// PodStatus describes one pod returned by the status iterator. The sysdump
// collector only consumes Name; Ready, Phase and Restarts mirror the columns
// kubectl get pods displays.
type PodStatus struct {
	Name     string
	Ready    string
	Phase    string
	Restarts int32
}

// PodLister enumerates pods in the agent namespace whose name starts with a
// given prefix. The result reflects cluster state at call time.
type PodLister interface {
	ListPodsByPrefix(ctx context.Context, prefix string) ([]PodStatus, error)
}

// ClientPodLister lists pods through the Kubernetes API.
type ClientPodLister struct {
	Clientset client.Interface
	Namespace string
}

// NewClientPodLister creates a lister over the agent namespace.
func NewClientPodLister(clientset client.Interface) *ClientPodLister {
	return &ClientPodLister{
		Clientset: clientset,
		Namespace: Namespace,
	}
}

// ListPodsByPrefix returns the status of every pod in the lister's namespace
// whose name starts with prefix. An empty prefix matches all pods.
func (l *ClientPodLister) ListPodsByPrefix(ctx context.Context, prefix string) ([]PodStatus, error) {
	pods, err := l.Clientset.CoreV1().Pods(l.Namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods in %s: %w", l.Namespace, err)
	}

	statuses := make([]PodStatus, 0, len(pods.Items))
	for i := range pods.Items {
		pod := &pods.Items[i]
		if !strings.HasPrefix(pod.Name, prefix) {
			continue
		}
		statuses = append(statuses, PodStatus{
			Name:     pod.Name,
			Ready:    readyCount(pod),
			Phase:    string(pod.Status.Phase),
			Restarts: restartCount(pod),
		})
	}
	return statuses, nil
}

// readyCount renders the ready containers fraction, e.g. "1/2".
func readyCount(pod *corev1.Pod) string {
	ready := 0
	for _, cs := range pod.Status.ContainerStatuses {
		if cs.Ready {
			ready++
		}
	}
	return fmt.Sprintf("%d/%d", ready, len(pod.Spec.Containers))
}

func restartCount(pod *corev1.Pod) int32 {
	var restarts int32
	for _, cs := range pod.Status.ContainerStatuses {
		restarts += cs.RestartCount
	}
	return restarts
}
