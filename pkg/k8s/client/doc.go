// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package client provides Kubernetes client creation with standard
// kubeconfig discovery (KUBECONFIG, ~/.kube/config, in-cluster) and a
// process-wide cached client.
package client
