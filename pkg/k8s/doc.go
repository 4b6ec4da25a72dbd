// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package k8s provides the pod-status iterator used to target agent pods
// for sysdump collection. Pod enumeration goes through the Kubernetes API
// rather than parsing kubectl output.
package k8s
