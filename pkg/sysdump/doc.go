// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package sysdump collects diagnostic data from a Cilium-managed Kubernetes
// cluster: a pods overview, gops runtime dumps, CiliumNetworkPolicy objects,
// cilium-bugtool bundles and agent pod logs. Artifacts are written as
// timestamped files into a working directory which is then compressed into
// a single ZIP archive for offline inspection.
//
// Collection is sequential and best effort: a failing step is logged and
// recorded in the run manifest, and the run always proceeds to completion
// and always produces an archive.
package sysdump
