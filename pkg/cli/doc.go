// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package cli implements the command-line interface for the cdiag cluster
// diagnosis tool.
//
// # Commands
//
// sysdump - collect diagnostic data into a single archive:
//
//	cdiag sysdump [--output DIR] [--since 30m] [--limit-bytes N] [--kubeconfig PATH]
//
// Gathers a pods overview, gops runtime dumps, CiliumNetworkPolicy objects,
// cilium-bugtool bundles and agent logs from the cluster, then compresses
// everything into <DIR>.zip for offline inspection.
//
// version - print version information.
//
// # Environment Variables
//
//	LOG_LEVEL           Set logging verbosity (debug, info, warn, error)
//	KUBECONFIG          Kubeconfig used when --kubeconfig is not given
//	CDIAG_SINCE         Default for --since
//	CDIAG_LIMIT_BYTES   Default for --limit-bytes
//
// Version information is embedded at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/eloycoto/cluster-diagnosis/pkg/cli.version=1.0.0'"
package cli
