// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package logging wraps log/slog with the defaults shared by all
// cluster-diagnosis commands: JSON records on stderr, module and version
// attributes on every line, and log level configuration through the
// LOG_LEVEL environment variable or an explicit flag.
//
// Typical use, early in main:
//
//	logging.SetDefaultStructuredLogger("cdiag", version)
//	slog.Info("collecting sysdump", "dir", dir)
package logging
