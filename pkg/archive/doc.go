// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package archive packages a sysdump working directory into a single ZIP
// file and generates SHA256 checksums for the collected artifacts.
package archive
