// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package main

import "github.com/eloycoto/cluster-diagnosis/pkg/cli"

func main() {
	cli.Execute()
}
