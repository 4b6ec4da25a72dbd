// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/eloycoto/cluster-diagnosis/pkg/k8s"
	"github.com/eloycoto/cluster-diagnosis/pkg/k8s/client"
	"github.com/eloycoto/cluster-diagnosis/pkg/kubectl"
	"github.com/eloycoto/cluster-diagnosis/pkg/sysdump"
)

const (
	defaultSince      = "30m"
	defaultLimitBytes = 10485760 // 10MB per pod log
)

// buildClientset returns the shared discovered client when no explicit
// kubeconfig path is given, and a dedicated client otherwise.
func buildClientset(kubeconfig string) (client.Interface, error) {
	if kubeconfig == "" {
		clientset, _, err := client.GetKubeClient()
		return clientset, err
	}
	clientset, _, err := client.BuildKubeClient(kubeconfig)
	return clientset, err
}

func sysdumpCmd() *cli.Command {
	return &cli.Command{
		Name:                  "sysdump",
		EnableShellCompletion: true,
		Usage:                 "Collect cluster diagnostic data into a single archive",
		Description: `Collect diagnostic data from a Cilium-managed cluster:
  - Overview of all pods in all namespaces (JSON)
  - gops runtime, memory and stack dumps from agent pods
  - CiliumNetworkPolicy objects in all namespaces (YAML)
  - cilium-bugtool bundles copied out of agent pods
  - Recent agent pod logs, bounded by --since and --limit-bytes

Artifacts are written into the working directory given by --output, which
is then compressed into <output>.zip and removed. Individual collection
failures are logged and never abort the run.

# Examples

Collect with defaults (directory named cilium-sysdump-<timestamp>):
  cdiag sysdump

Collect the last two hours of logs, capped at 50MB per pod:
  cdiag sysdump --since 2h --limit-bytes 52428800`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Working directory name; the archive is written as <output>.zip",
			},
			&cli.StringFlag{
				Name:    "since",
				Usage:   "Only collect logs newer than this relative duration (e.g. 5s, 2m, 3h)",
				Sources: cli.EnvVars("CDIAG_SINCE"),
				Value:   defaultSince,
			},
			&cli.Int64Flag{
				Name:    "limit-bytes",
				Usage:   "Maximum bytes collected per pod log",
				Sources: cli.EnvVars("CDIAG_LIMIT_BYTES"),
				Value:   defaultLimitBytes,
			},
			&cli.StringFlag{
				Name:    "kubeconfig",
				Usage:   "Path to the kubeconfig file",
				Sources: cli.EnvVars("KUBECONFIG"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := cmd.String("output")
			if dir == "" {
				dir = fmt.Sprintf("cilium-sysdump-%s", time.Now().UTC().Format("20060102-150405"))
			}

			clientset, err := buildClientset(cmd.String("kubeconfig"))
			if err != nil {
				return fmt.Errorf("failed to create kubernetes client: %w", err)
			}

			collector := sysdump.New(
				sysdump.Config{
					SysdumpDir: dir,
					Since:      cmd.String("since"),
					SizeLimit:  cmd.Int64("limit-bytes"),
				},
				kubectl.NewRunner(),
				k8s.NewClientPodLister(clientset),
			)
			collector.Version = version

			return collector.Collect(ctx)
		},
	}
}
