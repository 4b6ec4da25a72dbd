// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package sysdump

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/eloycoto/cluster-diagnosis/pkg/archive"
	"github.com/eloycoto/cluster-diagnosis/pkg/k8s"
	"github.com/eloycoto/cluster-diagnosis/pkg/kubectl"
)

const (
	// timeFormat stamps every artifact name. Nanosecond precision keeps
	// names unique within a run.
	timeFormat = "20060102-150405.000000000"

	// gopsBinary is the diagnostic binary inside agent pods.
	gopsBinary = "/bin/gops"

	// bugtoolBinary is the in-pod bundling tool.
	bugtoolBinary = "cilium-bugtool"

	// agentPodPrefix selects the agent pods targeted by gops, bugtool and
	// log collection.
	agentPodPrefix = "cilium-"

	dirMode  = 0o755
	fileMode = 0o600
)

// bugtoolArchivePattern matches the marker line cilium-bugtool prints with
// the in-pod path of the archive it produced.
var bugtoolArchivePattern = regexp.MustCompile(`^ARCHIVE at (.*)$`)

// gopsStatTypes are the diagnostic dump types collected per agent pod.
var gopsStatTypes = []string{"stats", "memstats", "stack"}

// Config holds the collector configuration, immutable for its lifetime.
type Config struct {
	// SysdumpDir is the working directory artifacts are written to. The
	// final archive is a sibling file named SysdumpDir + ".zip".
	SysdumpDir string
	// Since bounds log recency, as a relative duration like 5s, 2m or 3h.
	Since string
	// SizeLimit is the maximum number of bytes fetched per pod log.
	SizeLimit int64
}

// Collector gathers logs and other useful information for debugging a
// Cilium-managed cluster. Every collection step is best effort: failures
// are logged and recorded in the run manifest, and never stop the run.
type Collector struct {
	// Version of the collecting tool, stamped into the run manifest.
	Version string

	cfg      Config
	runner   kubectl.Runner
	pods     k8s.PodLister
	manifest *Manifest
}

// New creates a sysdump collector.
func New(cfg Config, runner kubectl.Runner, pods k8s.PodLister) *Collector {
	return &Collector{
		cfg:      cfg,
		runner:   runner,
		pods:     pods,
		manifest: NewManifest(),
	}
}

func (c *Collector) timestamp() string {
	return time.Now().UTC().Format(timeFormat)
}

// writeArtifact persists one collected artifact inside the working directory.
func (c *Collector) writeArtifact(name string, data []byte) error {
	return os.WriteFile(filepath.Join(c.cfg.SysdumpDir, name), data, fileMode)
}

// CollectPodsOverview captures the status of all pods in all namespaces as
// JSON into a timestamped file.
func (c *Collector) CollectPodsOverview(ctx context.Context) {
	name := fmt.Sprintf("pods-%s.json", c.timestamp())

	out, err := c.runner.Run(ctx, "get", "pods", "-o", "json", "--all-namespaces")
	if err == nil {
		err = c.writeArtifact(name, out)
	}
	c.manifest.Record(stepPodsOverview, name, err)
	if err != nil {
		slog.Error("could not collect pods overview", "file", name, "error", err)
		return
	}
	slog.Info("collected pods overview", "file", name)
}

// CollectLogs fetches recent logs for every pod matching the given name
// prefix, one timestamped file per pod. A failing pod does not stop
// collection for the remaining pods.
func (c *Collector) CollectLogs(ctx context.Context, prefix string) {
	pods, err := c.pods.ListPodsByPrefix(ctx, prefix)
	if err != nil {
		slog.Error("could not list pods for log collection", "prefix", prefix, "error", err)
		return
	}

	for _, pod := range pods {
		name := fmt.Sprintf("%s-%s.log", pod.Name, c.timestamp())

		out, err := c.runner.Run(ctx, "logs",
			"--since="+c.cfg.Since,
			fmt.Sprintf("--limit-bytes=%d", c.cfg.SizeLimit),
			"-n", k8s.Namespace, pod.Name)
		if err == nil {
			err = c.writeArtifact(name, out)
		}
		c.manifest.Record(stepLogs, name, err)
		if err != nil {
			slog.Error("could not collect log file", "file", name, "error", err)
			continue
		}
		slog.Info("collected log file", "file", name)
	}
}

// CollectGopsStats collects the three gops dump types (stats, memstats,
// stack) from every pod matching the given name prefix.
func (c *Collector) CollectGopsStats(ctx context.Context, prefix string) {
	for _, statType := range gopsStatTypes {
		c.collectGops(ctx, prefix, statType)
	}
}

func (c *Collector) collectGops(ctx context.Context, prefix, statType string) {
	pods, err := c.pods.ListPodsByPrefix(ctx, prefix)
	if err != nil {
		slog.Error("could not list pods for gops collection", "prefix", prefix, "error", err)
		return
	}

	for _, pod := range pods {
		name := fmt.Sprintf("%s-%s-%s.txt", pod.Name, c.timestamp(), statType)

		out, err := c.runner.Run(ctx, "exec", "-n", k8s.Namespace, pod.Name, "--",
			gopsBinary, statType, "1")
		if err == nil {
			err = c.writeArtifact(name, out)
		}
		c.manifest.Record(stepGops, name, err)
		if err != nil {
			slog.Error("could not collect gops stat", "type", statType, "file", name, "error", err)
			continue
		}
		slog.Info("collected gops file", "type", statType, "file", name)
	}
}

// CollectCNP dumps all CiliumNetworkPolicy objects in all namespaces as
// YAML into a timestamped file.
func (c *Collector) CollectCNP(ctx context.Context) {
	name := fmt.Sprintf("cnp-%s.yaml", c.timestamp())

	out, err := c.runner.Run(ctx, "get", "cnp", "-o", "yaml", "--all-namespaces")
	if err == nil {
		err = c.writeArtifact(name, out)
	}
	c.manifest.Record(stepCNP, name, err)
	if err != nil {
		slog.Error("could not collect cilium network policy", "file", name, "error", err)
		return
	}
	slog.Info("collected cilium network policy", "file", name)
}

// CollectBugtool runs cilium-bugtool inside every agent pod, locates the
// archive it reports via the "ARCHIVE at <path>" marker line, and copies it
// out into the working directory. The run, the marker lookup and the copy
// are three independent failure points, each logged with its own cause.
func (c *Collector) CollectBugtool(ctx context.Context) {
	pods, err := c.pods.ListPodsByPrefix(ctx, agentPodPrefix)
	if err != nil {
		slog.Error("could not list pods for bugtool collection", "prefix", agentPodPrefix, "error", err)
		return
	}

	for _, pod := range pods {
		name := fmt.Sprintf("bugtool-%s-%s.tar", pod.Name, c.timestamp())

		out, err := c.runner.Run(ctx, "exec", "-n", k8s.Namespace, pod.Name, "--", bugtoolBinary)
		if err != nil {
			c.manifest.Record(stepBugtool, name, err)
			slog.Error("could not run cilium-bugtool", "pod", pod.Name, "error", err)
			continue
		}

		podPath := extractBugtoolArchivePath(string(out))
		if podPath == "" {
			err = fmt.Errorf("no %q marker in cilium-bugtool output", "ARCHIVE at")
			c.manifest.Record(stepBugtool, name, err)
			slog.Error("could not find cilium-bugtool archive path", "pod", pod.Name, "error", err)
			continue
		}

		_, err = c.runner.Run(ctx, "cp",
			k8s.Namespace+"/"+pod.Name+":"+podPath,
			filepath.Join(c.cfg.SysdumpDir, name))
		c.manifest.Record(stepBugtool, name, err)
		if err != nil {
			slog.Error("could not collect cilium-bugtool output", "file", name, "error", err)
			continue
		}
		slog.Info("collected cilium-bugtool output", "file", name)
	}
}

// extractBugtoolArchivePath returns the in-pod archive path from bugtool
// output, or an empty string when no marker line is present. The last
// marker wins when several are printed.
func extractBugtoolArchivePath(output string) string {
	var path string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if m := bugtoolArchivePattern.FindStringSubmatch(line); m != nil {
			path = m[1]
		}
	}
	return path
}

// Collect runs the full collection sequence in fixed order, then archives
// the working directory into <dir>.zip and removes the directory. Every
// step runs regardless of prior failures, so an archive is always produced;
// the returned error only reflects archival itself.
func (c *Collector) Collect(ctx context.Context) error {
	start := time.Now()
	c.manifest.Start(c.Version)

	if err := os.MkdirAll(c.cfg.SysdumpDir, dirMode); err != nil {
		return fmt.Errorf("failed to create sysdump directory %s: %w", c.cfg.SysdumpDir, err)
	}

	steps := []struct {
		name string
		run  func(context.Context)
	}{
		{"pods overview", c.CollectPodsOverview},
		{"cilium gops stats", func(ctx context.Context) { c.CollectGopsStats(ctx, agentPodPrefix) }},
		{"cilium network policy", c.CollectCNP},
		{"cilium-bugtool output", c.CollectBugtool},
		{"cilium logs", func(ctx context.Context) { c.CollectLogs(ctx, agentPodPrefix) }},
	}

	for _, step := range steps {
		slog.Info("collecting " + step.name + " ...")
		stepStart := time.Now()
		step.run(ctx)
		stepDuration.WithLabelValues(step.name).Observe(time.Since(stepStart).Seconds())
	}

	c.manifest.Finish()
	if err := c.manifest.Write(c.cfg.SysdumpDir); err != nil {
		slog.Error("could not write run manifest", "error", err)
	}
	if err := archive.WriteChecksums(ctx, c.cfg.SysdumpDir); err != nil {
		slog.Error("could not write artifact checksums", "error", err)
	}

	zipPath, err := archive.ZipDirectory(c.cfg.SysdumpDir)
	if err != nil {
		collectionTotal.WithLabelValues("error").Inc()
		return err
	}

	slog.Info("deleting directory", "dir", c.cfg.SysdumpDir)
	if err := os.RemoveAll(c.cfg.SysdumpDir); err != nil {
		return fmt.Errorf("failed to remove sysdump directory %s: %w", c.cfg.SysdumpDir, err)
	}

	collectionDuration.Observe(time.Since(start).Seconds())
	collectionTotal.WithLabelValues("success").Inc()
	slog.Info("the sysdump has been saved", "archive", zipPath)
	return nil
}
