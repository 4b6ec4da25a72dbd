// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package sysdump

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eloycoto/cluster-diagnosis/pkg/k8s"
)

// fakeRunner records every invocation and answers through respond.
type fakeRunner struct {
	calls   [][]string
	respond func(args []string) ([]byte, error)
}

func (f *fakeRunner) Run(_ context.Context, args ...string) ([]byte, error) {
	f.calls = append(f.calls, args)
	if f.respond == nil {
		return []byte{}, nil
	}
	return f.respond(args)
}

type fakePodLister struct {
	pods []k8s.PodStatus
	err  error
}

func (f *fakePodLister) ListPodsByPrefix(_ context.Context, prefix string) ([]k8s.PodStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []k8s.PodStatus
	for _, p := range f.pods {
		if strings.HasPrefix(p.Name, prefix) {
			out = append(out, p)
		}
	}
	return out, nil
}

func newTestCollector(t *testing.T, runner *fakeRunner, lister *fakePodLister) *Collector {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "cilium-sysdump-test")
	c := New(Config{
		SysdumpDir: dir,
		Since:      "5m",
		SizeLimit:  1048576,
	}, runner, lister)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return c
}

func ciliumPods(names ...string) []k8s.PodStatus {
	pods := make([]k8s.PodStatus, 0, len(names))
	for _, n := range names {
		pods = append(pods, k8s.PodStatus{Name: n, Ready: "1/1", Phase: "Running"})
	}
	return pods
}

func dirFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCollectPodsOverview(t *testing.T) {
	runner := &fakeRunner{respond: func(args []string) ([]byte, error) {
		return []byte(`{"items":[]}`), nil
	}}
	c := newTestCollector(t, runner, &fakePodLister{})

	c.CollectPodsOverview(context.TODO())

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"get", "pods", "-o", "json", "--all-namespaces"}, runner.calls[0])

	files := dirFiles(t, c.cfg.SysdumpDir)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0], "pods-"))
	assert.True(t, strings.HasSuffix(files[0], ".json"))
}

func TestCollectPodsOverview_CommandFailure(t *testing.T) {
	runner := &fakeRunner{respond: func(args []string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}}
	c := newTestCollector(t, runner, &fakePodLister{})

	c.CollectPodsOverview(context.TODO())

	assert.Empty(t, dirFiles(t, c.cfg.SysdumpDir))
	require.Len(t, c.manifest.Artifacts, 1)
	assert.False(t, c.manifest.Artifacts[0].Collected)
	assert.Contains(t, c.manifest.Artifacts[0].Error, "exit status 1")
}

func TestCollectLogs_OnePerPodWithConfiguredFlags(t *testing.T) {
	runner := &fakeRunner{respond: func(args []string) ([]byte, error) {
		return []byte("log output\n"), nil
	}}
	lister := &fakePodLister{pods: ciliumPods("cilium-abc12", "cilium-def34")}
	c := newTestCollector(t, runner, lister)

	c.CollectLogs(context.TODO(), "cilium-")

	require.Len(t, runner.calls, 2)
	for i, pod := range []string{"cilium-abc12", "cilium-def34"} {
		assert.Equal(t, "logs", runner.calls[i][0])
		assert.Contains(t, runner.calls[i], "--since=5m")
		assert.Contains(t, runner.calls[i], "--limit-bytes=1048576")
		assert.Contains(t, runner.calls[i], pod)
	}

	files := dirFiles(t, c.cfg.SysdumpDir)
	assert.Len(t, files, 2)
	for _, f := range files {
		assert.True(t, strings.HasSuffix(f, ".log"))
	}
}

func TestCollectLogs_PodFailureDoesNotStopIteration(t *testing.T) {
	runner := &fakeRunner{respond: func(args []string) ([]byte, error) {
		if args[len(args)-1] == "cilium-abc12" {
			return nil, errors.New("exit status 1")
		}
		return []byte("log output\n"), nil
	}}
	lister := &fakePodLister{pods: ciliumPods("cilium-abc12", "cilium-def34")}
	c := newTestCollector(t, runner, lister)

	c.CollectLogs(context.TODO(), "cilium-")

	assert.Len(t, runner.calls, 2)
	assert.Len(t, dirFiles(t, c.cfg.SysdumpDir), 1)
}

func TestCollectGopsStats_OneFilePerPodAndType(t *testing.T) {
	runner := &fakeRunner{respond: func(args []string) ([]byte, error) {
		return []byte("gops output\n"), nil
	}}
	lister := &fakePodLister{pods: ciliumPods("cilium-abc12", "cilium-def34")}
	c := newTestCollector(t, runner, lister)

	c.CollectGopsStats(context.TODO(), "cilium-")

	// 2 pods x 3 stat types
	assert.Len(t, runner.calls, 6)
	files := dirFiles(t, c.cfg.SysdumpDir)
	assert.Len(t, files, 6)

	byType := map[string]int{}
	for _, f := range files {
		for _, statType := range gopsStatTypes {
			if strings.HasSuffix(f, "-"+statType+".txt") {
				byType[statType]++
			}
		}
	}
	assert.Equal(t, map[string]int{"stats": 2, "memstats": 2, "stack": 2}, byType)
}

func TestCollectGopsStats_PairFailureDoesNotPreventOthers(t *testing.T) {
	runner := &fakeRunner{respond: func(args []string) ([]byte, error) {
		// Fail only memstats on one pod.
		if strings.Contains(strings.Join(args, " "), "cilium-abc12 -- /bin/gops memstats") {
			return nil, errors.New("exit status 1")
		}
		return []byte("gops output\n"), nil
	}}
	lister := &fakePodLister{pods: ciliumPods("cilium-abc12", "cilium-def34")}
	c := newTestCollector(t, runner, lister)

	c.CollectGopsStats(context.TODO(), "cilium-")

	// All six pairs attempted, five produced files.
	assert.Len(t, runner.calls, 6)
	assert.Len(t, dirFiles(t, c.cfg.SysdumpDir), 5)
}

func TestCollectCNP(t *testing.T) {
	runner := &fakeRunner{respond: func(args []string) ([]byte, error) {
		return []byte("items: []\n"), nil
	}}
	c := newTestCollector(t, runner, &fakePodLister{})

	c.CollectCNP(context.TODO())

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"get", "cnp", "-o", "yaml", "--all-namespaces"}, runner.calls[0])

	files := dirFiles(t, c.cfg.SysdumpDir)
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0], "cnp-"))
	assert.True(t, strings.HasSuffix(files[0], ".yaml"))
}

func TestCollectBugtool_CopiesReportedArchive(t *testing.T) {
	runner := &fakeRunner{respond: func(args []string) ([]byte, error) {
		if args[0] == "exec" {
			return []byte("collecting...\nARCHIVE at /tmp/foo.tar\n"), nil
		}
		return []byte{}, nil
	}}
	lister := &fakePodLister{pods: ciliumPods("cilium-abc12")}
	c := newTestCollector(t, runner, lister)

	c.CollectBugtool(context.TODO())

	require.Len(t, runner.calls, 2)
	assert.Equal(t, "cp", runner.calls[1][0])
	assert.Equal(t, "kube-system/cilium-abc12:/tmp/foo.tar", runner.calls[1][1])
	assert.True(t, strings.HasPrefix(filepath.Base(runner.calls[1][2]), "bugtool-cilium-abc12-"))
	assert.True(t, strings.HasSuffix(runner.calls[1][2], ".tar"))
}

func TestCollectBugtool_NoMarkerSkipsCopy(t *testing.T) {
	runner := &fakeRunner{respond: func(args []string) ([]byte, error) {
		return []byte("collecting...\nno archive produced\n"), nil
	}}
	lister := &fakePodLister{pods: ciliumPods("cilium-abc12")}
	c := newTestCollector(t, runner, lister)

	c.CollectBugtool(context.TODO())

	// Only the exec call; no cp attempted.
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "exec", runner.calls[0][0])

	require.Len(t, c.manifest.Artifacts, 1)
	assert.False(t, c.manifest.Artifacts[0].Collected)
	assert.Contains(t, c.manifest.Artifacts[0].Error, "ARCHIVE at")
}

func TestCollectBugtool_ExecFailureAttributed(t *testing.T) {
	runner := &fakeRunner{respond: func(args []string) ([]byte, error) {
		return nil, errors.New("command terminated with exit code 126")
	}}
	lister := &fakePodLister{pods: ciliumPods("cilium-abc12")}
	c := newTestCollector(t, runner, lister)

	c.CollectBugtool(context.TODO())

	require.Len(t, runner.calls, 1)
	require.Len(t, c.manifest.Artifacts, 1)
	assert.Contains(t, c.manifest.Artifacts[0].Error, "exit code 126")
}

func TestCollectBugtool_CopyFailureDoesNotStopIteration(t *testing.T) {
	runner := &fakeRunner{respond: func(args []string) ([]byte, error) {
		if args[0] == "exec" {
			return []byte("ARCHIVE at /tmp/foo.tar\n"), nil
		}
		if strings.Contains(args[1], "cilium-abc12") {
			return nil, errors.New("error: unable to upgrade connection")
		}
		return []byte{}, nil
	}}
	lister := &fakePodLister{pods: ciliumPods("cilium-abc12", "cilium-def34")}
	c := newTestCollector(t, runner, lister)

	c.CollectBugtool(context.TODO())

	// exec + cp for both pods; the failing copy on the first pod does not
	// prevent the second pod's copy.
	require.Len(t, runner.calls, 4)
	require.Len(t, c.manifest.Artifacts, 2)

	for _, rec := range c.manifest.Artifacts {
		assert.Equal(t, stepBugtool, rec.Step)
		if strings.Contains(rec.Name, "cilium-abc12") {
			assert.False(t, rec.Collected)
			assert.Contains(t, rec.Error, "unable to upgrade connection")
		} else {
			assert.True(t, rec.Collected)
			assert.Empty(t, rec.Error)
		}
	}
}

func TestExtractBugtoolArchivePath(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"single marker", "x\nARCHIVE at /tmp/foo.tar\ny", "/tmp/foo.tar"},
		{"last marker wins", "ARCHIVE at /tmp/a.tar\nARCHIVE at /tmp/b.tar", "/tmp/b.tar"},
		{"crlf", "ARCHIVE at /tmp/foo.tar\r\n", "/tmp/foo.tar"},
		{"no marker", "nothing here", ""},
		{"marker not line-anchored", "see ARCHIVE at /tmp/foo.tar", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractBugtoolArchivePath(tt.output))
		})
	}
}

func TestCollect_AlwaysProducesArchive(t *testing.T) {
	runner := &fakeRunner{respond: func(args []string) ([]byte, error) {
		return []byte("output\n"), nil
	}}
	lister := &fakePodLister{pods: ciliumPods("cilium-abc12")}
	c := newTestCollector(t, runner, lister)
	c.Version = "test"

	require.NoError(t, c.Collect(context.TODO()))

	// Working directory is gone, sibling zip remains.
	_, err := os.Stat(c.cfg.SysdumpDir)
	assert.True(t, os.IsNotExist(err))

	r, err := zip.OpenReader(c.cfg.SysdumpDir + ".zip")
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, ManifestFileName)
	assert.Contains(t, names, "checksums.txt")
	// overview + 3 gops + cnp + 1 log, plus manifest and checksums
	assert.Len(t, names, 8)
}

func TestCollect_ArchiveProducedWhenEverythingFails(t *testing.T) {
	runner := &fakeRunner{respond: func(args []string) ([]byte, error) {
		return nil, fmt.Errorf("exit status 1")
	}}
	lister := &fakePodLister{pods: ciliumPods("cilium-abc12")}
	c := newTestCollector(t, runner, lister)

	require.NoError(t, c.Collect(context.TODO()))

	r, err := zip.OpenReader(c.cfg.SysdumpDir + ".zip")
	require.NoError(t, err)
	defer r.Close()

	// Near-empty archive: just the manifest and checksums.
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{ManifestFileName, "checksums.txt"}, names)
}
