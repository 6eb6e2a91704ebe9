package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/link-archiver/internal/archive"
	"github.com/JakeFAU/link-archiver/internal/config"
)

// These tests swap package-level hooks and therefore do not run in parallel.

type stubCapturer struct {
	mu    *sync.Mutex
	links *[]string
}

func (s stubCapturer) Capture(_ context.Context, job archive.Job) (archive.Result, error) {
	s.mu.Lock()
	*s.links = append(*s.links, job.Link)
	s.mu.Unlock()
	if strings.Contains(job.Link, "broken") {
		return archive.Result{}, errors.New("navigation failed")
	}
	return archive.Result{Screenshot: "file://" + filepath.Join(job.DestinationDir, "shot.png")}, nil
}

func (stubCapturer) Close(context.Context) error { return nil }

// stubHooks silences logging and replaces the browser with stubCapturer. It
// returns the links captured so far.
func stubHooks(t *testing.T, initErr error) func() []string {
	t.Helper()
	prevLogger, prevFactory := newLogger, newCapturerFactory
	t.Cleanup(func() {
		newLogger, newCapturerFactory = prevLogger, prevFactory
	})

	var (
		mu       sync.Mutex
		captured []string
	)
	newLogger = func(config.Config, *cobra.Command) (*zap.Logger, error) {
		return zap.NewNop(), nil
	}
	newCapturerFactory = func(context.Context, config.Config, *zap.Logger) (archive.CapturerFactory, func(), error) {
		factory := func(context.Context) (archive.Capturer, error) {
			if initErr != nil {
				return nil, initErr
			}
			return stubCapturer{mu: &mu, links: &captured}, nil
		}
		return factory, func() {}, nil
	}
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), captured...)
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// writeWorkspace lays out a docs folder and a config file pointing at it.
func writeWorkspace(t *testing.T, docs map[string]string) (cfgPath, docsDir, outDir string) {
	t.Helper()
	root := t.TempDir()
	docsDir = filepath.Join(root, "docs")
	outDir = filepath.Join(root, "output")
	require.NoError(t, os.MkdirAll(docsDir, 0o750))
	for name, body := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(docsDir, name), []byte(body), 0o600))
	}
	cfgPath = filepath.Join(root, "archiver.yaml")
	cfg := "docs:\n" +
		"  dir: " + docsDir + "\n" +
		"  suffix: .md\n" +
		"  sample: " + filepath.Join(docsDir, "notes.md") + "\n" +
		"output:\n" +
		"  dir: " + outDir + "\n" +
		"pool:\n" +
		"  size: 3\n" +
		"  mode: inproc\n" +
		"media:\n" +
		"  enabled: false\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	return cfgPath, docsDir, outDir
}

func TestRootWithoutCommandFails(t *testing.T) {
	stubHooks(t, nil)
	_, err := execute(t, "")
	require.ErrorIs(t, err, errNoCommand)
}

func TestRootRejectsUnknownCommand(t *testing.T) {
	stubHooks(t, nil)
	_, err := execute(t, "", "screenshot-everything")
	require.Error(t, err)
}

func TestLinkTestPrintsSampleLinks(t *testing.T) {
	getCaptured := stubHooks(t, nil)
	cfgPath, _, _ := writeWorkspace(t, map[string]string{
		"notes.md": "See [docs](https://example.com/docs) and https://golang.org.",
	})

	out, err := execute(t, "", "--config", cfgPath, "link-test")
	require.NoError(t, err)

	var got []string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, []string{"https://example.com/docs", "https://golang.org"}, got)
	require.Empty(t, getCaptured())
}

func TestFolderTestListsEveryEntry(t *testing.T) {
	stubHooks(t, nil)
	cfgPath, _, _ := writeWorkspace(t, map[string]string{
		"a.md":      "",
		"b.txt":     "",
		"notes.md":  "",
		"readme.md": "",
	})

	out, err := execute(t, "", "--config", cfgPath, "folder-test")
	require.NoError(t, err)
	var all []string
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	require.ElementsMatch(t, []string{"a.md", "b.txt", "notes.md", "readme.md"}, all)

	out, err = execute(t, "", "--config", cfgPath, "folder-test", "--suffix", ".txt")
	require.NoError(t, err)
	var txt []string
	require.NoError(t, json.Unmarshal([]byte(out), &txt))
	require.Equal(t, []string{"b.txt"}, txt)
}

func TestLinksFolderGroupsByDocument(t *testing.T) {
	stubHooks(t, nil)
	cfgPath, _, _ := writeWorkspace(t, map[string]string{
		"one.md": "https://a.example/1",
		"two.md": "<https://b.example/2>",
		"x.txt":  "https://ignored.example",
	})

	out, err := execute(t, "", "--config", cfgPath, "links-folder")
	require.NoError(t, err)
	var got map[string][]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, map[string][]string{
		"one.md": {"https://a.example/1"},
		"two.md": {"https://b.example/2"},
	}, got)
}

func TestScreenAllCapturesEveryLink(t *testing.T) {
	getCaptured := stubHooks(t, nil)
	cfgPath, _, outDir := writeWorkspace(t, map[string]string{
		"file 1.md": "[a](https://a.example) https://b.example/broken",
		"file 2.md": "https://c.example/page",
	})

	out, err := execute(t, "", "--config", cfgPath, "screen-all", "--pool", "2")
	require.NoError(t, err)
	require.Contains(t, out, "Finished 3 of 3 jobs (1 errors, 0 worker init failures, 0 abandoned)")
	require.ElementsMatch(t,
		[]string{"https://a.example", "https://b.example/broken", "https://c.example/page"},
		getCaptured())

	require.DirExists(t, filepath.Join(outDir, "file 1"))
	require.DirExists(t, filepath.Join(outDir, "file 2"))
}

func TestScreenAllReportsAbandonedJobs(t *testing.T) {
	stubHooks(t, errors.New("chrome not found"))
	cfgPath, _, _ := writeWorkspace(t, map[string]string{
		"doc.md": "https://a.example https://b.example",
	})

	out, err := execute(t, "", "--config", cfgPath, "run")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no workers left")
	require.Contains(t, out, "Finished 0 of 2 jobs (0 errors, 3 worker init failures, 2 abandoned)")
}

func TestWorkerCommandServesJobs(t *testing.T) {
	getCaptured := stubHooks(t, nil)
	cfgPath, _, _ := writeWorkspace(t, nil)

	var in strings.Builder
	enc := json.NewEncoder(&in)
	require.NoError(t, enc.Encode(archive.JobCommand(archive.Job{Link: "https://a.example", DestinationDir: "out"})))
	require.NoError(t, enc.Encode(archive.ShutdownCommand()))

	out, err := execute(t, in.String(), "--config", cfgPath, "worker", "--id", "7")
	require.NoError(t, err)

	var reports []archive.Report
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var rep archive.Report
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rep))
		reports = append(reports, rep)
	}
	require.Len(t, reports, 2)
	require.Equal(t, archive.SignalReady, reports[0].Signal)
	require.Equal(t, archive.SignalJobDone, reports[1].Signal)
	require.Equal(t, 7, reports[1].WorkerID)
	require.Equal(t, "file://"+filepath.Join("out", "shot.png"), reports[1].Artifact)
	require.Equal(t, []string{"https://a.example"}, getCaptured())
}

func TestWorkerCommandRequiresID(t *testing.T) {
	stubHooks(t, nil)
	_, err := execute(t, "", "worker")
	require.Error(t, err)
}
