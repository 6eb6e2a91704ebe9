package jobsource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/link-archiver/internal/archive"
)

func TestBuildEmitsOneJobPerLink(t *testing.T) {
	t.Parallel()

	docs := t.TempDir()
	out := filepath.Join(t.TempDir(), "output")
	require.NoError(t, os.WriteFile(filepath.Join(docs, "a.md"), []byte("[1](http://x.com/1)\nhttp://x.com/2"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "b.md"), []byte("<http://y.com/1>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(docs, "skip.txt"), []byte("http://z.com/1"), 0o600))

	jobs, err := Build(docs, ".md", out)
	require.NoError(t, err)
	require.Equal(t, []archive.Job{
		{Link: "http://x.com/1", DestinationDir: filepath.Join(out, "a")},
		{Link: "http://x.com/2", DestinationDir: filepath.Join(out, "a")},
		{Link: "http://y.com/1", DestinationDir: filepath.Join(out, "b")},
	}, jobs)

	for _, dir := range []string{filepath.Join(out, "a"), filepath.Join(out, "b")} {
		info, statErr := os.Stat(dir)
		require.NoError(t, statErr)
		require.True(t, info.IsDir())
	}
}

func TestBuildKeepsDocumentsWithoutLinks(t *testing.T) {
	t.Parallel()

	docs := t.TempDir()
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docs, "empty.md"), []byte("nothing here"), 0o600))

	jobs, err := Build(docs, ".md", out)
	require.NoError(t, err)
	require.Empty(t, jobs)
	require.DirExists(t, filepath.Join(out, "empty"))
}

func TestBuildFailsOnUnreadableDocument(t *testing.T) {
	t.Parallel()

	docs := t.TempDir()
	// A directory named like a document cannot be read as one.
	require.NoError(t, os.Mkdir(filepath.Join(docs, "dir.md"), 0o750))

	_, err := Build(docs, ".md", t.TempDir())
	require.Error(t, err)
}

func TestBuildFailsOnMissingDocsDir(t *testing.T) {
	t.Parallel()

	_, err := Build(filepath.Join(t.TempDir(), "missing"), ".md", t.TempDir())
	require.Error(t, err)
}

func TestDestinationDir(t *testing.T) {
	t.Parallel()

	require.Equal(t, filepath.Join("out", "file 1"), DestinationDir("out", "file 1.md", ".md"))
	require.Equal(t, filepath.Join("out", "notes.md"), DestinationDir("out", "notes.md", "*"))
}
