package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSinkSaveWritesFile(t *testing.T) {
	t.Parallel()

	sink, err := NewSink(t.TempDir(), nil)
	require.NoError(t, err)

	path, err := sink.Save(context.Background(), "star-wars_2", []byte("<html>broken</html>"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "<html>broken</html>", string(data))
	require.Contains(t, filepath.Base(path), "star-wars_2_")
}

func TestSinkSaveDedupesIdenticalBodies(t *testing.T) {
	t.Parallel()

	sink, err := NewSink(t.TempDir(), nil)
	require.NoError(t, err)

	first, err := sink.Save(context.Background(), "theme", []byte("<html>same</html>"))
	require.NoError(t, err)
	second, err := sink.Save(context.Background(), "theme", []byte("<html>same</html>"))
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSinkSaveRejectsEmptyBody(t *testing.T) {
	t.Parallel()

	sink, err := NewSink(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = sink.Save(context.Background(), "theme", nil)
	require.Error(t, err)
}

func TestSinkSaveHonorsContext(t *testing.T) {
	t.Parallel()

	sink, err := NewSink(t.TempDir(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sink.Save(ctx, "theme", []byte("x"))
	require.Error(t, err)
}

func TestSanitizeLabel(t *testing.T) {
	t.Parallel()

	require.Equal(t, "star_wars_2", sanitizeLabel("star wars/2"))
	require.Equal(t, "page", sanitizeLabel(""))
}
