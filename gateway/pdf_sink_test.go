package gateway

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink_SavePDF(t *testing.T) {
	ctx := context.Background()

	t.Run("saves_decoded_file", func(t *testing.T) {
		dir := t.TempDir()
		sink, err := NewFileSink(dir, false)
		require.NoError(t, err)

		require.NoError(t, sink.SavePDF(ctx, "JVBERi0xLjM=", "badge_TKT-001.pdf"))

		content, err := os.ReadFile(filepath.Join(dir, "badge_TKT-001.pdf"))
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.3", string(content))
	})

	t.Run("strips_directories_from_filename", func(t *testing.T) {
		dir := t.TempDir()
		sink, err := NewFileSink(dir, false)
		require.NoError(t, err)

		require.NoError(t, sink.SavePDF(ctx, "JVBERi0xLjM=", "../../badge.pdf"))

		_, err = os.Stat(filepath.Join(dir, "badge.pdf"))
		assert.NoError(t, err)
	})

	t.Run("viewer_failure_keeps_file", func(t *testing.T) {
		dir := t.TempDir()
		sink, err := NewFileSink(dir, true)
		require.NoError(t, err)

		var opened []string
		sink.opener = func(path string) error {
			opened = append(opened, path)
			return errors.New("no display")
		}

		require.NoError(t, sink.SavePDF(ctx, "JVBERi0xLjM=", "badge_TKT-002.pdf"))
		assert.Equal(t, []string{filepath.Join(dir, "badge_TKT-002.pdf")}, opened)

		_, err = os.Stat(filepath.Join(dir, "badge_TKT-002.pdf"))
		assert.NoError(t, err)
	})

	t.Run("invalid_base64", func(t *testing.T) {
		sink, err := NewFileSink(t.TempDir(), false)
		require.NoError(t, err)

		assert.Error(t, sink.SavePDF(ctx, "%%%", "badge.pdf"))
	})
}
