package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/beanbocchi/nimbus/internal/client/objectstore"
)

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	c, err := NewClient(LocalConfig{Root: root})
	require.NoError(t, err)

	require.NoError(t, c.Upload(ctx, "dd-alice/v1", strings.NewReader("0123456789")))

	rc, err := c.Download(ctx, "dd-alice/v1")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "0123456789", string(data))

	rc, err = objectstore.ReadRange(ctx, c, "dd-alice/v1", 3, 4)
	require.NoError(t, err)
	data, err = io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "3456", string(data))

	require.NoError(t, c.Delete(ctx, "dd-alice/v1"))
	require.NoError(t, c.Delete(ctx, "dd-alice/v1"))

	_, err = c.Download(ctx, "dd-alice/v1")
	require.ErrorIs(t, err, objectstore.ErrNotFound)
}

func TestLocalStaysUnderRoot(t *testing.T) {
	ctx := context.Background()
	parent := t.TempDir()
	root := filepath.Join(parent, "blobs")
	c, err := NewClient(LocalConfig{Root: root})
	require.NoError(t, err)

	require.NoError(t, c.Upload(ctx, "../escape", strings.NewReader("x")))
	_, err = os.Stat(filepath.Join(parent, "escape"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "escape"))
	require.NoError(t, err)
}
