package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/oceanbaselines/internal/stage"
)

var boundaries = []string{"ic", "north", "south", "east", "west"}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPath(t *testing.T) {
	c := New("/cache")

	p, err := c.Path("A", stage.Bathy, PrimaryKey)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/cache", "topos", "A_topo.nc"), p)

	p, err = c.Path("A", stage.Forcing, "north")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/cache", "raw_data", "A_north_raw.nc"), p)

	_, err = c.Path("A", stage.Grid, PrimaryKey)
	assert.ErrorIs(t, err, ErrNotCacheable)

	_, err = c.Path("A", stage.Bathy, "secondary")
	assert.ErrorContains(t, err, `only has the "primary" sub-key`)

	_, err = c.Path("A", stage.Forcing, "../x")
	assert.ErrorContains(t, err, "invalid cache sub-key")
}

func TestGet_CompositeHitNeedsEverySubKey(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	c := New(root)

	lookup, err := c.Get(ctx, "A", stage.Forcing, boundaries)
	require.NoError(t, err)
	assert.False(t, lookup.Hit)
	assert.Equal(t, boundaries, lookup.Missing)

	for _, key := range boundaries[:4] {
		writeFile(t, filepath.Join(root, RawDataDir, RawName("A", key, Ext)), key)
	}

	lookup, err = c.Get(ctx, "A", stage.Forcing, boundaries)
	require.NoError(t, err)
	assert.False(t, lookup.Hit, "a partial composite entry is a miss")
	assert.Nil(t, lookup.Locations, "a miss must not expose cached sub-artifacts")
	assert.Equal(t, []string{"west"}, lookup.Missing)

	writeFile(t, filepath.Join(root, RawDataDir, RawName("A", "west", Ext)), "west")

	lookup, err = c.Get(ctx, "A", stage.Forcing, boundaries)
	require.NoError(t, err)
	require.True(t, lookup.Hit)
	assert.Len(t, lookup.Locations, len(boundaries))
	assert.Equal(t, filepath.Join(root, RawDataDir, "A_west_raw.nc"), lookup.Locations["west"])
}

func TestGet_RequiresSubKeys(t *testing.T) {
	_, err := New(t.TempDir()).Get(context.Background(), "A", stage.Bathy, nil)
	assert.ErrorContains(t, err, "at least one sub-key")
}

func TestPut_NeverOverwrites(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	c := New(root)
	first := writeFile(t, filepath.Join(t.TempDir(), "first.nc"), "first")
	second := writeFile(t, filepath.Join(t.TempDir(), "second.nc"), "second")

	dst, copied, err := c.Put(ctx, "A", stage.Bathy, PrimaryKey, first)
	require.NoError(t, err)
	assert.True(t, copied)
	assert.Equal(t, filepath.Join(root, ToposDir, "A_topo.nc"), dst)

	dst2, copied, err := c.Put(ctx, "A", stage.Bathy, PrimaryKey, second)
	require.NoError(t, err)
	assert.False(t, copied, "duplicate put is a no-op")
	assert.Equal(t, dst, dst2)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
}

func TestPut_MissingSource(t *testing.T) {
	_, _, err := New(t.TempDir()).Put(context.Background(), "A", stage.Bathy, PrimaryKey, "/does/not/exist")
	assert.ErrorContains(t, err, "caching /does/not/exist")
}

func TestEvict_RemovesOnlyNamedSubKeys(t *testing.T) {
	// Arrange
	ctx := context.Background()
	root := t.TempDir()
	c := New(root)
	for _, key := range []string{"ic", "north"} {
		writeFile(t, filepath.Join(root, RawDataDir, RawName("A", key, Ext)), "stale "+key)
	}
	writeFile(t, filepath.Join(root, RawDataDir, RawName("B", "ic", Ext)), "other region")

	// Act
	removed, err := c.Evict(ctx, "A", stage.Forcing, boundaries)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, RawDataDir, "A_ic_raw.nc"),
		filepath.Join(root, RawDataDir, "A_north_raw.nc"),
	}, removed)
	lookup, err := c.Get(ctx, "A", stage.Forcing, []string{"ic"})
	require.NoError(t, err)
	assert.False(t, lookup.Hit)
	assert.FileExists(t, filepath.Join(root, RawDataDir, "B_ic_raw.nc"))

	removed, err = c.Evict(ctx, "A", stage.Forcing, boundaries)
	require.NoError(t, err)
	assert.Empty(t, removed, "evicting twice is a no-op")
}

func TestEvict_RejectsUncacheableStage(t *testing.T) {
	_, err := New(t.TempDir()).Evict(context.Background(), "A", stage.Grid, []string{PrimaryKey})
	assert.ErrorIs(t, err, ErrNotCacheable)
}
