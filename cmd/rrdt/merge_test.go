package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVariantBuildsSiblingDotNFilename(t *testing.T) {
	require.Equal(t, filepath.Join("dir", "part.3"), variant(filepath.Join("dir", "part"), 3))
	require.Equal(t, "part.0", variant("part", 0))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestMergeNeighbourAppendsSourceIntoTargetAndLeavesSourceUntouched(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "part")
	writeFile(t, variant(base, 0), "AAA")
	writeFile(t, variant(base, 1), "BBB")

	require.NoError(t, mergeNeighbour(base, 0))

	require.Equal(t, "AAABBB", readFile(t, variant(base, 0)))
	require.Equal(t, "BBB", readFile(t, variant(base, 1)), "mergeNeighbour must not delete the source file itself")
}

func TestMergeNeighbourToleratesMissingSource(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "part")
	writeFile(t, variant(base, 0), "only")

	require.NoError(t, mergeNeighbour(base, 0), "an odd one out with no pair must be a no-op, not an error")
	require.Equal(t, "only", readFile(t, variant(base, 0)))
}

func TestMergeNeighbourErrorsWhenTargetMissing(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "part")
	err := mergeNeighbour(base, 0)
	require.Error(t, err)
}

func TestMergeFoldsAllPartsIntoOneFileInOrder(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "out")
	parts := []string{"one-", "two-", "three-", "four-", "five-"}
	for i, content := range parts {
		writeFile(t, variant(base, i), content)
	}

	require.NoError(t, merge(base, len(parts)))

	require.Equal(t, "one-two-three-four-five-", readFile(t, base))

	// No stray .N temp files should remain after the final rename.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "out", entries[0].Name())
}

func TestMergeSinglePartIsJustRenamed(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "out")
	writeFile(t, variant(base, 0), "solo")

	require.NoError(t, merge(base, 1))
	require.Equal(t, "solo", readFile(t, base))
}
