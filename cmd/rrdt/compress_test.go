package main

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTryCompressDetectsRepeatedByte(t *testing.T) {
	data := bytes.Repeat([]byte{'x'}, 200)
	r := bufio.NewReader(bytes.NewReader(data))

	b, ok, err := tryCompress(r)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, byte('x'), b)
}

func TestTryCompressRejectsMixedBytes(t *testing.T) {
	data := append(bytes.Repeat([]byte{'x'}, 63), 'y')
	data = append(data, bytes.Repeat([]byte{'x'}, 100)...)
	r := bufio.NewReader(bytes.NewReader(data))

	_, ok, err := tryCompress(r)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTryCompressRejectsShortFiles(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("short"))
	_, ok, err := tryCompress(r)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTryCompressDoesNotConsumeTheReader(t *testing.T) {
	data := bytes.Repeat([]byte{'z'}, 200)
	r := bufio.NewReader(bytes.NewReader(data))

	_, _, err := tryCompress(r)
	require.NoError(t, err)

	readBack := make([]byte, len(data))
	n, err := r.Read(readBack)
	require.NoError(t, err)
	require.Equal(t, data, readBack[:n])
}
