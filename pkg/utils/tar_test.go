package utils

import (
	"archive/tar"
	"bytes"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, fsys Fs, root string) {
	require.NoError(t, fsys.MkdirAll(root+"/lib/sub", 0755))
	require.NoError(t, afero.WriteFile(fsys, root+"/main.py", []byte("print(1)"), 0644))
	require.NoError(t, afero.WriteFile(fsys, root+"/lib/a.jar", []byte{0xca, 0xfe}, 0644))
	require.NoError(t, afero.WriteFile(fsys, root+"/lib/sub/b.txt", []byte("b"), 0644))
}

func TestTarRoundTrip(t *testing.T) {
	src := afero.NewMemMapFs()
	writeTree(t, src, "/src")

	buf := bytes.Buffer{}
	require.NoError(t, Tar(src, "/src", &buf))

	dst := afero.NewMemMapFs()
	require.NoError(t, Untar(dst, &buf, "/dst"))

	data, err := afero.ReadFile(dst, "/dst/main.py")
	assert.NoError(t, err)
	assert.Equal(t, "print(1)", string(data))

	data, err = afero.ReadFile(dst, "/dst/lib/a.jar")
	assert.NoError(t, err)
	assert.Equal(t, []byte{0xca, 0xfe}, data)

	data, err = afero.ReadFile(dst, "/dst/lib/sub/b.txt")
	assert.NoError(t, err)
	assert.Equal(t, "b", string(data))
}

func TestTarIsDeterministic(t *testing.T) {
	a := afero.NewMemMapFs()
	writeTree(t, a, "/x")
	b := afero.NewMemMapFs()
	writeTree(t, b, "/y")

	bufA, bufB := bytes.Buffer{}, bytes.Buffer{}
	require.NoError(t, Tar(a, "/x", &bufA))
	require.NoError(t, Tar(b, "/y", &bufB))
	assert.Equal(t, bufA.Bytes(), bufB.Bytes())
}

func TestUntarRejectsEscapingEntries(t *testing.T) {
	buf := bytes.Buffer{}
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../evil", Mode: 0644, Size: 1, Typeflag: tar.TypeReg}))
	_, err := tw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	err = Untar(afero.NewMemMapFs(), &buf, "/dst")
	assert.ErrorIs(t, err, ErrBadRequest)
}

func TestCompressRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("grid"), 1000)

	compressed, err := Compress(data)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(data))

	reader, err := Decompress(compressed)
	require.NoError(t, err)
	out, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, data, out)

	_, err = Decompress([]byte("not zstd"))
	assert.Error(t, err)
}
