package utils

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

// Tar writes the directory tree rooted at dir as a tar stream.
// Entries are written in lexical order with normalized ownership and
// timestamps, so identical trees produce identical archives.
func Tar(fsys Fs, dir string, w io.Writer) error {
	tw := tar.NewWriter(w)

	err := afero.Walk(fsys, dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if !info.Mode().IsDir() && !info.Mode().IsRegular() {
			return fmt.Errorf("%w: unsupported file type: %s", ErrBadRequest, path)
		}

		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			header.Name += "/"
		}
		header.ModTime = time.Unix(0, 0)
		header.AccessTime = time.Time{}
		header.ChangeTime = time.Time{}
		header.Uid, header.Gid = 0, 0
		header.Uname, header.Gname = "", ""
		header.Format = tar.FormatPAX

		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		file, err := fsys.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(tw, file)
		return err
	})
	if err != nil {
		return err
	}

	return tw.Close()
}

// Untar extracts a tar stream into dir.
// Entries escaping dir are rejected.
func Untar(fsys Fs, r io.Reader, dir string) error {
	tr := tar.NewReader(r)

	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return err
	}

	for {
		f, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("Archive read error: %v", err)
		}

		rel := filepath.FromSlash(f.Name)
		if !filepath.IsLocal(rel) {
			return fmt.Errorf("%w: archive entry outside of destination: %s", ErrBadRequest, f.Name)
		}
		abs := filepath.Join(dir, rel)
		mode := f.FileInfo().Mode()

		switch f.Typeflag {
		case tar.TypeDir:
			if err := fsys.MkdirAll(abs, mode.Perm()|0700); err != nil {
				return err
			}

		case tar.TypeReg:
			if err := fsys.MkdirAll(filepath.Dir(abs), 0755); err != nil {
				return err
			}
			wf, err := fsys.OpenFile(abs, os.O_RDWR|os.O_CREATE|os.O_TRUNC, mode.Perm()|0600)
			if err != nil {
				return err
			}
			n, err := io.Copy(wf, tr)
			if closeErr := wf.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
			if err != nil {
				return fmt.Errorf("Error writing to %s: %v", abs, err)
			}
			if n != f.Size {
				return fmt.Errorf("Only wrote %d bytes to %s; expected %d", n, abs, f.Size)
			}

		default:
			return fmt.Errorf("%w: archive entry %s contained unsupported file type %v", ErrBadRequest, f.Name, mode)
		}
	}
}

// Compress compresses data with zstd.
func Compress(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, nil), nil
}

// Decompress returns a reader for zstd compressed data.
func Decompress(data []byte) (io.Reader, error) {
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	out, err := decoder.DecodeAll(data, nil)
	decoder.Close()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(out), nil
}
