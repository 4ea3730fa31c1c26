package storage

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
)

const zipExt = ".zip"

var (
	errNotFound    = errors.New("zip: no file inside")
	errInvalidName = errors.New("zip: invalid name")
)

// ZipStorage is a Storage decorator which compresses the state files.
type ZipStorage struct {
	Storage
}

func (z *ZipStorage) GetSavePath() string { return z.Storage.GetSavePath() + zipExt }

// Load loads a zip file with the path specified.
func (z *ZipStorage) Load(path string) ([]byte, error) {
	data, err := z.Storage.Load(path)
	if err != nil {
		return nil, err
	}
	d, _, err := unzip(data)
	return d, err
}

// Save saves the data into a compressed file with the specified path.
func (z *ZipStorage) Save(path string, data []byte) error {
	_, name := filepath.Split(path)
	if name == "" || name == "." {
		return errInvalidName
	}
	name = strings.TrimSuffix(name, zipExt)
	compressed, err := zipOne(data, name)
	if err != nil {
		return err
	}
	return z.Storage.Save(path, compressed)
}

// zipOne compresses the bytes (a single file) with a name specified
// into a ZIP file (as bytes).
func zipOne(data []byte, name string) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)
	f, err := w.Create(name)
	if err != nil {
		return nil, err
	}
	if _, err = f.Write(data); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// unzip reads the first file from a ZIP byte array.
// It returns un-compressed data and the name of that file.
func unzip(zd []byte) ([]byte, string, error) {
	r, err := zip.NewReader(bytes.NewReader(zd), int64(len(zd)))
	if err != nil {
		return nil, "", err
	}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, "", err
		}
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil, "", err
		}
		if err := rc.Close(); err != nil {
			return nil, "", err
		}
		return b, f.FileInfo().Name(), nil
	}
	return nil, "", errNotFound
}
