package local

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/akmistry/memstate/internal/storage"
)

const (
	tempBlobPrefix  = ".temp-"
	tempBlobPattern = tempBlobPrefix + "*"
)

var _ = (storage.BlobStore)((*BlobStore)(nil))

// BlobStore stores blobs as files in a directory. Writes go to a temp file
// and are renamed into place on Close, so a blob is never visible
// half-written.
type BlobStore struct {
	dir string
}

func NewBlobStore(dir string) (*BlobStore, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("local.BlobStore: error making dir %s: %w", dir, err)
	}

	s := &BlobStore{
		dir: dir,
	}
	return s, nil
}

func (s *BlobStore) makeFilePath(name string) string {
	return filepath.Join(s.dir, name)
}

type fileReader struct {
	*os.File
	size int64
}

func (r *fileReader) Size() int64 {
	return r.size
}

func (s *BlobStore) Open(name string) (storage.BlobReader, error) {
	f, err := os.Open(s.makeFilePath(name))
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileReader{
		File: f,
		size: fi.Size(),
	}, nil
}

type blobWriter struct {
	*os.File
	path string
}

func (w *blobWriter) Close() error {
	defer os.Remove(w.File.Name())

	err := w.File.Sync()
	if err != nil {
		// Close the file on sync error to avoid an FD leak
		w.File.Close()
		return err
	}
	err = w.File.Close()
	if err != nil {
		return err
	}
	err = os.Rename(w.File.Name(), w.path)
	if err != nil {
		return err
	}
	w.File = nil
	return nil
}

func (s *BlobStore) Create(name string) (storage.BlobWriter, error) {
	f, err := os.CreateTemp(s.dir, tempBlobPattern)
	if err != nil {
		return nil, err
	}
	return &blobWriter{
		File: f,
		path: s.makeFilePath(name),
	}, nil
}

func (s *BlobStore) Remove(name string) error {
	return os.Remove(s.makeFilePath(name))
}
