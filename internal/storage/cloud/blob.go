package cloud

import (
	cu "github.com/akmistry/cloud-util"
	_ "github.com/akmistry/cloud-util/all"
	"github.com/akmistry/cloud-util/cache"

	"github.com/akmistry/memstate/internal/storage"
)

// BlobStore stores blobs in a URL-selected cloud backend, with optional
// staged uploads and a local read cache.
type BlobStore struct {
	bs cu.BlobStore
}

var _ = (storage.BlobStore)((*BlobStore)(nil))

func NewBlobStore(url, stagingDir, cacheDir string, cacheSize int64) (*BlobStore, error) {
	bs, err := cu.OpenBlobStore(url)
	if err != nil {
		return nil, err
	}
	if stagingDir != "" {
		bs, err = cache.NewStagedBlobUploader(bs, stagingDir)
		if err != nil {
			return nil, err
		}
	}
	if cacheDir != "" {
		bs, err = cache.NewBlockBlobCache(bs, cacheDir, cacheSize)
		if err != nil {
			return nil, err
		}
	}
	s := &BlobStore{
		bs: bs,
	}
	return s, nil
}

func (s *BlobStore) Open(name string) (storage.BlobReader, error) {
	return s.bs.Get(name)
}

func (s *BlobStore) Create(name string) (storage.BlobWriter, error) {
	return s.bs.Put(name)
}

func (s *BlobStore) Remove(name string) error {
	return s.bs.Delete(name)
}
