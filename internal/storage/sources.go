// Package storage abstracts where snapshot blobs live: a local directory or
// a cloud blob store.
package storage

import (
	"io"
)

type BlobReader interface {
	io.ReaderAt
	io.Closer
	Size() int64
}

type BlobWriter interface {
	io.WriteCloser
}

type BlobStore interface {
	Open(name string) (BlobReader, error)
	Create(name string) (BlobWriter, error)
	Remove(name string) error
}
