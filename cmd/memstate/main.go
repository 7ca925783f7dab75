package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/akmistry/memstate/internal/app/memstate"
	"github.com/akmistry/memstate/internal/storage"
	"github.com/akmistry/memstate/internal/storage/cloud"
	"github.com/akmistry/memstate/internal/storage/local"
	"github.com/akmistry/memstate/rangemap"
	"github.com/akmistry/memstate/snapshot"
)

var (
	verboseFlag = flag.Bool("verbose", false, "Verbose logging")

	blobstoreFlag     = flag.String("blobstore", "", "URL for blob storage backend")
	blobCacheDirFlag  = flag.String("blob-cache-dir", "", "Directory for blob read cache")
	blobCacheSizeFlag = flag.String("blob-cache-size", "1G", "Size of blob cache")

	opsFlag  = flag.Int("ops", 100000, "Number of mutations for the stress command")
	seedFlag = flag.Int64("seed", 1, "Random seed for the stress command")
	outFlag  = flag.String("out", "", "Snapshot to write after the stress command")
)

const (
	// TODO: Raise artificial limit.
	maxSpaceSize = 1 << 40

	// Above this, the stress command skips the byte-for-byte model check.
	maxModelSize = 1 << 26

	maxWriteSize = 4096
)

func usage() {
	log.Print("Usage: memstate [flags] dump <SNAPSHOT>")
	log.Print("       memstate [flags] stress <SIZE>")
	os.Exit(1)
}

// openBlobStore returns the store holding |name|, and the blob name within
// it. With no -blobstore, |name| is a local file path.
func openBlobStore(name string) (storage.BlobStore, string, error) {
	if *blobstoreFlag != "" {
		cacheSize, err := memstate.ParseSizeString(*blobCacheSizeFlag)
		if err != nil {
			return nil, "", fmt.Errorf("invalid blob-cache-size: %w", err)
		}
		bs, err := cloud.NewBlobStore(
			*blobstoreFlag, "", *blobCacheDirFlag, int64(cacheSize))
		if err != nil {
			return nil, "", err
		}
		return bs, name, nil
	}

	bs, err := local.NewBlobStore(filepath.Dir(name))
	if err != nil {
		return nil, "", err
	}
	return bs, filepath.Base(name), nil
}

func runDump(name string) error {
	bs, blobName, err := openBlobStore(name)
	if err != nil {
		return err
	}
	r, err := bs.Open(blobName)
	if err != nil {
		return err
	}
	defer r.Close()

	m, err := snapshot.Read(
		io.NewSectionReader(r, 0, r.Size()), snapshot.Int64Codec{})
	if err != nil {
		return err
	}

	segments := 0
	m.Iter(0, m.Size(), func(rg rangemap.Range, v int64) bool {
		fmt.Printf("[%10d, %10d) %10s  = %d\n",
			rg.Offset, rg.End(), memstate.Bytes(rg.Length), v)
		segments++
		return true
	})
	fmt.Printf("%d segments over %s\n", segments, memstate.Bytes(m.Size()))
	return nil
}

func runStress(size uint64, ops int, seed int64) error {
	rnd := rand.New(rand.NewSource(seed))
	m := rangemap.New[int64](size, -1)

	var model []int64
	if size <= maxModelSize {
		model = make([]int64, size)
		for i := range model {
			model[i] = -1
		}
	} else {
		log.Printf("Size %s too big for model checking, running blind",
			memstate.Bytes(size))
	}

	start := time.Now()
	for i := 0; i < ops; i++ {
		off := uint64(rnd.Int63n(int64(size)))
		maxLen := size - off
		if maxLen > maxWriteSize {
			maxLen = maxWriteSize
		}
		length := uint64(rnd.Int63n(int64(maxLen))) + 1

		if rnd.Intn(4) == 0 {
			// No-op mutate, exercises split and merge paths only.
			m.IterMut(off, length, func(r rangemap.Range, v *int64) bool {
				return true
			})
		} else {
			v := rnd.Int63n(256)
			m.IterMut(off, length, func(r rangemap.Range, p *int64) bool {
				*p = v
				return true
			})
			for j := off; model != nil && j < off+length; j++ {
				model[j] = v
			}
		}

		if i%100000 == 0 {
			slog.Debug("stress progress", "ops", i, "segments", m.SegmentCount())
		}
	}
	elapsed := time.Since(start)
	log.Printf("%d ops in %v (%.0f ops/sec), %d segments",
		ops, elapsed, float64(ops)/elapsed.Seconds(), m.SegmentCount())

	if model != nil {
		for j := uint64(0); j < size; j++ {
			if v := m.Get(j); v != model[j] {
				return fmt.Errorf("verification failed: byte %d is %d, expected %d",
					j, v, model[j])
			}
		}
		log.Print("Model verification passed")
	}

	if *outFlag != "" {
		bs, blobName, err := openBlobStore(*outFlag)
		if err != nil {
			return err
		}
		w, err := bs.Create(blobName)
		if err != nil {
			return err
		}
		err = snapshot.Write(w, m, snapshot.Int64Codec{})
		if err != nil {
			w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		log.Printf("Wrote snapshot %s", *outFlag)
	}
	return nil
}

func main() {
	flag.Parse()

	if flag.NArg() != 2 {
		usage()
	}

	if *verboseFlag {
		slog.SetDefault(slog.New(slog.NewTextHandler(
			os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	var err error
	switch flag.Arg(0) {
	case "dump":
		err = runDump(flag.Arg(1))
	case "stress":
		var size uint64
		size, err = memstate.ParseSizeString(flag.Arg(1))
		if err != nil || size == 0 {
			log.Printf("Invalid size: %s", flag.Arg(1))
			os.Exit(1)
		}
		if size > maxSpaceSize {
			log.Printf("Size %s is too big (max 1T)", memstate.Bytes(size))
			os.Exit(1)
		}
		err = runStress(size, *opsFlag, *seedFlag)
	default:
		usage()
	}
	if err != nil {
		log.Fatal(err)
	}
}
