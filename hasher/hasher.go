package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/exp/mmap"
	"lukechampine.com/blake3"
)

const (
	hashBufferSmallSize      = 32 * 1024
	hashBufferLargeSize      = 128 * 1024
	hashLargeBufferThreshold = 256 * 1024
)

var hashBufferSmallPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, hashBufferSmallSize)
		return &buf
	},
}

var hashBufferLargePool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, hashBufferLargeSize)
		return &buf
	},
}

// mmapReaderAt is the slice of *mmap.ReaderAt the digest path needs; tests
// substitute failing readers through openMmapReader.
type mmapReaderAt interface {
	io.ReaderAt
	Len() int
	Close() error
}

var openMmapReader = func(path string) (mmapReaderAt, error) {
	return mmap.Open(path)
}

// Options selects the digest algorithm and the content read path.
type Options struct {
	Algorithm   string
	ReadMode    string
	MmapMinSize int64
}

func newHash(algorithm string) (hash.Hash, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", "sha256":
		return sha256.New(), nil
	case "blake3":
		return blake3.New(32, nil), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}
}

// Digest computes the hex content digest of the file at path. The digest is a
// pure function of the file bytes; identical content always yields the same
// digest regardless of name, path, or timestamps.
func Digest(path string, opts Options) (string, error) {
	h, err := newHash(opts.Algorithm)
	if err != nil {
		return "", err
	}

	mode := strings.ToLower(strings.TrimSpace(opts.ReadMode))
	if mode == "" {
		mode = "auto"
	}
	mmapMinSize := opts.MmapMinSize
	if mmapMinSize <= 0 {
		mmapMinSize = 128 * 1024
	}

	switch mode {
	case "mmap":
		if err := digestMmap(path, h); err != nil {
			return "", err
		}
	case "stream":
		if err := digestStream(path, h); err != nil {
			return "", err
		}
	default:
		info, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		if info.Size() >= mmapMinSize {
			if err := digestMmap(path, h); err == nil {
				break
			}
			// A failed mmap pass may have fed partial content into the
			// hash; start over before the stream fallback.
			h.Reset()
		}
		if err := digestStream(path, h); err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func digestStream(path string, h hash.Hash) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	bufferPool := &hashBufferSmallPool
	if info, statErr := file.Stat(); statErr == nil && info.Size() >= hashLargeBufferThreshold {
		bufferPool = &hashBufferLargePool
	}
	bufferPtr := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bufferPtr)
	buffer := *bufferPtr

	for {
		n, readErr := file.Read(buffer)
		if n > 0 {
			h.Write(buffer[:n])
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return readErr
		}
	}
}

func digestMmap(path string, h hash.Hash) error {
	r, err := openMmapReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	bufferPtr := hashBufferLargePool.Get().(*[]byte)
	defer hashBufferLargePool.Put(bufferPtr)
	buffer := *bufferPtr

	size := int64(r.Len())
	for off := int64(0); off < size; {
		n, readErr := r.ReadAt(buffer, off)
		if n > 0 {
			h.Write(buffer[:n])
			off += int64(n)
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return readErr
		}
		if n == 0 {
			break
		}
	}
	return nil
}
