//go:build !linux

package filedisk

import (
	"errors"
	"io"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/zeebo/errs"
)

// Error is the class that contains all errors from this package.
var Error = errs.Class("filedisk")

// T is a file-backed Disk. O_DIRECT is a Linux-only concept; on other
// platforms the directio argument to Open is accepted but ignored, which
// keeps the tree's use_directio option portable without pretending to
// offer the same durability characteristics everywhere.
type T struct {
	f         *os.File
	blockSize int64
	maxBlock  int64
}

// Open opens (or creates) dbname as a disk of the given block size.
func Open(dbname string, blockSize int64, directio bool, log zerolog.Logger) (*T, error) {
	_ = directio

	f, err := os.OpenFile(dbname, os.O_RDWR, 0o644)
	if os.IsNotExist(err) {
		log.Debug().Str("file", dbname).Msg("creating new database file")
		f, err = os.OpenFile(dbname, os.O_RDWR|os.O_CREATE, 0o644)
	}
	if err != nil {
		return nil, Error.Wrap(err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, Error.Wrap(err)
	}

	var maxBlock int64
	if fi.Size() > 0 {
		maxBlock = (fi.Size() - 1) / blockSize
	}

	return &T{
		f:         f,
		blockSize: blockSize,
		maxBlock:  maxBlock,
	}, nil
}

func (t *T) BlockSize() int64 { return t.blockSize }

// Read implements io.Disk. A read that runs off the end of the file --
// nothing has ever been written to block -- reports io.EOF (or
// io.ErrUnexpectedEOF for a short final block); that, and only that, is
// "no data for this block". Any other error is a genuine storage fault
// and must propagate rather than be mistaken for an absent block.
func (t *T) Read(block int64) ([]byte, error) {
	buf := make([]byte, t.blockSize)
	n, err := t.f.ReadAt(buf, block*t.blockSize)
	switch {
	case err == nil:
		return buf[:n], nil
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		if n == 0 {
			return nil, nil
		}
		return buf[:n], nil
	default:
		return nil, Error.Wrap(err)
	}
}

func (t *T) Write(block int64, data []byte) error {
	if _, err := t.f.WriteAt(data, block*t.blockSize); err != nil {
		return Error.Wrap(err)
	}
	for {
		cur := atomic.LoadInt64(&t.maxBlock)
		if block <= cur || atomic.CompareAndSwapInt64(&t.maxBlock, cur, block) {
			return nil
		}
	}
}

func (t *T) Delete(block int64) error {
	zero := make([]byte, t.blockSize)
	_, err := t.f.WriteAt(zero, block*t.blockSize)
	return Error.Wrap(err)
}

func (t *T) MaxBlock() (int64, error) {
	return atomic.LoadInt64(&t.maxBlock), nil
}

func (t *T) Close() error { return t.f.Close() }
