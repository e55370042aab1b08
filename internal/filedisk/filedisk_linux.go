//go:build linux

// Package filedisk is the reference io.Disk backed by a real file,
// exercising the spec's use_directio option and its open-question #4 on
// keeping the direct-I/O and fallback open branches consistent: try the
// configured mode first, and on ENOENT retry with O_CREAT folded into
// that same mode rather than switching modes between the two attempts.
//
// Grounded on the teacher's disk abstraction (io.Disk) plus the rest of
// the example pack's use of golang.org/x/sys for platform file flags; the
// teacher's own go.mod lists golang.org/x/sys but nothing in its copied
// tree imports it; this is its wiring.
package filedisk

import (
	"errors"
	"io"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/zeebo/errs"
)

// Error is the class that contains all errors from this package.
var Error = errs.Class("filedisk")

// T is a file-backed Disk. It is safe for concurrent use.
type T struct {
	f         *os.File
	blockSize int64
	maxBlock  int64
}

// Open opens (or creates) dbname as a disk of the given block size. If
// directio is set, the file is opened with O_DIRECT. log receives a
// debug record when the first open attempt fails with ENOENT and the
// fallback O_CREATE retry is taken; pass zerolog.Nop() to discard it.
func Open(dbname string, blockSize int64, directio bool, log zerolog.Logger) (*T, error) {
	flags := os.O_RDWR
	if directio {
		flags |= unix.O_DIRECT
	}

	f, err := os.OpenFile(dbname, flags, 0o644)
	if os.IsNotExist(err) {
		log.Debug().Str("file", dbname).Int("flags", flags).Msg("creating new database file")
		f, err = os.OpenFile(dbname, flags|os.O_CREATE, 0o644)
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

// BlockSize implements io.Disk.
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

// Write implements io.Disk.
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

// Delete implements io.Disk by zeroing the block; the file itself is
// never truncated since later blocks may still be live.
func (t *T) Delete(block int64) error {
	zero := make([]byte, t.blockSize)
	_, err := t.f.WriteAt(zero, block*t.blockSize)
	return Error.Wrap(err)
}

// MaxBlock implements io.Disk.
func (t *T) MaxBlock() (int64, error) {
	return atomic.LoadInt64(&t.maxBlock), nil
}

// Close releases the underlying file descriptor.
func (t *T) Close() error { return t.f.Close() }
