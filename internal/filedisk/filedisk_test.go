package filedisk

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/zeebo/assert"
)

func TestReadOfNeverWrittenBlockIsNilNotError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	d, err := Open(path, 512, false, zerolog.Nop())
	assert.NoError(t, err)
	defer d.Close()

	buf, err := d.Read(7)
	assert.NoError(t, err)
	assert.That(t, buf == nil)
}

func TestReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	d, err := Open(path, 512, false, zerolog.Nop())
	assert.NoError(t, err)
	defer d.Close()

	data := make([]byte, 512)
	copy(data, "hello")
	assert.NoError(t, d.Write(3, data))

	got, err := d.Read(3)
	assert.NoError(t, err)
	assert.Equal(t, string(got[:5]), "hello")
}

// TestReadPropagatesRealErrors guards against Read mistaking any error
// that happens to come back with n == 0 for "no data for this block":
// only io.EOF/io.ErrUnexpectedEOF means that. A closed file descriptor
// produces a plain I/O error, not io.EOF, and must surface as one.
func TestReadPropagatesRealErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	d, err := Open(path, 512, false, zerolog.Nop())
	assert.NoError(t, err)
	assert.NoError(t, d.Close())

	_, err = d.Read(0)
	assert.Error(t, err)
}
