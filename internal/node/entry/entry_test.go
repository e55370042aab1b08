package entry

import (
	"testing"

	"github.com/zeebo/assert"

	"buftree/internal/ids"
)

func TestEntry(t *testing.T) {
	t.Run("Basic", func(t *testing.T) {
		xids := ids.XIDPair{Child: 7, Parent: 3}
		ent := New(make([]byte, 1), make([]byte, 2), ids.MsgDelete, 4, 42, xids)

		assert.Equal(t, ent.KeyLen(), 1)
		assert.Equal(t, ent.ValueLen(), 2)
		assert.Equal(t, ent.Tombstone(), true)
		assert.Equal(t, ent.Type(), ids.MsgDelete)
		assert.Equal(t, ent.Offset(), 4)
		assert.Equal(t, ent.MSN, ids.MSN(42))
		assert.Equal(t, ent.XIDs, xids)
	})

	t.Run("ReadKeyValue", func(t *testing.T) {
		buf := append([]byte{0, 0, 0, 0}, []byte("keyval")...)
		ent := New([]byte("key"), []byte("val"), ids.MsgInsert, 4, 1, ids.XIDPair{})

		assert.That(t, string(ent.ReadKey(buf)) == "key")
		assert.That(t, string(ent.ReadValue(buf)) == "val")
		assert.Equal(t, ent.Tombstone(), false)
	})
}
