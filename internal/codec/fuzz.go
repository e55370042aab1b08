// +build gofuzz

package codec

import "github.com/cespare/xxhash/v2"

// Fuzz decodes data with DecodeNode and, when that succeeds, re-encodes
// the node and panics if the re-encoded page fails to decode. It also
// computes an xxhash of the checksummed body, but does not compare that
// value with anything.
func Fuzz(data []byte) int {
	n, err := DecodeNode(data)
	if err != nil {
		return 0
	}

	body := data[:len(data)-checksumSize]
	_ = xxhash.Sum64(body)

	re := EncodeNode(n)
	if _, err := DecodeNode(re); err != nil {
		panic("re-encoded node failed to decode: " + err.Error())
	}

	return 1
}
