// Package event builds the two wire event document shapes (inode-field
// change and data overwrite) and the topic name they are published under.
package event

import (
	"fmt"

	"github.com/cylab/gammaray/catalog"
)

// Topic builds the per-file channel name: hostname ":" vmname ":" path. The
// caller NUL-terminates it when framing the wire payload (topic\0 ||
// document); Topic itself returns the plain string so callers that only need
// it for logging don't carry a stray NUL.
func Topic(hostname, vmname, path string) string {
	return hostname + ":" + vmname + ":" + path
}

// EncodeInodeField builds an "inode.<field>" change event document. index is
// nil for scalar fields and non-nil (carrying the array position) for
// i_block/i_osd2 entries. The hostname/vmname/path identifying the event
// belong to the topic, built separately by Topic, not the document body.
func EncodeInodeField(typ string, index *int64, oldVal, newVal int64) ([]byte, error) {
	enc := catalog.NewEncoder()
	enc.PutString("type", typ)
	if index != nil {
		enc.PutInt64("index", *index)
	}
	enc.PutInt64("old", oldVal)
	enc.PutInt64("new", newVal)
	return enc.Bytes(), nil
}

// EncodeData builds a "data" overwrite event document. start_byte/end_byte
// are always zero: no component computes a real byte offset for a sector
// write, so the fields are emitted as-is rather than guessed at.
func EncodeData(data []byte) ([]byte, error) {
	if len(data)%512 != 0 {
		return nil, fmt.Errorf("event: data length %d is not a multiple of 512", len(data))
	}
	enc := catalog.NewEncoder()
	enc.PutString("type", "data")
	enc.PutInt64("start_byte", 0)
	enc.PutInt64("end_byte", 0)
	enc.PutBinary("data", catalog.BinarySubtypeGeneric, data)
	return enc.Bytes(), nil
}
