package event

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cylab/gammaray/catalog"
)

func TestTopicFormat(t *testing.T) {
	got := Topic("host1", "vm1", "/etc/hosts")
	want := "host1:vm1:/etc/hosts"
	if got != want {
		t.Fatalf("Topic = %q, want %q", got, want)
	}
	// property 7: the first NUL in the wire payload terminates exactly this
	// string, once the caller frames it as topic + "\x00" + document.
	payload := append([]byte(got), 0)
	n := bytes.IndexByte(payload, 0)
	if string(payload[:n]) != want {
		t.Fatalf("first NUL does not terminate exactly the topic")
	}
	if strings.Contains(got, "\x00") {
		t.Fatalf("Topic produced an embedded NUL: %q", got)
	}
}

func TestEncodeInodeFieldScalar(t *testing.T) {
	b, err := EncodeInodeField("inode.i_mode", nil, 33188, 33261)
	if err != nil {
		t.Fatalf("EncodeInodeField: %v", err)
	}
	doc, err := catalog.ReadDocument(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if v, ok := doc.Get("type"); !ok || v.Str != "inode.i_mode" {
		t.Fatalf("type = %+v", v)
	}
	if _, ok := doc.Get("index"); ok {
		t.Fatalf("scalar field event should not carry an index key")
	}
	if v, ok := doc.Get("old"); !ok || v.Int64 != 33188 {
		t.Fatalf("old = %+v", v)
	}
	if v, ok := doc.Get("new"); !ok || v.Int64 != 33261 {
		t.Fatalf("new = %+v", v)
	}
}

func TestEncodeInodeFieldArrayCarriesIndex(t *testing.T) {
	idx := int64(3)
	b, err := EncodeInodeField("inode.i_block", &idx, 0, 42)
	if err != nil {
		t.Fatalf("EncodeInodeField: %v", err)
	}
	doc, err := catalog.ReadDocument(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if v, ok := doc.Get("index"); !ok || v.Int64 != 3 {
		t.Fatalf("index = %+v", v)
	}
}

func TestEncodeDataShape(t *testing.T) {
	data := bytes.Repeat([]byte{0xAB}, 1024)
	b, err := EncodeData(data)
	if err != nil {
		t.Fatalf("EncodeData: %v", err)
	}
	doc, err := catalog.ReadDocument(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	if v, ok := doc.Get("type"); !ok || v.Str != "data" {
		t.Fatalf("type = %+v", v)
	}
	if v, ok := doc.Get("start_byte"); !ok || v.Int64 != 0 {
		t.Fatalf("start_byte = %+v, want 0", v)
	}
	if v, ok := doc.Get("end_byte"); !ok || v.Int64 != 0 {
		t.Fatalf("end_byte = %+v, want 0", v)
	}
	v, ok := doc.Get("data")
	if !ok || !bytes.Equal(v.Binary, data) {
		t.Fatalf("data mismatch")
	}
}

func TestEncodeDataRejectsNonSectorMultiple(t *testing.T) {
	if _, err := EncodeData(make([]byte, 100)); err == nil {
		t.Fatalf("EncodeData: want error for non-512-multiple length")
	}
}
