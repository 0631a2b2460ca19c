// Package catalog holds the typed, in-memory representation of a disk's
// partition table, ext2 filesystems, block groups and files, along with the
// binary document codec used both to load that representation from the
// crawler's catalog file and to encode outgoing change events.
package catalog

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Tag identifies the wire type of a single document value.
type Tag byte

// Tag values match the catalog's on-disk encoding exactly; they are not
// renumbered for convenience.
const (
	TagDouble   Tag = 0x01
	TagString   Tag = 0x02
	TagDocument Tag = 0x03
	TagArray    Tag = 0x04
	TagBinary   Tag = 0x05
	TagBoolean  Tag = 0x08
	TagInt32    Tag = 0x10
	TagInt64    Tag = 0x12
)

// BinarySubtypeGeneric is the only binary subtype the catalog uses.
const BinarySubtypeGeneric byte = 0x00

// terminator is the trailing byte of every framed document.
const terminator = 0x00

// Value holds exactly one of the typed fields below; which one is valid is
// determined by Tag.
type Value struct {
	Tag Tag

	Double        float64
	Str           string
	Doc           *Document
	Binary        []byte
	BinarySubtype byte
	Bool          bool
	Int32         int32
	Int64         int64
}

// entry is one key/value pair in document order. Order matters: array
// documents are keyed by ascending ASCII decimal index, and the codec never
// reorders them.
type entry struct {
	Key   string
	Value Value
}

// Document is an ordered sequence of key/value pairs, the unit the codec
// reads and writes. A nil *Document is a valid, empty document.
type Document struct {
	entries []entry
}

// NewDocument returns an empty, ready-to-use Document.
func NewDocument() *Document {
	return &Document{}
}

// Len returns the number of entries in the document.
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

// Get returns the value stored under key, in first-match order.
func (d *Document) Get(key string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	for _, e := range d.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// At returns the i'th entry's key and value, for iterating array documents
// in encoded order regardless of what their keys happen to be.
func (d *Document) At(i int) (string, Value) {
	e := d.entries[i]
	return e.Key, e.Value
}

func (d *Document) append(key string, v Value) {
	d.entries = append(d.entries, entry{Key: key, Value: v})
}

// Encoder accumulates typed records and frames them into a document.
type Encoder struct {
	body bytes.Buffer
}

// NewEncoder returns an Encoder ready to accept records.
func NewEncoder() *Encoder {
	return &Encoder{}
}

func (e *Encoder) putTagAndKey(tag Tag, key string) {
	e.body.WriteByte(byte(tag))
	e.body.WriteString(key)
	e.body.WriteByte(0)
}

// PutDouble appends a double-valued record. Tolerated by the format; the
// engine itself never emits one.
func (e *Encoder) PutDouble(key string, v float64) {
	e.putTagAndKey(TagDouble, key)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	e.body.Write(buf[:])
}

// PutString appends a UTF-8 string record: 4-byte length (including the
// terminating NUL), bytes, NUL.
func (e *Encoder) PutString(key, v string) {
	e.putTagAndKey(TagString, key)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(v)+1))
	e.body.Write(lenBuf[:])
	e.body.WriteString(v)
	e.body.WriteByte(0)
}

// PutDocumentBytes appends an embedded-document record whose body is an
// already-framed document (as returned by Encoder.Bytes).
func (e *Encoder) PutDocumentBytes(key string, framed []byte) {
	e.putTagAndKey(TagDocument, key)
	e.body.Write(framed)
}

// PutArrayBytes appends an array record; framed must be an already-framed
// document whose keys are "0", "1", … in ascending order.
func (e *Encoder) PutArrayBytes(key string, framed []byte) {
	e.putTagAndKey(TagArray, key)
	e.body.Write(framed)
}

// PutBinary appends a binary record: 4-byte length, 1-byte subtype, bytes.
func (e *Encoder) PutBinary(key string, subtype byte, data []byte) {
	e.putTagAndKey(TagBinary, key)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(data)))
	e.body.Write(lenBuf[:])
	e.body.WriteByte(subtype)
	e.body.Write(data)
}

// PutBool appends a boolean record (one byte, 0 or 1).
func (e *Encoder) PutBool(key string, v bool) {
	e.putTagAndKey(TagBoolean, key)
	if v {
		e.body.WriteByte(1)
	} else {
		e.body.WriteByte(0)
	}
}

// PutInt32 appends a little-endian int32 record.
func (e *Encoder) PutInt32(key string, v int32) {
	e.putTagAndKey(TagInt32, key)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	e.body.Write(buf[:])
}

// PutInt64 appends a little-endian int64 record.
func (e *Encoder) PutInt64(key string, v int64) {
	e.putTagAndKey(TagInt64, key)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	e.body.Write(buf[:])
}

// Bytes frames the accumulated records: 4-byte little-endian total length
// (including the length field itself), the records, then the terminator.
func (e *Encoder) Bytes() []byte {
	total := 4 + e.body.Len() + 1
	out := make([]byte, 0, total)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(total))
	out = append(out, lenBuf[:]...)
	out = append(out, e.body.Bytes()...)
	out = append(out, terminator)
	return out
}

// EncodeArrayInt32 frames vals as an array document (keys "0","1",… in order).
func EncodeArrayInt32(vals []int32) []byte {
	e := NewEncoder()
	for i, v := range vals {
		e.PutInt32(fmt.Sprintf("%d", i), v)
	}
	return e.Bytes()
}

// Malformed reports a document that violates the wire format.
type Malformed struct {
	Reason string
	Offset int
}

func (m *Malformed) Error() string {
	return fmt.Sprintf("malformed document at offset %d: %s", m.Offset, m.Reason)
}

// ReadDocument reads one framed document from r. It returns io.EOF (unwrapped)
// if the stream ends exactly before a new document, or a *Malformed error for
// any other short read or structural violation.
func ReadDocument(r io.Reader) (*Document, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &Malformed{Reason: fmt.Sprintf("short length prefix: %v", err), Offset: 0}
	}
	total := binary.LittleEndian.Uint32(lenBuf[:])
	if total < 5 {
		return nil, &Malformed{Reason: fmt.Sprintf("total length %d too small", total), Offset: 0}
	}
	rest := make([]byte, total-4)
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, &Malformed{Reason: fmt.Sprintf("short document body: %v", err), Offset: 4}
	}
	full := append(lenBuf[:], rest...)
	doc, consumed, err := decodeDocumentBytes(full, 0)
	if err != nil {
		return nil, err
	}
	if consumed != len(full) {
		return nil, &Malformed{Reason: "trailing bytes after document terminator", Offset: consumed}
	}
	return doc, nil
}

// decodeDocumentBytes decodes one framed document starting at b[off:],
// returning the document and the number of bytes consumed (length prefix +
// body + terminator).
func decodeDocumentBytes(b []byte, off int) (*Document, int, error) {
	start := off
	if len(b)-off < 4 {
		return nil, 0, &Malformed{Reason: "short length prefix", Offset: off}
	}
	total := int(binary.LittleEndian.Uint32(b[off : off+4]))
	if total < 5 || off+total > len(b) {
		return nil, 0, &Malformed{Reason: fmt.Sprintf("document length %d out of range", total), Offset: off}
	}
	end := off + total
	pos := off + 4
	doc := NewDocument()
	for {
		if pos >= end {
			return nil, 0, &Malformed{Reason: "document missing terminator", Offset: pos}
		}
		tag := Tag(b[pos])
		if tag == terminator {
			pos++
			break
		}
		pos++
		keyStart := pos
		for pos < end && b[pos] != 0 {
			pos++
		}
		if pos >= end {
			return nil, 0, &Malformed{Reason: "unterminated key", Offset: keyStart}
		}
		key := string(b[keyStart:pos])
		pos++ // skip NUL

		val, n, err := decodeValue(tag, b, pos, end)
		if err != nil {
			return nil, 0, err
		}
		pos += n
		doc.append(key, val)
	}
	if pos != end {
		return nil, 0, &Malformed{Reason: "extra bytes inside document", Offset: pos}
	}
	return doc, end - start, nil
}

func decodeValue(tag Tag, b []byte, pos, end int) (Value, int, error) {
	switch tag {
	case TagDouble:
		if end-pos < 8 {
			return Value{}, 0, &Malformed{Reason: "short double", Offset: pos}
		}
		bits := binary.LittleEndian.Uint64(b[pos : pos+8])
		return Value{Tag: tag, Double: math.Float64frombits(bits)}, 8, nil

	case TagString:
		if end-pos < 4 {
			return Value{}, 0, &Malformed{Reason: "short string length", Offset: pos}
		}
		n := int(binary.LittleEndian.Uint32(b[pos : pos+4]))
		if n < 1 || pos+4+n > end {
			return Value{}, 0, &Malformed{Reason: fmt.Sprintf("string length %d out of range", n), Offset: pos}
		}
		str := b[pos+4 : pos+4+n-1]
		if b[pos+4+n-1] != 0 {
			return Value{}, 0, &Malformed{Reason: "string not NUL terminated", Offset: pos}
		}
		return Value{Tag: tag, Str: string(str)}, 4 + n, nil

	case TagDocument, TagArray:
		doc, n, err := decodeDocumentBytes(b, pos)
		if err != nil {
			return Value{}, 0, err
		}
		return Value{Tag: tag, Doc: doc}, n, nil

	case TagBinary:
		if end-pos < 5 {
			return Value{}, 0, &Malformed{Reason: "short binary header", Offset: pos}
		}
		n := int(binary.LittleEndian.Uint32(b[pos : pos+4]))
		subtype := b[pos+4]
		if n < 0 || pos+5+n > end {
			return Value{}, 0, &Malformed{Reason: fmt.Sprintf("binary length %d out of range", n), Offset: pos}
		}
		data := make([]byte, n)
		copy(data, b[pos+5:pos+5+n])
		return Value{Tag: tag, Binary: data, BinarySubtype: subtype}, 5 + n, nil

	case TagBoolean:
		if end-pos < 1 {
			return Value{}, 0, &Malformed{Reason: "short bool", Offset: pos}
		}
		return Value{Tag: tag, Bool: b[pos] != 0}, 1, nil

	case TagInt32:
		if end-pos < 4 {
			return Value{}, 0, &Malformed{Reason: "short int32", Offset: pos}
		}
		v := int32(binary.LittleEndian.Uint32(b[pos : pos+4]))
		return Value{Tag: tag, Int32: v}, 4, nil

	case TagInt64:
		if end-pos < 8 {
			return Value{}, 0, &Malformed{Reason: "short int64", Offset: pos}
		}
		v := int64(binary.LittleEndian.Uint64(b[pos : pos+8]))
		return Value{Tag: tag, Int64: v}, 8, nil

	default:
		return Value{}, 0, &Malformed{Reason: fmt.Sprintf("unknown tag 0x%02x", byte(tag)), Offset: pos}
	}
}
