// Package stream frames the external write-event source into a sequence of
// fixed-header records the engine can read one at a time.
package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrTruncated wraps a short read of a write-event header or body, meaning
// the underlying stream ended mid-record; it is also returned for a header
// whose sector_num or nb_sectors is negative. Callers treat it as fatal per
// the engine's error taxonomy.
var ErrTruncated = errors.New("stream: truncated write event")

// Write is one hypervisor-level block write: starting absolute sector,
// sector count, and the raw bytes written (nb_sectors*512 long).
type Write struct {
	FirstSector uint64
	Count       uint32
	Data        []byte
}

// Reader reads framed write events from an underlying byte stream.
type Reader struct {
	r io.Reader
}

// NewReader wraps r, which must yield the fixed header
// { sector_num:int64, nb_sectors:int32 } followed by nb_sectors*512 bytes,
// record after record.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next reads and returns the next write event. It returns io.EOF (unwrapped)
// if the stream ends cleanly between records, or an error wrapping
// ErrTruncated if it ends in the middle of one.
func (s *Reader) Next(ctx context.Context) (Write, error) {
	if err := ctx.Err(); err != nil {
		return Write{}, err
	}

	var header [12]byte
	if _, err := io.ReadFull(s.r, header[:]); err != nil {
		if err == io.EOF {
			return Write{}, io.EOF
		}
		return Write{}, fmt.Errorf("%w: header: %v", ErrTruncated, err)
	}

	sectorNum := int64(binary.LittleEndian.Uint64(header[0:8]))
	nbSectors := int32(binary.LittleEndian.Uint32(header[8:12]))
	if sectorNum < 0 || nbSectors < 0 {
		return Write{}, fmt.Errorf("%w: negative sector_num or nb_sectors", ErrTruncated)
	}

	data := make([]byte, int(nbSectors)*512)
	if _, err := io.ReadFull(s.r, data); err != nil {
		return Write{}, fmt.Errorf("%w: body: %v", ErrTruncated, err)
	}

	return Write{FirstSector: uint64(sectorNum), Count: uint32(nbSectors), Data: data}, nil
}
