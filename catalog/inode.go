package catalog

import (
	"encoding/binary"
	"fmt"
)

// InodeSize is the fixed on-disk size of a classic ext2 inode record.
const InodeSize = 128

// Inode is the 128-byte on-disk ext2 inode, decoded field by field. Array
// fields (Block, Osd2) keep their on-disk lengths (15 and 12 respectively)
// so the differ in package diff can walk them by index.
type Inode struct {
	Mode        uint16
	UID         uint16
	Size        uint32
	Atime       uint32
	Ctime       uint32
	Mtime       uint32
	Dtime       uint32
	GID         uint16
	LinksCount  uint16
	Blocks      uint32
	Flags       uint32
	Osd1        uint32
	Block       [15]uint32
	Generation  uint32
	FileACL     uint32
	DirACL      uint32
	Faddr       uint32
	Osd2        [12]byte
}

// InodeFromBytes decodes a 128-byte ext2 inode starting at offset 0 of b.
// b must be at least InodeSize bytes long.
func InodeFromBytes(b []byte) (Inode, error) {
	if len(b) < InodeSize {
		return Inode{}, fmt.Errorf("inode: need %d bytes, got %d", InodeSize, len(b))
	}
	var in Inode
	in.Mode = binary.LittleEndian.Uint16(b[0:2])
	in.UID = binary.LittleEndian.Uint16(b[2:4])
	in.Size = binary.LittleEndian.Uint32(b[4:8])
	in.Atime = binary.LittleEndian.Uint32(b[8:12])
	in.Ctime = binary.LittleEndian.Uint32(b[12:16])
	in.Mtime = binary.LittleEndian.Uint32(b[16:20])
	in.Dtime = binary.LittleEndian.Uint32(b[20:24])
	in.GID = binary.LittleEndian.Uint16(b[24:26])
	in.LinksCount = binary.LittleEndian.Uint16(b[26:28])
	in.Blocks = binary.LittleEndian.Uint32(b[28:32])
	in.Flags = binary.LittleEndian.Uint32(b[32:36])
	in.Osd1 = binary.LittleEndian.Uint32(b[36:40])
	for i := 0; i < 15; i++ {
		off := 40 + i*4
		in.Block[i] = binary.LittleEndian.Uint32(b[off : off+4])
	}
	in.Generation = binary.LittleEndian.Uint32(b[100:104])
	in.FileACL = binary.LittleEndian.Uint32(b[104:108])
	in.DirACL = binary.LittleEndian.Uint32(b[108:112])
	in.Faddr = binary.LittleEndian.Uint32(b[112:116])
	copy(in.Osd2[:], b[116:128])
	return in, nil
}

// Bytes re-encodes the inode to its 128-byte on-disk form.
func (in Inode) Bytes() []byte {
	b := make([]byte, InodeSize)
	binary.LittleEndian.PutUint16(b[0:2], in.Mode)
	binary.LittleEndian.PutUint16(b[2:4], in.UID)
	binary.LittleEndian.PutUint32(b[4:8], in.Size)
	binary.LittleEndian.PutUint32(b[8:12], in.Atime)
	binary.LittleEndian.PutUint32(b[12:16], in.Ctime)
	binary.LittleEndian.PutUint32(b[16:20], in.Mtime)
	binary.LittleEndian.PutUint32(b[20:24], in.Dtime)
	binary.LittleEndian.PutUint16(b[24:26], in.GID)
	binary.LittleEndian.PutUint16(b[26:28], in.LinksCount)
	binary.LittleEndian.PutUint32(b[28:32], in.Blocks)
	binary.LittleEndian.PutUint32(b[32:36], in.Flags)
	binary.LittleEndian.PutUint32(b[36:40], in.Osd1)
	for i := 0; i < 15; i++ {
		off := 40 + i*4
		binary.LittleEndian.PutUint32(b[off:off+4], in.Block[i])
	}
	binary.LittleEndian.PutUint32(b[100:104], in.Generation)
	binary.LittleEndian.PutUint32(b[104:108], in.FileACL)
	binary.LittleEndian.PutUint32(b[108:112], in.DirACL)
	binary.LittleEndian.PutUint32(b[112:116], in.Faddr)
	copy(b[116:128], in.Osd2[:])
	return b
}
