package catalog

import (
	"bytes"
	"testing"

	"github.com/go-test/deep"
)

func buildSuperblockBytes() []byte {
	b := make([]byte, 90)
	putU32 := func(off int, v uint32) { b[off], b[off+1], b[off+2], b[off+3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24) }
	putU16 := func(off int, v uint16) { b[off], b[off+1] = byte(v), byte(v>>8) }
	putU32(0, 128)   // inodes_count
	putU32(4, 4096)  // blocks_count
	putU32(12, 1000) // free_blocks_count
	putU32(16, 100)  // free_inodes_count
	putU32(20, 1)    // first_data_block
	putU32(24, 0)    // log_block_size -> 1024 << 0 == 1024
	putU32(32, 8192) // blocks_per_group
	putU32(40, 128)  // inodes_per_group
	putU16(56, 0xEF53)
	putU32(84, 11)
	putU16(88, 128)
	return b
}

func buildInodeBytes() []byte {
	in := Inode{Mode: 0o100644, UID: 0, Size: 4096, LinksCount: 1}
	in.Block[0] = 50
	return in.Bytes()
}

func appendDoc(buf *bytes.Buffer, enc *Encoder) {
	buf.Write(enc.Bytes())
}

func TestLoadRoundTripSinglePartitionSingleFile(t *testing.T) {
	var buf bytes.Buffer

	mbr := NewEncoder()
	mbr.PutBool("gpt", false)
	mbr.PutInt32("sector", 0)
	mbr.PutInt32("active_partitions", 1)
	appendDoc(&buf, mbr)

	part := NewEncoder()
	part.PutInt32("pte_num", 0)
	part.PutInt32("partition_type", 0x83)
	part.PutInt32("first_sector_lba", 2048)
	part.PutInt32("final_sector_lba", 20479)
	part.PutInt32("sector", 0)
	appendDoc(&buf, part)

	sb := buildSuperblockBytes()
	fsEnc := NewEncoder()
	fsEnc.PutInt32("fs_type", 0)
	fsEnc.PutString("mount_point", "/")
	fsEnc.PutInt32("num_block_groups", 1)
	fsEnc.PutInt32("num_files", 1)
	fsEnc.PutBinary("superblock", BinarySubtypeGeneric, sb)
	appendDoc(&buf, fsEnc)

	bgd := NewEncoder()
	bgd.PutBinary("bgd", BinarySubtypeGeneric, []byte{1, 2, 3, 4})
	bgd.PutInt32("sector", 2050)
	bgd.PutInt32("block_bitmap_sector_start", 2051)
	bgd.PutInt32("block_bitmap_sector_end", 2051)
	bgd.PutInt32("inode_bitmap_sector_start", 2052)
	bgd.PutInt32("inode_bitmap_sector_end", 2052)
	bgd.PutInt32("inode_table_sector_start", 2053)
	bgd.PutInt32("inode_table_sector_end", 2060)
	appendDoc(&buf, bgd)

	sectorsDoc := EncodeArrayInt32([]int32{100, 101, 102})
	fileEnc := NewEncoder()
	fileEnc.PutInt64("inode_sector", 2053)
	fileEnc.PutInt64("inode_offset", 0)
	fileEnc.PutString("path", "/etc/hostname")
	fileEnc.PutBool("is_dir", false)
	fileEnc.PutBinary("inode", BinarySubtypeGeneric, buildInodeBytes())
	fileEnc.PutBinary("sectors", BinarySubtypeGeneric, sectorsDoc)
	appendDoc(&buf, fileEnc)

	idx, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if idx.GPT {
		t.Fatalf("GPT = true, want false")
	}
	if idx.ActivePartitions != 1 || len(idx.Partitions) != 1 {
		t.Fatalf("ActivePartitions/Partitions mismatch: %+v", idx)
	}
	p := idx.Partitions[0]
	if p.FirstLBA != 2048 || p.FinalLBA != 20479 || p.TypeCode != 0x83 {
		t.Fatalf("unexpected partition: %+v", p)
	}
	if p.FS.MountPoint != "/" {
		t.Fatalf("mount point = %q", p.FS.MountPoint)
	}
	if p.FS.Superblock.Magic != ext2SuperblockMagic || p.FS.Superblock.BlockSize() != 1024 {
		t.Fatalf("unexpected superblock: %+v", p.FS.Superblock)
	}
	if len(p.FS.BlockGroups) != 1 {
		t.Fatalf("want 1 block group, got %d", len(p.FS.BlockGroups))
	}
	bg := p.FS.BlockGroups[0]
	if bg.InodeTable.Start != 2053 || bg.InodeTable.End != 2060 {
		t.Fatalf("unexpected inode table range: %+v", bg.InodeTable)
	}
	if len(p.FS.Files) != 1 {
		t.Fatalf("want 1 file, got %d", len(p.FS.Files))
	}
	f := p.FS.Files[0]
	if f.Path != "/etc/hostname" || f.IsDir {
		t.Fatalf("unexpected file: %+v", f)
	}
	if f.Inode.Size != 4096 || f.Inode.Block[0] != 50 {
		t.Fatalf("unexpected inode: %+v", f.Inode)
	}
	if diff := deep.Equal(f.Sectors.Sectors(), []uint32{100, 101, 102}); diff != nil {
		t.Fatalf("sectors mismatch: %v", diff)
	}
}

func TestLoadRejectsUnsupportedFsType(t *testing.T) {
	var buf bytes.Buffer

	mbr := NewEncoder()
	mbr.PutBool("gpt", false)
	mbr.PutInt32("sector", 0)
	mbr.PutInt32("active_partitions", 1)
	appendDoc(&buf, mbr)

	part := NewEncoder()
	part.PutInt32("pte_num", 0)
	part.PutInt32("partition_type", 0x83)
	part.PutInt32("first_sector_lba", 2048)
	part.PutInt32("final_sector_lba", 20479)
	part.PutInt32("sector", 0)
	appendDoc(&buf, part)

	fsEnc := NewEncoder()
	fsEnc.PutInt32("fs_type", 7)
	fsEnc.PutString("mount_point", "/")
	fsEnc.PutInt32("num_block_groups", 0)
	fsEnc.PutInt32("num_files", 0)
	fsEnc.PutBinary("superblock", BinarySubtypeGeneric, buildSuperblockBytes())
	appendDoc(&buf, fsEnc)

	_, err := Load(&buf)
	if err == nil {
		t.Fatalf("Load: want error for unsupported fs_type, got nil")
	}
	if _, ok := err.(*IndexCorruptError); !ok {
		t.Fatalf("Load error type = %T, want *IndexCorruptError", err)
	}
}

func TestLoadRejectsTruncatedStream(t *testing.T) {
	mbr := NewEncoder()
	mbr.PutBool("gpt", false)
	mbr.PutInt32("sector", 0)
	mbr.PutInt32("active_partitions", 1)
	full := mbr.Bytes()

	_, err := Load(bytes.NewReader(full[:len(full)-3]))
	if err == nil {
		t.Fatalf("Load: want error on truncated stream, got nil")
	}
	if _, ok := err.(*IndexCorruptError); !ok {
		t.Fatalf("Load error type = %T, want *IndexCorruptError", err)
	}
}
