package catalog

import "github.com/google/uuid"

// SectorRange is an inclusive range of absolute disk sectors.
type SectorRange struct {
	Start uint64
	End   uint64
}

// Contains reports whether sector falls within the range, inclusive.
func (r SectorRange) Contains(sector uint64) bool {
	return sector >= r.Start && sector <= r.End
}

// BlockGroup is one ext2 block group descriptor plus the sector ranges of
// the structures it points at.
type BlockGroup struct {
	Raw              []byte // raw ext2 block_group_descriptor bytes, as the crawler emitted them
	DescriptorSector uint64
	BlockBitmap      SectorRange
	InodeBitmap      SectorRange
	InodeTable       SectorRange
}

// File is one tracked filesystem object: its inode location, path, and the
// set of sectors currently known to back its data.
type File struct {
	InodeSector         uint64
	InodeOffsetInSector uint64
	Path                string
	IsDir               bool
	Inode               Inode
	Sectors             *SectorSet
}

// Filesystem is the ext2-family filesystem mounted within one partition.
type Filesystem struct {
	MountPoint  string
	BlockGroups []BlockGroup
	Files       []File
	Superblock  Superblock
}

// BlockSize returns the filesystem's block size in bytes.
func (f Filesystem) BlockSize() uint32 {
	return f.Superblock.BlockSize()
}

// Partition is one MBR partition table entry plus the filesystem it holds.
type Partition struct {
	Index            int
	TypeCode         byte
	FirstLBA         uint32
	FinalLBA         uint32
	DescriptorSector uint64
	FS               Filesystem
}

// Contains reports whether sector falls within [FirstLBA, FinalLBA].
func (p Partition) Contains(sector uint64) bool {
	return sector >= uint64(p.FirstLBA) && sector <= uint64(p.FinalLBA)
}

// Index is the full, read-mostly catalog produced once by the crawler and
// loaded at startup: the MBR plus every active partition's filesystem.
type Index struct {
	// ID is a synthetic identifier, not part of the crawler's catalog
	// format, used only to correlate log lines across an engine run.
	ID uuid.UUID

	GPT              bool
	MBRSector        uint64
	ActivePartitions int
	Partitions       []Partition
}

// PartitionFor returns the unique partition whose LBA window contains
// sector, or false if none does.
func (idx *Index) PartitionFor(sector uint64) (*Partition, bool) {
	for i := range idx.Partitions {
		if idx.Partitions[i].Contains(sector) {
			return &idx.Partitions[i], true
		}
	}
	return nil, false
}
