// Package classify assigns each observed write a stable sector role by
// walking the catalog's MBR, partitions, and block groups.
package classify

import "github.com/cylab/gammaray/catalog"

// SectorRole is the stable small-integer enum used in logs and downstream
// consumers. Values match the external contract exactly; do not renumber.
type SectorRole int

const (
	Unknown        SectorRole = 0
	MBR            SectorRole = 1
	ExtSuperblock  SectorRole = 2
	ExtBGD         SectorRole = 3
	ExtBlockBitmap SectorRole = 4
	ExtInodeBitmap SectorRole = 5
	ExtInode       SectorRole = 6
	ExtData        SectorRole = 7
	ExtPartition   SectorRole = 8
)

func (r SectorRole) String() string {
	switch r {
	case MBR:
		return "MBR"
	case ExtSuperblock:
		return "EXT2_SUPERBLOCK"
	case ExtBGD:
		return "EXT2_BGD"
	case ExtBlockBitmap:
		return "EXT2_BLOCK_BITMAP"
	case ExtInodeBitmap:
		return "EXT2_INODE_BITMAP"
	case ExtInode:
		return "EXT2_INODE"
	case ExtData:
		return "EXT2_DATA"
	case ExtPartition:
		return "EXT2_PARTITION"
	default:
		return "UNKNOWN"
	}
}

// Write is the portion of an observed stream write the classifier needs:
// its starting absolute sector and sector count.
type Write struct {
	FirstSector uint64
	Count       uint32
}

// Classify implements the sector classification algorithm: MBR sector first,
// then the unique containing partition, then superblock/BGD/bitmap/inode
// table/data ranges in block-group order, with metadata roles always beating
// EXT2_DATA and the first partition whose window contains the sector
// winning ties (partitions are disjoint by invariant).
func Classify(w Write, idx *catalog.Index) SectorRole {
	if w.Count == 0 {
		return Unknown
	}
	s := w.FirstSector

	if s == idx.MBRSector {
		return MBR
	}

	part, ok := idx.PartitionFor(s)
	if !ok {
		return Unknown
	}

	if s == uint64(part.FirstLBA)+2 {
		return ExtSuperblock
	}

	sb := part.FS.Superblock
	sectorsPerBlock := uint64(sb.BlockSize() / 512)
	sectorsPerGroup := sectorsPerBlock * uint64(sb.BlocksPerGroup)
	groupStart0 := uint64(part.FirstLBA) + uint64(sb.FirstDataBlock)*sectorsPerBlock

	for j, g := range part.FS.BlockGroups {
		switch {
		case s == g.DescriptorSector:
			return ExtBGD
		case g.BlockBitmap.Contains(s):
			return ExtBlockBitmap
		case g.InodeBitmap.Contains(s):
			return ExtInodeBitmap
		case g.InodeTable.Contains(s):
			return ExtInode
		case sectorsPerGroup > 0:
			groupStart := groupStart0 + uint64(j)*sectorsPerGroup
			groupEnd := groupStart + sectorsPerGroup
			if s >= groupStart && s < groupEnd {
				return ExtData
			}
		}
	}

	return ExtPartition
}
