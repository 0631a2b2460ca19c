package catalog

import (
	"io"

	"github.com/google/uuid"
)

// maxPathBytes bounds a single file path, matching the crawler's own limit.
const maxPathBytes = 4096

// offsetReader tracks how many bytes have been consumed so IndexCorruptError
// can report a useful byte offset as it parses forward.
type offsetReader struct {
	r io.Reader
	n int
}

func (o *offsetReader) Read(p []byte) (int, error) {
	n, err := o.r.Read(p)
	o.n += n
	return n, err
}

// Load deserializes the catalog produced by the external crawler into an
// Index, consuming documents in the fixed order the crawler writes them in.
// Any schema violation aborts with *IndexCorruptError; Load never returns a
// partially built *Index alongside a non-nil error.
func Load(r io.Reader) (*Index, error) {
	or := &offsetReader{r: r}

	mbrDoc, err := ReadDocument(or)
	if err != nil {
		return nil, wrapReadErr(err, or.n, "MBR document")
	}

	gpt, err := requireBool(mbrDoc, "gpt", or.n)
	if err != nil {
		return nil, err
	}
	sector, err := requireInt32(mbrDoc, "sector", or.n)
	if err != nil {
		return nil, err
	}
	activePartitions, err := requireInt32(mbrDoc, "active_partitions", or.n)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		ID:               uuid.New(),
		GPT:              gpt,
		MBRSector:        uint64(uint32(sector)),
		ActivePartitions: int(activePartitions),
	}

	for i := 0; i < idx.ActivePartitions; i++ {
		partDoc, err := ReadDocument(or)
		if err != nil {
			return nil, wrapReadErr(err, or.n, "partition document")
		}
		pteNum, err := requireInt32(partDoc, "pte_num", or.n)
		if err != nil {
			return nil, err
		}
		partType, err := requireInt32(partDoc, "partition_type", or.n)
		if err != nil {
			return nil, err
		}
		firstLBA, err := requireInt32(partDoc, "first_sector_lba", or.n)
		if err != nil {
			return nil, err
		}
		finalLBA, err := requireInt32(partDoc, "final_sector_lba", or.n)
		if err != nil {
			return nil, err
		}
		descSector, err := requireInt32(partDoc, "sector", or.n)
		if err != nil {
			return nil, err
		}

		part := Partition{
			Index:            int(pteNum),
			TypeCode:         byte(partType),
			FirstLBA:         uint32(firstLBA),
			FinalLBA:         uint32(finalLBA),
			DescriptorSector: uint64(uint32(descSector)),
		}

		fsDoc, err := ReadDocument(or)
		if err != nil {
			return nil, wrapReadErr(err, or.n, "filesystem document")
		}
		fsType, err := requireInt32(fsDoc, "fs_type", or.n)
		if err != nil {
			return nil, err
		}
		if fsType != 0 {
			return nil, newIndexCorrupt(or.n, "unsupported fs_type %d, only ext2 (0) is supported", fsType)
		}
		mountPoint, err := requireString(fsDoc, "mount_point", or.n)
		if err != nil {
			return nil, err
		}
		numBlockGroups, err := requireInt32(fsDoc, "num_block_groups", or.n)
		if err != nil {
			return nil, err
		}
		numFiles, err := requireInt32(fsDoc, "num_files", or.n)
		if err != nil {
			return nil, err
		}
		sbBytes, err := requireBinary(fsDoc, "superblock", or.n)
		if err != nil {
			return nil, err
		}
		sb, err := SuperblockFromBytes(sbBytes)
		if err != nil {
			return nil, newIndexCorrupt(or.n, "superblock: %v", err)
		}

		fs := Filesystem{MountPoint: mountPoint, Superblock: sb}

		for j := int32(0); j < numBlockGroups; j++ {
			bgdDoc, err := ReadDocument(or)
			if err != nil {
				return nil, wrapReadErr(err, or.n, "block group document")
			}
			bgdBytes, err := requireBinary(bgdDoc, "bgd", or.n)
			if err != nil {
				return nil, err
			}
			bgSector, err := requireInt32(bgdDoc, "sector", or.n)
			if err != nil {
				return nil, err
			}
			bbStart, err := requireInt32(bgdDoc, "block_bitmap_sector_start", or.n)
			if err != nil {
				return nil, err
			}
			bbEnd, err := requireInt32(bgdDoc, "block_bitmap_sector_end", or.n)
			if err != nil {
				return nil, err
			}
			ibStart, err := requireInt32(bgdDoc, "inode_bitmap_sector_start", or.n)
			if err != nil {
				return nil, err
			}
			ibEnd, err := requireInt32(bgdDoc, "inode_bitmap_sector_end", or.n)
			if err != nil {
				return nil, err
			}
			itStart, err := requireInt32(bgdDoc, "inode_table_sector_start", or.n)
			if err != nil {
				return nil, err
			}
			itEnd, err := requireInt32(bgdDoc, "inode_table_sector_end", or.n)
			if err != nil {
				return nil, err
			}

			bg := BlockGroup{
				Raw:              bgdBytes,
				DescriptorSector: uint64(uint32(bgSector)),
				BlockBitmap:      SectorRange{Start: uint64(uint32(bbStart)), End: uint64(uint32(bbEnd))},
				InodeBitmap:      SectorRange{Start: uint64(uint32(ibStart)), End: uint64(uint32(ibEnd))},
				InodeTable:       SectorRange{Start: uint64(uint32(itStart)), End: uint64(uint32(itEnd))},
			}
			if bg.BlockBitmap.Start > bg.BlockBitmap.End ||
				bg.InodeBitmap.Start > bg.InodeBitmap.End ||
				bg.InodeTable.Start > bg.InodeTable.End {
				return nil, newIndexCorrupt(or.n, "block group %d has an inverted sector range", j)
			}
			fs.BlockGroups = append(fs.BlockGroups, bg)
		}

		for j := int32(0); j < numFiles; j++ {
			fileDoc, err := ReadDocument(or)
			if err != nil {
				return nil, wrapReadErr(err, or.n, "file document")
			}
			inodeSector, err := requireInt64(fileDoc, "inode_sector", or.n)
			if err != nil {
				return nil, err
			}
			inodeOffset, err := requireInt64(fileDoc, "inode_offset", or.n)
			if err != nil {
				return nil, err
			}
			path, err := requireString(fileDoc, "path", or.n)
			if err != nil {
				return nil, err
			}
			if len(path) == 0 || path[0] != '/' {
				return nil, newIndexCorrupt(or.n, "file path %q does not start with /", path)
			}
			if len(path) > maxPathBytes {
				return nil, newIndexCorrupt(or.n, "file path exceeds %d bytes", maxPathBytes)
			}
			isDir, err := requireBool(fileDoc, "is_dir", or.n)
			if err != nil {
				return nil, err
			}
			inodeBytes, err := requireBinary(fileDoc, "inode", or.n)
			if err != nil {
				return nil, err
			}
			inode, err := InodeFromBytes(inodeBytes)
			if err != nil {
				return nil, newIndexCorrupt(or.n, "inode: %v", err)
			}
			if inodeOffset < 0 || inodeOffset+InodeSize > 512 {
				return nil, newIndexCorrupt(or.n, "inode_offset %d + inode size exceeds one sector", inodeOffset)
			}
			sectorsBytes, err := requireBinary(fileDoc, "sectors", or.n)
			if err != nil {
				return nil, err
			}
			sectorsDoc, consumed, err := decodeDocumentBytes(sectorsBytes, 0)
			if err != nil {
				return nil, newIndexCorrupt(or.n, "sectors sub-document: %v", err)
			}
			if consumed != len(sectorsBytes) {
				return nil, newIndexCorrupt(or.n, "sectors sub-document has trailing bytes")
			}
			var sectorVals []uint32
			for k := 0; k < sectorsDoc.Len(); k++ {
				_, v := sectorsDoc.At(k)
				sectorVals = append(sectorVals, uint32(v.Int32))
			}

			fs.Files = append(fs.Files, File{
				InodeSector:         uint64(inodeSector),
				InodeOffsetInSector: uint64(inodeOffset),
				Path:                path,
				IsDir:               isDir,
				Inode:               inode,
				Sectors:             NewSectorSet(sectorVals),
			})
		}

		part.FS = fs
		idx.Partitions = append(idx.Partitions, part)
	}

	return idx, nil
}

func wrapReadErr(err error, offset int, what string) error {
	if err == io.EOF {
		return newIndexCorrupt(offset, "unexpected end of catalog while expecting %s", what)
	}
	return newIndexCorrupt(offset, "%s: %v", what, err)
}

func requireBool(doc *Document, key string, offset int) (bool, error) {
	v, ok := doc.Get(key)
	if !ok {
		return false, newIndexCorrupt(offset, "missing required key %q", key)
	}
	if v.Tag != TagBoolean {
		return false, newIndexCorrupt(offset, "key %q has tag 0x%02x, want boolean", key, byte(v.Tag))
	}
	return v.Bool, nil
}

func requireInt32(doc *Document, key string, offset int) (int32, error) {
	v, ok := doc.Get(key)
	if !ok {
		return 0, newIndexCorrupt(offset, "missing required key %q", key)
	}
	if v.Tag != TagInt32 {
		return 0, newIndexCorrupt(offset, "key %q has tag 0x%02x, want int32", key, byte(v.Tag))
	}
	return v.Int32, nil
}

func requireInt64(doc *Document, key string, offset int) (int64, error) {
	v, ok := doc.Get(key)
	if !ok {
		return 0, newIndexCorrupt(offset, "missing required key %q", key)
	}
	if v.Tag != TagInt64 {
		return 0, newIndexCorrupt(offset, "key %q has tag 0x%02x, want int64", key, byte(v.Tag))
	}
	return v.Int64, nil
}

func requireString(doc *Document, key string, offset int) (string, error) {
	v, ok := doc.Get(key)
	if !ok {
		return "", newIndexCorrupt(offset, "missing required key %q", key)
	}
	if v.Tag != TagString {
		return "", newIndexCorrupt(offset, "key %q has tag 0x%02x, want string", key, byte(v.Tag))
	}
	return v.Str, nil
}

func requireBinary(doc *Document, key string, offset int) ([]byte, error) {
	v, ok := doc.Get(key)
	if !ok {
		return nil, newIndexCorrupt(offset, "missing required key %q", key)
	}
	if v.Tag != TagBinary {
		return nil, newIndexCorrupt(offset, "key %q has tag 0x%02x, want binary", key, byte(v.Tag))
	}
	return v.Binary, nil
}
