// Package diff compares two snapshots of an ext2 inode field by field and
// publishes one event per changed field.
package diff

import (
	"context"
	"fmt"

	"github.com/cylab/gammaray/catalog"
	"github.com/cylab/gammaray/event"
)

// FileContext carries the identifying information an emitted event needs
// beyond the two inode snapshots: which file, on which host/VM, this diff
// belongs to.
type FileContext struct {
	Hostname string
	VMName   string
	Path     string
}

// fieldSpec is one entry in the ordered, table-driven field list. extract
// reads the field's value out of an inode as an int64 regardless of its
// native width, which is how the wire event format represents every scalar
// field.
type fieldSpec struct {
	name     string
	extract  func(*catalog.Inode) int64
	isArray  bool
	arrayLen int
	atIndex  func(*catalog.Inode, int) int64
}

// fields is the fixed, ordered set of inode fields the differ walks, exactly
// as enumerated: i_mode, i_uid, i_size, i_atime, i_ctime, i_mtime, i_dtime,
// i_gid, i_links_count, i_blocks, i_flags, i_osd1, i_block[0..14],
// i_generation, i_file_acl, i_dir_acl, i_faddr, i_osd2[0..11].
var fields = []fieldSpec{
	{name: "i_mode", extract: func(in *catalog.Inode) int64 { return int64(in.Mode) }},
	{name: "i_uid", extract: func(in *catalog.Inode) int64 { return int64(in.UID) }},
	{name: "i_size", extract: func(in *catalog.Inode) int64 { return int64(in.Size) }},
	{name: "i_atime", extract: func(in *catalog.Inode) int64 { return int64(in.Atime) }},
	{name: "i_ctime", extract: func(in *catalog.Inode) int64 { return int64(in.Ctime) }},
	{name: "i_mtime", extract: func(in *catalog.Inode) int64 { return int64(in.Mtime) }},
	{name: "i_dtime", extract: func(in *catalog.Inode) int64 { return int64(in.Dtime) }},
	{name: "i_gid", extract: func(in *catalog.Inode) int64 { return int64(in.GID) }},
	{name: "i_links_count", extract: func(in *catalog.Inode) int64 { return int64(in.LinksCount) }},
	{name: "i_blocks", extract: func(in *catalog.Inode) int64 { return int64(in.Blocks) }},
	{name: "i_flags", extract: func(in *catalog.Inode) int64 { return int64(in.Flags) }},
	{name: "i_osd1", extract: func(in *catalog.Inode) int64 { return int64(in.Osd1) }},
	{name: "i_block", isArray: true, arrayLen: 15, atIndex: func(in *catalog.Inode, i int) int64 { return int64(in.Block[i]) }},
	{name: "i_generation", extract: func(in *catalog.Inode) int64 { return int64(in.Generation) }},
	{name: "i_file_acl", extract: func(in *catalog.Inode) int64 { return int64(in.FileACL) }},
	{name: "i_dir_acl", extract: func(in *catalog.Inode) int64 { return int64(in.DirACL) }},
	{name: "i_faddr", extract: func(in *catalog.Inode) int64 { return int64(in.Faddr) }},
	{name: "i_osd2", isArray: true, arrayLen: 12, atIndex: func(in *catalog.Inode, i int) int64 { return int64(in.Osd2[i]) }},
}

// Differ compares and commits inode snapshots, publishing one event per
// changed field through Publisher.
type Differ struct {
	Publisher event.Publisher
}

// DiffAndCommit compares old against new field by field in the fixed order
// above, publishing one event per changed scalar field (and one per changed
// index for array fields), then unconditionally commits *old = new
// regardless of how many publishes failed.
func (d Differ) DiffAndCommit(ctx context.Context, old *catalog.Inode, new catalog.Inode, fc FileContext) error {
	var firstErr error

	publish := func(typ string, index *int64, oldVal, newVal int64) {
		payload, err := event.EncodeInodeField(typ, index, oldVal, newVal)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("encode %s event: %w", typ, err)
			}
			return
		}
		topic := event.Topic(fc.Hostname, fc.VMName, fc.Path)
		if err := d.Publisher.Publish(ctx, topic, payload); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	for _, f := range fields {
		typ := "inode." + f.name
		if f.isArray {
			for i := 0; i < f.arrayLen; i++ {
				ov, nv := f.atIndex(old, i), f.atIndex(&new, i)
				if ov != nv {
					idx := int64(i)
					publish(typ, &idx, ov, nv)
				}
			}
			continue
		}
		ov, nv := f.extract(old), f.extract(&new)
		if ov != nv {
			publish(typ, nil, ov, nv)
		}
	}

	*old = new
	return firstErr
}
