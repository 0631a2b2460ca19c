// Package inspect walks a catalog's file list against an observed write and
// drives the differ and event publisher for every touched file.
package inspect

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/cylab/gammaray/catalog"
	"github.com/cylab/gammaray/classify"
	"github.com/cylab/gammaray/diff"
	"github.com/cylab/gammaray/event"
	"github.com/cylab/gammaray/stream"
)

// ErrInodeDecodeOutOfRange reports that a computed inode offset lies outside
// the write buffer. Per-event: the triggering event is skipped and a warning
// logged; inspection of the remaining files continues.
var ErrInodeDecodeOutOfRange = errors.New("inspect: computed inode offset out of range")

// Inspector walks one partitioned filesystem's file list against each
// observed write, dispatching inode-touch and data-touch events.
type Inspector struct {
	Index     *catalog.Index
	Differ    diff.Differ
	Publisher event.Publisher
	Hostname  string
	VMName    string
	Logger    logrus.FieldLogger
}

// OnWrite implements the deep-inspection dispatch: locate the owning
// partition, walk its files for inode and data touches, and return the
// partition-level classification (EXT2_PARTITION on match, UNKNOWN/0 on no
// match). Per-event decode errors are logged and skipped, never returned;
// only a fatal publish error aborts and is returned to the caller.
func (insp *Inspector) OnWrite(ctx context.Context, w stream.Write) (classify.SectorRole, error) {
	part, ok := insp.Index.PartitionFor(w.FirstSector)
	if !ok {
		return classify.Unknown, nil
	}
	if w.Count == 0 {
		return classify.ExtPartition, nil
	}

	writeEnd := w.FirstSector + uint64(w.Count) - 1

	for i := range part.FS.Files {
		file := &part.FS.Files[i]

		if file.InodeSector >= w.FirstSector && file.InodeSector <= writeEnd {
			if err := insp.inspectInodeTouch(ctx, w, file); err != nil {
				return classify.ExtPartition, err
			}
		}

		touchesData := file.Sectors.Contains(uint32(w.FirstSector))
		switch {
		case touchesData && file.IsDir:
			insp.logger().WithFields(logrus.Fields{
				"path":   file.Path,
				"sector": w.FirstSector,
			}).Info("directory data write detected, not decoded")
		case touchesData && !file.IsDir:
			if err := insp.publishData(ctx, file, w); err != nil {
				return classify.ExtPartition, err
			}
		}
	}

	return classify.ExtPartition, nil
}

func (insp *Inspector) inspectInodeTouch(ctx context.Context, w stream.Write, file *catalog.File) error {
	off := (file.InodeSector-w.FirstSector)*512 + file.InodeOffsetInSector
	if off+catalog.InodeSize > uint64(len(w.Data)) {
		insp.logger().WithFields(logrus.Fields{
			"path":   file.Path,
			"offset": off,
		}).Warn(ErrInodeDecodeOutOfRange.Error())
		return nil
	}

	newInode, err := catalog.InodeFromBytes(w.Data[off : off+catalog.InodeSize])
	if err != nil {
		insp.logger().WithFields(logrus.Fields{
			"path": file.Path,
		}).Warnf("%s: %v", ErrInodeDecodeOutOfRange, err)
		return nil
	}

	fc := diff.FileContext{Hostname: insp.Hostname, VMName: insp.VMName, Path: file.Path}
	return insp.Differ.DiffAndCommit(ctx, &file.Inode, newInode, fc)
}

func (insp *Inspector) publishData(ctx context.Context, file *catalog.File, w stream.Write) error {
	payload, err := event.EncodeData(w.Data)
	if err != nil {
		return err
	}
	topic := event.Topic(insp.Hostname, insp.VMName, file.Path)
	return insp.Publisher.Publish(ctx, topic, payload)
}

func (insp *Inspector) logger() logrus.FieldLogger {
	if insp.Logger != nil {
		return insp.Logger
	}
	return logrus.StandardLogger()
}
