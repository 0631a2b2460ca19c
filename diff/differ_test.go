package diff

import (
	"bytes"
	"context"
	"testing"

	"github.com/cylab/gammaray/catalog"
)

type recordingPublisher struct {
	topics   []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func decodeFieldEvent(t *testing.T, payload []byte) (typ string, index *int64, oldVal, newVal int64) {
	t.Helper()
	doc, err := catalog.ReadDocument(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("ReadDocument: %v", err)
	}
	v, ok := doc.Get("type")
	if !ok {
		t.Fatalf("missing type key")
	}
	typ = v.Str
	if iv, ok := doc.Get("index"); ok {
		i := iv.Int64
		index = &i
	}
	ov, _ := doc.Get("old")
	nv, _ := doc.Get("new")
	return typ, index, ov.Int64, nv.Int64
}

func TestDiffAndCommitInodeModeChange(t *testing.T) {
	old := catalog.Inode{Mode: 0o100644}
	new := old
	new.Mode = 0o100755

	pub := &recordingPublisher{}
	d := Differ{Publisher: pub}
	fc := FileContext{Hostname: "host1", VMName: "vm1", Path: "/etc/passwd"}

	if err := d.DiffAndCommit(context.Background(), &old, new, fc); err != nil {
		t.Fatalf("DiffAndCommit: %v", err)
	}

	if len(pub.payloads) != 1 {
		t.Fatalf("want exactly 1 event, got %d", len(pub.payloads))
	}
	typ, index, ov, nv := decodeFieldEvent(t, pub.payloads[0])
	if typ != "inode.i_mode" || index != nil || ov != 33188 || nv != 33261 {
		t.Fatalf("unexpected event: type=%s index=%v old=%d new=%d", typ, index, ov, nv)
	}
	if old != new {
		t.Fatalf("commit did not apply: old=%+v new=%+v", old, new)
	}
}

func TestDiffAndCommitIBlockIndexChanged(t *testing.T) {
	old := catalog.Inode{}
	new := old
	new.Block[3] = 42

	pub := &recordingPublisher{}
	d := Differ{Publisher: pub}
	fc := FileContext{Hostname: "host1", VMName: "vm1", Path: "/f"}

	if err := d.DiffAndCommit(context.Background(), &old, new, fc); err != nil {
		t.Fatalf("DiffAndCommit: %v", err)
	}
	if len(pub.payloads) != 1 {
		t.Fatalf("want exactly 1 event, got %d", len(pub.payloads))
	}
	typ, index, ov, nv := decodeFieldEvent(t, pub.payloads[0])
	if typ != "inode.i_block" || index == nil || *index != 3 || ov != 0 || nv != 42 {
		t.Fatalf("unexpected event: type=%s index=%v old=%d new=%d", typ, index, ov, nv)
	}
}

func TestDiffAndCommitCompletenessAndOrdering(t *testing.T) {
	old := catalog.Inode{Mode: 0o100644, UID: 1000, LinksCount: 1}
	new := old
	new.UID = 1001
	new.Dtime = 5
	new.Block[0] = 10
	new.Block[2] = 20
	new.FileACL = 99

	pub := &recordingPublisher{}
	d := Differ{Publisher: pub}
	fc := FileContext{Hostname: "h", VMName: "v", Path: "/p"}

	if err := d.DiffAndCommit(context.Background(), &old, new, fc); err != nil {
		t.Fatalf("DiffAndCommit: %v", err)
	}

	wantTypes := []string{"inode.i_uid", "inode.i_dtime", "inode.i_block", "inode.i_block", "inode.i_file_acl"}
	if len(pub.payloads) != len(wantTypes) {
		t.Fatalf("want %d events, got %d", len(wantTypes), len(pub.payloads))
	}
	for i, payload := range pub.payloads {
		typ, _, _, _ := decodeFieldEvent(t, payload)
		if typ != wantTypes[i] {
			t.Errorf("event %d type = %s, want %s", i, typ, wantTypes[i])
		}
	}
}

func TestDiffAndCommitAppliesEvenOnPublishFailure(t *testing.T) {
	old := catalog.Inode{Mode: 1}
	new := old
	new.Mode = 2

	d := Differ{Publisher: failingPublisher{}}
	fc := FileContext{Hostname: "h", VMName: "v", Path: "/p"}

	err := d.DiffAndCommit(context.Background(), &old, new, fc)
	if err == nil {
		t.Fatalf("want publish error surfaced")
	}
	if old != new {
		t.Fatalf("commit must apply regardless of publish failure: old=%+v new=%+v", old, new)
	}
}

type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return context.DeadlineExceeded
}
