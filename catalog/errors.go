package catalog

import "fmt"

// IndexCorruptError reports a schema or invariant violation encountered
// while loading a catalog. It is always fatal: Load never returns a
// partially built *Index alongside an error.
type IndexCorruptError struct {
	Reason string
	Offset int
}

func (e *IndexCorruptError) Error() string {
	return fmt.Sprintf("index corrupt at offset %d: %s", e.Offset, e.Reason)
}

func newIndexCorrupt(offset int, format string, args ...interface{}) error {
	return &IndexCorruptError{Reason: fmt.Sprintf(format, args...), Offset: offset}
}
