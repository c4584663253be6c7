package loader

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/KatanaGraph/katana-sub004/pkg/perrors"
)

// decodeIPC decodes data as an Arrow IPC stream and checks that its schema's
// first field is named expectedName, the loader's contract for "this blob
// holds the property the caller asked for" (richer multi-column formats
// like Parquet/RDG-on-disk are out of scope, see SPEC_FULL.md Non-goals).
func decodeIPC(data []byte, expectedName string, mem memory.Allocator) (arrow.Table, error) {
	reader, err := ipc.NewReader(bytes.NewReader(data), ipc.WithAllocator(mem))
	if err != nil {
		return nil, perrors.Wrap(perrors.CodeArrowDecode, "open arrow ipc stream", err)
	}
	defer reader.Release()

	schema := reader.Schema()
	if schema.NumFields() == 0 || schema.Field(0).Name != expectedName {
		return nil, perrors.Wrap(perrors.CodeArrowDecode, fmt.Sprintf("expected leading column %q", expectedName), nil)
	}

	var recs []arrow.Record
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := reader.Err(); err != nil {
		return nil, perrors.Wrap(perrors.CodeArrowDecode, "read arrow ipc records", err)
	}

	return array.NewTableFromRecords(schema, recs), nil
}
