package loader

import (
	"context"
	"fmt"
	"net/url"

	"github.com/KatanaGraph/katana-sub004/pkg/perrors"
)

// backend fetches raw property bytes for a single named property, in full
// or as a byte-range slice, from one storage scheme.
type backend interface {
	fetchFull(ctx context.Context, uri, propertyName string) ([]byte, error)
	fetchSlice(ctx context.Context, uri, propertyName string, offset, length int64) ([]byte, error)
}

func backendFor(rawURI string) (backend, string, error) {
	u, err := url.Parse(rawURI)
	if err != nil {
		return nil, "", perrors.Wrap(perrors.CodeInvalidArgument, fmt.Sprintf("malformed source uri %q", rawURI), err)
	}
	switch u.Scheme {
	case "cos":
		return newCOSBackend(u), u.Scheme, nil
	case "shard":
		return newShardBackend(u), u.Scheme, nil
	case "file", "":
		return fileBackend{}, "file", nil
	default:
		return nil, "", perrors.Wrap(perrors.CodeInvalidArgument, fmt.Sprintf("unsupported source scheme %q", u.Scheme), nil)
	}
}

// fileBackend is an intentional stub: local-filesystem property formats
// (Parquet/RDG-on-disk) are out of scope (see Non-goals). It exists so a
// file:// URI fails with a clear, typed error rather than a generic one.
type fileBackend struct{}

func (fileBackend) fetchFull(ctx context.Context, uri, propertyName string) ([]byte, error) {
	return nil, perrors.Wrap(perrors.CodeInvalidArgument, "file:// format not implemented, see Non-goals", nil)
}

func (fileBackend) fetchSlice(ctx context.Context, uri, propertyName string, offset, length int64) ([]byte, error) {
	return nil, perrors.Wrap(perrors.CodeInvalidArgument, "file:// format not implemented, see Non-goals", nil)
}
