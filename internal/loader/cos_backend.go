package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/tencentyun/cos-go-sdk-v5"

	"github.com/KatanaGraph/katana-sub004/pkg/perrors"
)

// cosBackend fetches property bytes from Tencent COS. The URI's host names
// the bucket endpoint (e.g. cos://my-bucket.cos.ap-guangzhou.myqcloud.com)
// and the path plus propertyName form the object key, matching how the
// loader namespaces one object per (graph, property).
type cosBackend struct {
	client *cos.Client
	prefix string
}

func newCOSBackend(u *url.URL) *cosBackend {
	bucketURL := &url.URL{Scheme: "https", Host: u.Host}
	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  os.Getenv("COS_SECRET_ID"),
			SecretKey: os.Getenv("COS_SECRET_KEY"),
		},
	})
	return &cosBackend{client: client, prefix: u.Path}
}

func (b *cosBackend) key(propertyName string) string {
	if b.prefix == "" || b.prefix == "/" {
		return propertyName
	}
	return b.prefix + "/" + propertyName
}

func (b *cosBackend) fetchFull(ctx context.Context, uri, propertyName string) ([]byte, error) {
	resp, err := b.client.Object.Get(ctx, b.key(propertyName), nil)
	if err != nil {
		return nil, perrors.Wrap(perrors.CodeNotFound, fmt.Sprintf("cos get %s", b.key(propertyName)), err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, perrors.Wrap(perrors.CodeArrowDecode, "read cos object body", err)
	}
	return data, nil
}

func (b *cosBackend) fetchSlice(ctx context.Context, uri, propertyName string, offset, length int64) ([]byte, error) {
	opts := &cos.ObjectGetOptions{
		Range: fmt.Sprintf("bytes=%d-%d", offset, offset+length-1),
	}
	resp, err := b.client.Object.Get(ctx, b.key(propertyName), opts)
	if err != nil {
		return nil, perrors.Wrap(perrors.CodeNotFound, fmt.Sprintf("cos range-get %s", b.key(propertyName)), err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, perrors.Wrap(perrors.CodeArrowDecode, "read cos range body", err)
	}
	return data, nil
}
