package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"go-vision-lens/internal/logger"
)

// maxEntrySize bounds a downloaded entry
const maxEntrySize = 32 << 20

// AzureStorage stores each entry as a JSON blob named <cache>/<sha256(url)>
type AzureStorage struct {
	client    *azblob.Client
	container string
}

// NewAzureStorage connects with a shared key. The container is created when missing.
func NewAzureStorage(ctx context.Context, accountName, accountKey, container string) (*AzureStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	s := &AzureStorage{client: client, container: container}
	if _, err := client.CreateContainer(ctx, container, nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return nil, fmt.Errorf("create container %s: %w", container, err)
	}
	return s, nil
}

func blobName(cache, url string) string {
	return cache + "/" + entryID(url)
}

// cacheFromBlobName recovers the cache name from "<cache>/<entry id>". The
// id is fixed-length hex, so the cache is everything before the last slash.
func cacheFromBlobName(name string) (string, bool) {
	i := strings.LastIndex(name, "/")
	if i <= 0 || len(name)-i-1 != entryIDLength {
		return "", false
	}
	return name[:i], true
}

func (s *AzureStorage) Match(ctx context.Context, cache, url string) (*Entry, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, blobName(cache, url), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("download failed: %w", err)
	}

	body := resp.Body
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxEntrySize))
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	if entry.URL != url {
		// hash collision or a foreign blob under our prefix
		return nil, ErrCacheMiss
	}
	return &entry, nil
}

func (s *AzureStorage) Put(ctx context.Context, cache string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	if _, err := s.client.UploadBuffer(ctx, s.container, blobName(cache, entry.URL), data, nil); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}

// PutAll uploads every entry. Blob storage has no multi-blob transaction, so
// on failure the blobs written by this call are deleted again.
func (s *AzureStorage) PutAll(ctx context.Context, cache string, entries []*Entry) error {
	written := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := s.Put(ctx, cache, e); err != nil {
			for _, url := range written {
				if _, derr := s.client.DeleteBlob(context.WithoutCancel(ctx), s.container, blobName(cache, url), nil); derr != nil {
					logger.WithError(derr).WithField("cache", cache).Warn("Failed to roll back cache entry")
				}
			}
			return err
		}
		written = append(written, e.URL)
	}
	return nil
}

func (s *AzureStorage) Keys(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	pager := s.client.NewListBlobsFlatPager(s.container, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list blobs: %w", err)
		}
		if page.Segment == nil {
			continue
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			if name, ok := cacheFromBlobName(*item.Name); ok {
				seen[name] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *AzureStorage) Delete(ctx context.Context, cache string) error {
	prefix := cache + "/"
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
	var errs []error
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list blobs: %w", err)
		}
		if page.Segment == nil {
			continue
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			if _, err := s.client.DeleteBlob(ctx, s.container, *item.Name, nil); err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (s *AzureStorage) Close() error {
	return nil
}

// compile-time check
var _ CacheStorage = (*AzureStorage)(nil)
