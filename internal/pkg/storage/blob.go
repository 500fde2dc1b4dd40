package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"regexp"
)

var ErrInvalidBlobID = errors.New("invalid blob id")

var blobIDRegex = regexp.MustCompile(`^[0-9a-f]{64}$`)

// BlobRef identifies a stored blob. ID is the hex sha256 of the content.
type BlobRef struct {
	ID          string `json:"blob_id"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// BlobStore stores content addressed blobs per tenant on top of a FileStorage.
// Writing the same bytes twice yields the same ID and a single object.
type BlobStore struct {
	storage FileStorage
}

func NewBlobStore(fs FileStorage) *BlobStore {
	return &BlobStore{storage: fs}
}

func (b *BlobStore) key(companyID, id string) string {
	return path.Join("blobs", companyID, id[:2], id)
}

// Put stores data and returns its reference. An empty contentType is sniffed.
func (b *BlobStore) Put(ctx context.Context, companyID string, data []byte, contentType string) (BlobRef, error) {
	if companyID == "" {
		return BlobRef{}, fmt.Errorf("company id is required")
	}
	sum := sha256.Sum256(data)
	id := hex.EncodeToString(sum[:])
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	ref := BlobRef{ID: id, ContentType: contentType, Size: int64(len(data))}

	key := b.key(companyID, id)
	exists, err := b.storage.Exists(ctx, key)
	if err != nil {
		return BlobRef{}, fmt.Errorf("failed to check blob: %w", err)
	}
	if exists {
		return ref, nil
	}

	if _, err := b.storage.Upload(ctx, bytes.NewReader(data), key, contentType); err != nil {
		return BlobRef{}, fmt.Errorf("failed to store blob: %w", err)
	}
	return ref, nil
}

// Open returns a reader for a blob owned by companyID.
func (b *BlobStore) Open(ctx context.Context, companyID, id string) (io.ReadCloser, error) {
	if !blobIDRegex.MatchString(id) {
		return nil, ErrInvalidBlobID
	}
	return b.storage.Download(ctx, b.key(companyID, id))
}

// Read loads a whole blob into memory.
func (b *BlobStore) Read(ctx context.Context, companyID, id string) ([]byte, error) {
	rc, err := b.Open(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
