package file

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // Import for JPEG decoding support
	"image/png"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/sobat-hris/sobat-backend-go/internal/domain/request"
	"github.com/sobat-hris/sobat-backend-go/internal/pkg/storage"
	"golang.org/x/image/draw"
)

// Signature images are scaled down to fit this box.
const (
	signatureMaxWidth  = 600
	signatureMaxHeight = 200
)

type FileService interface {
	// StoreAttachments stores every upload and returns the references of the
	// ones that were written. Failed uploads are logged and dropped.
	StoreAttachments(ctx context.Context, companyID string, uploads []request.AttachmentUpload) []request.Attachment

	// StoreSignature normalises a base64 PNG or JPEG signature to a bounded
	// PNG and returns its blob id.
	StoreSignature(ctx context.Context, companyID, encoded string) (string, error)

	// Open streams a blob owned by companyID.
	Open(ctx context.Context, companyID, blobID string) (io.ReadCloser, error)
	Read(ctx context.Context, companyID, blobID string) ([]byte, error)
}

type fileServiceImpl struct {
	blobs *storage.BlobStore
}

func NewFileService(fs storage.FileStorage) FileService {
	return &fileServiceImpl{
		blobs: storage.NewBlobStore(fs),
	}
}

// StoreAttachments implements FileService.
func (s *fileServiceImpl) StoreAttachments(ctx context.Context, companyID string, uploads []request.AttachmentUpload) []request.Attachment {
	attachments := make([]request.Attachment, 0, len(uploads))
	for _, u := range uploads {
		data, err := request.DecodeBase64(u.Data)
		if err != nil {
			slog.Warn("dropping attachment with invalid payload", "filename", u.Filename, "error", err)
			continue
		}

		contentType := u.ContentType
		if contentType == "" {
			contentType = contentTypeByExt(u.Filename)
		}

		ref, err := s.blobs.Put(ctx, companyID, data, contentType)
		if err != nil {
			slog.Error("failed to store attachment", "filename", u.Filename, "company_id", companyID, "error", err)
			continue
		}

		attachments = append(attachments, request.Attachment{
			BlobID:      ref.ID,
			Filename:    filepath.Base(u.Filename),
			ContentType: ref.ContentType,
			Size:        ref.Size,
		})
	}
	return attachments
}

// StoreSignature implements FileService.
func (s *fileServiceImpl) StoreSignature(ctx context.Context, companyID, encoded string) (string, error) {
	raw, err := request.DecodeBase64(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode signature: %w", err)
	}

	normalized, err := normalizeSignature(raw)
	if err != nil {
		return "", err
	}

	ref, err := s.blobs.Put(ctx, companyID, normalized, "image/png")
	if err != nil {
		return "", fmt.Errorf("failed to store signature: %w", err)
	}
	return ref.ID, nil
}

func (s *fileServiceImpl) Open(ctx context.Context, companyID, blobID string) (io.ReadCloser, error) {
	return s.blobs.Open(ctx, companyID, blobID)
}

func (s *fileServiceImpl) Read(ctx context.Context, companyID, blobID string) ([]byte, error) {
	return s.blobs.Read(ctx, companyID, blobID)
}

// ==================== HELPER FUNCTIONS ====================

// normalizeSignature decodes a PNG or JPEG image, shrinks it to fit the
// signature box keeping its aspect ratio and re-encodes it as PNG.
func normalizeSignature(raw []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature image: %w", err)
	}

	bounds := img.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), signatureMaxWidth, signatureMaxHeight)
	if width != bounds.Dx() || height != bounds.Dy() {
		img = resizeImage(img, width, height)
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode signature: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales w x h down to fit maxW x maxH. Smaller images are kept as is.
func fitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	ratio := float64(maxW) / float64(w)
	if r := float64(maxH) / float64(h); r < ratio {
		ratio = r
	}
	nw, nh := int(float64(w)*ratio), int(float64(h)*ratio)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}

// resizeImage resizes an image to the specified dimensions using high-quality interpolation
func resizeImage(src image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	// Use CatmullRom for high-quality downscaling
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

func contentTypeByExt(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	default:
		return ""
	}
}
