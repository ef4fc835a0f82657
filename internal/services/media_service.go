package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path"
	"strings"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/gamdit/gamebox/internal/models"
	"github.com/gamdit/gamebox/internal/storage"
	"github.com/google/uuid"
	"github.com/nfnt/resize"
	"gorm.io/gorm"
)

var (
	ErrUnsupportedMedia = errors.New("only jpeg, png, gif, webp, mp4, webm and mov files are accepted")
	ErrUnsupportedImage = errors.New("avatars must be jpeg, png or gif")
	ErrMediaTooLarge    = errors.New("file is too large")
	ErrEmptyUpload      = errors.New("file is empty")
)

// AvatarSizes are the square renditions stored for every avatar, largest first.
var AvatarSizes = []uint{256, 64}

var mediaMimes = map[string]models.MediaKind{
	"image/jpeg":      models.MediaImage,
	"image/png":       models.MediaImage,
	"image/gif":       models.MediaImage,
	"image/webp":      models.MediaImage,
	"video/mp4":       models.MediaVideo,
	"video/webm":      models.MediaVideo,
	"video/quicktime": models.MediaVideo,
}

var videoExt = map[string]string{
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
}

type MediaService struct {
	db       *gorm.DB
	storage  storage.Storage
	maxBytes int
}

func NewMediaService(db *gorm.DB, store storage.Storage, maxBytes int) *MediaService {
	return &MediaService{db: db, storage: store, maxBytes: maxBytes}
}

// UploadPostMedia stores a post attachment under media/<user>/ and returns
// its public URL.
func (s *MediaService) UploadPostMedia(ctx context.Context, userID uuid.UUID, fileName, mime string, data []byte) (*dto.MediaUploadResponse, error) {
	kind, ok := mediaMimes[mime]
	if !ok {
		return nil, ErrUnsupportedMedia
	}
	if err := s.checkSize(data); err != nil {
		return nil, err
	}

	// MediaKindOf classifies posts by extension, so clips must keep one.
	if ext, isVideo := videoExt[mime]; isVideo && strings.ToLower(path.Ext(fileName)) != ext {
		fileName = strings.TrimSuffix(fileName, path.Ext(fileName)) + ext
	}

	resp, err := s.storage.Upload(ctx, &storage.UploadObject{
		Prefix:   "media/" + userID.String(),
		FileName: fileName,
		Mime:     mime,
		Data:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload media: %w", err)
	}
	return &dto.MediaUploadResponse{URL: resp.URL, Kind: string(kind)}, nil
}

// UploadAvatar crops the image to a centered square, stores every rendition in
// AvatarSizes and points the user's avatar_url at the largest.
func (s *MediaService) UploadAvatar(ctx context.Context, userID uuid.UUID, fileName, mime string, data []byte) (string, error) {
	if err := s.checkSize(data); err != nil {
		return "", err
	}
	img, err := decodeImage(mime, data)
	if err != nil {
		return "", err
	}
	img = cropSquare(img)

	objects := make([]*storage.UploadObject, 0, len(AvatarSizes))
	for _, size := range AvatarSizes {
		b, outMime, err := encodeImage(mime, resize.Resize(size, size, img, resize.Lanczos3))
		if err != nil {
			return "", fmt.Errorf("failed to encode avatar: %w", err)
		}
		objects = append(objects, &storage.UploadObject{
			Prefix:   "avatars/" + userID.String(),
			FileName: fmt.Sprintf("%dx%d-%s", size, size, path.Base(fileName)),
			Mime:     outMime,
			Data:     b,
		})
	}

	uploaded, err := s.storage.BulkUpload(ctx, objects)
	if err != nil {
		return "", fmt.Errorf("failed to upload avatar: %w", err)
	}
	url := uploaded[0].URL

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("avatar_url", url)
	if res.Error != nil {
		return "", fmt.Errorf("failed to update avatar: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", ErrUserNotFound
	}
	return url, nil
}

func (s *MediaService) checkSize(data []byte) error {
	if len(data) == 0 {
		return ErrEmptyUpload
	}
	if s.maxBytes > 0 && len(data) > s.maxBytes {
		return ErrMediaTooLarge
	}
	return nil
}

func decodeImage(mime string, data []byte) (image.Image, error) {
	r := bytes.NewReader(data)
	switch mime {
	case "image/jpeg":
		return jpeg.Decode(r)
	case "image/png":
		return png.Decode(r)
	case "image/gif":
		return gif.Decode(r)
	}
	return nil, ErrUnsupportedImage
}

// GIF avatars are flattened to their first frame and stored as PNG.
func encodeImage(mime string, img image.Image) ([]byte, string, error) {
	buf := new(bytes.Buffer)
	if mime == "image/jpeg" {
		err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 90})
		return buf.Bytes(), mime, err
	}
	err := png.Encode(buf, img)
	return buf.Bytes(), "image/png", err
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func cropSquare(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == h {
		return img
	}
	si, ok := img.(subImager)
	if !ok {
		return img
	}
	side := w
	if h < side {
		side = h
	}
	x0 := b.Min.X + (w-side)/2
	y0 := b.Min.Y + (h-side)/2
	return si.SubImage(image.Rect(x0, y0, x0+side, y0+side))
}
