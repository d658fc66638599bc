package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/zysolutions/octodash/internal/pkg/logger"
)

// PutObjectAPI is the slice of the S3 client the Store needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config configures a Store.
type Config struct {
	Bucket    string
	Region    string
	KeyPrefix string
	CDNDomain string
	MaxBytes  int64
	MaxWidth  int
	MaxHeight int
	MaxPixels int64
}

// Image describes an uploaded image.
type Image struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Resized     bool      `json:"resized"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Store uploads images to S3 and returns their public URL.
type Store struct {
	s3Client PutObjectAPI
	cfg      Config
	now      func() time.Time
}

// NewStore creates a Store.
func NewStore(client PutObjectAPI, cfg Config) *Store {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = DefaultMaxWidth
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = DefaultMaxHeight
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	return &Store{s3Client: client, cfg: cfg, now: time.Now}
}

// MaxBytes returns the upload size limit.
func (s *Store) MaxBytes() int64 {
	return s.cfg.MaxBytes
}

// Upload validates, shrinks if needed, and stores an image under the user's prefix.
func (s *Store) Upload(ctx context.Context, userID string, r io.Reader) (*Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	// Sniffed rather than trusted from the multipart header.
	contentType := http.DetectContentType(data)
	if err := Validate(contentType, int64(len(data)), s.cfg.MaxBytes); err != nil {
		return nil, err
	}

	if err := CheckDimensions(data, s.cfg.MaxPixels); err != nil {
		return nil, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding image: %v", ErrUnsupportedType, err)
	}

	out, resized := Resize(img, s.cfg.MaxWidth, s.cfg.MaxHeight)
	if resized {
		data, contentType, err = Encode(out, format)
		if err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	key := path.Join(s.cfg.KeyPrefix, userID, now.Format("2006/01"), uuid.New().String()+SupportedTypes[contentType])

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.cfg.Bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000"),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading to S3: %w", err)
	}

	bounds := out.Bounds()
	logger.Info("Images: uploaded", "key", key, "bytes", len(data), "resized", resized)

	return &Image{
		Key:         key,
		URL:         s.publicURL(key),
		ContentType: contentType,
		Size:        int64(len(data)),
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Resized:     resized,
		UploadedAt:  now,
	}, nil
}

func (s *Store) publicURL(key string) string {
	if s.cfg.CDNDomain != "" {
		return fmt.Sprintf("https://%s/%s", s.cfg.CDNDomain, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}
