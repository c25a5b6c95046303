package services

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"love-sync-backend/internal/models"
	"love-sync-backend/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	uploadURLExpiry = 5 * time.Minute
	// memoryGamePrefix holds memory game photos, which belong to a game rather than a pair
	memoryGamePrefix = "memory-games/"
)

var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/heic": ".heic",
	"image/webp": ".webp",
}

// Presigner signs upload URLs
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config locates the bucket memory images go to
type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Endpoint  string
}

// NewS3Presigner builds a presign client. Static keys and a custom endpoint are used when set,
// which covers S3-compatible providers.
func NewS3Presigner(ctx context.Context, cfg S3Config) (*s3.PresignClient, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return s3.NewPresignClient(client), nil
}

// PhotoService stores couple memory images
type PhotoService struct {
	photoRepo repository.PhotoStore
	pairRepo  repository.PairStore
	presigner Presigner
	s3        S3Config
	clock     clockwork.Clock
}

// NewPhotoService creates a new photo service
func NewPhotoService(photoRepo repository.PhotoStore, pairRepo repository.PairStore, presigner Presigner, s3cfg S3Config, clock clockwork.Clock) *PhotoService {
	return &PhotoService{
		photoRepo: photoRepo,
		pairRepo:  pairRepo,
		presigner: presigner,
		s3:        s3cfg,
		clock:     clock,
	}
}

// UploadRequest asks for a presigned upload URL
type UploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

// UploadResponse carries the presigned URL
type UploadResponse struct {
	UploadURL string `json:"upload_url"`
	PhotoID   string `json:"photo_id"`
	S3URL     string `json:"s3_url"`
	ExpiresIn int    `json:"expires_in"`
}

// objectURL is where the object will be readable once uploaded
func (s *PhotoService) objectURL(key string) string {
	if s.s3.Endpoint != "" {
		return strings.TrimRight(s.s3.Endpoint, "/") + "/" + path.Join(s.s3.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.s3.Bucket, s.s3.Region, key)
}

func (s *PhotoService) presign(ctx context.Context, key, contentType string) (string, error) {
	request, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.s3.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(uploadURLExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to generate pre-signed URL: %w", err)
	}
	return request.URL, nil
}

// GetPreSignedURL reserves a photo record for the user's pair and signs a PUT for it
func (s *PhotoService) GetPreSignedURL(ctx context.Context, userID, contentType string) (*UploadResponse, error) {
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("unsupported content type %q: %w", contentType, models.ErrInvalidChoice)
	}

	pair, err := s.pairRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	photoID := uuid.New().String()
	key := fmt.Sprintf("%s/%s%s", pair.ID, photoID, ext)

	uploadURL, err := s.presign(ctx, key, contentType)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	photo := &models.Photo{
		ID:        photoID,
		PairID:    pair.ID,
		UserID:    userID,
		S3URL:     s.objectURL(key),
		TakenAt:   now,
		CreatedAt: now,
	}
	if err := s.photoRepo.Create(ctx, photo); err != nil {
		return nil, fmt.Errorf("failed to create photo record: %w", err)
	}

	return &UploadResponse{
		UploadURL: uploadURL,
		PhotoID:   photoID,
		S3URL:     photo.S3URL,
		ExpiresIn: int(uploadURLExpiry.Seconds()),
	}, nil
}

// GetPhoto returns one photo if it belongs to the user's pair
func (s *PhotoService) GetPhoto(ctx context.Context, userID, photoID string) (*models.Photo, error) {
	pair, err := s.pairRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	photo, err := s.photoRepo.GetByID(ctx, photoID)
	if err != nil {
		return nil, err
	}
	if photo.PairID != pair.ID {
		return nil, models.ErrNotPairMember
	}
	return photo, nil
}

// GetPhotosByPair lists the pair's memories. Only premium couples have a gallery.
func (s *PhotoService) GetPhotosByPair(ctx context.Context, viewer Viewer, limit, offset int) ([]*models.Photo, int, error) {
	if viewer.Role != models.RolePremiumCouple {
		return nil, 0, models.ErrNotPremium
	}
	pair, err := s.pairRepo.GetByUserID(ctx, viewer.UserID)
	if err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.photoRepo.GetByPairID(ctx, pair.ID, limit, offset)
}

// MemoryUploadURL signs a PUT for a memory game photo. Anyone who may create a game may
// upload, so no pair or photo record is involved.
func (s *PhotoService) MemoryUploadURL(ctx context.Context, contentType string) (*UploadResponse, error) {
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("unsupported content type %q: %w", contentType, models.ErrInvalidChoice)
	}

	imageID := uuid.New().String()
	key := memoryGamePrefix + imageID + ext
	uploadURL, err := s.presign(ctx, key, contentType)
	if err != nil {
		return nil, err
	}
	return &UploadResponse{
		UploadURL: uploadURL,
		PhotoID:   imageID,
		S3URL:     s.objectURL(key),
		ExpiresIn: int(uploadURLExpiry.Seconds()),
	}, nil
}

// IsMemoryImage reports whether url points at an object MemoryUploadURL could have signed
func (s *PhotoService) IsMemoryImage(url string) bool {
	name := path.Base(url)
	if url != s.objectURL(memoryGamePrefix+name) {
		return false
	}
	ext := path.Ext(name)
	if _, err := uuid.Parse(strings.TrimSuffix(name, ext)); err != nil {
		return false
	}
	for _, allowed := range allowedImageTypes {
		if ext == allowed {
			return true
		}
	}
	return false
}
