package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"

	cfg "github.com/draftwire/socialcast/configs"
	"github.com/draftwire/socialcast/internal/models"
	"github.com/draftwire/socialcast/internal/repository"
)

// Media the platforms accept. Instagram only takes images and video;
// Twitter and LinkedIn share the same set here.
var allowedMediaTypes = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "mp4": {}, "mov": {},
}

type AssetService interface {
	Upload(ctx context.Context, userID int64, file *multipart.FileHeader) (*models.MediaAsset, error)
	Get(ctx context.Context, assetID int64) (*models.MediaAsset, error)
	ListByUser(ctx context.Context, userID int64) ([]*models.MediaAsset, error)
}

type assetService struct {
	config cfg.Config
	ma     repository.MediaAssetRepository
}

func NewAssetService(config cfg.Config, ma repository.MediaAssetRepository) AssetService {
	return &assetService{
		config: config,
		ma:     ma,
	}
}

func (s *assetService) r2Client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s.config.R2.AccessKey, s.config.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", s.config.R2.AccountID))
	}), nil
}

func (s *assetService) uploadToR2(ctx context.Context, key string, file []byte, contentType string) error {
	client, err := s.r2Client(ctx)
	if err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.config.R2.BucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(file),
		ContentType: aws.String(contentType),
	}

	if _, err := client.PutObject(ctx, input); err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

// Upload sniffs the real file type from its bytes, rejects anything the
// platforms cannot carry, stores the object under a nanoid key, and records
// a media_assets row pointing at the public URL.
func (s *assetService) Upload(ctx context.Context, userID int64, file *multipart.FileHeader) (*models.MediaAsset, error) {
	fileContent, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("error opening file: %w", err)
	}
	defer fileContent.Close()

	fileBytes, err := io.ReadAll(fileContent)
	if err != nil {
		return nil, fmt.Errorf("error reading file content: %w", err)
	}

	fileType, err := filetype.Match(fileBytes)
	if err != nil || fileType == types.Unknown {
		return nil, fmt.Errorf("unsupported file type: %w", err)
	}
	if _, ok := allowedMediaTypes[fileType.Extension]; !ok {
		return nil, fmt.Errorf("file type %s is not allowed", fileType.Extension)
	}

	key, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	if err := s.uploadToR2(ctx, key, fileBytes, fileType.MIME.Value); err != nil {
		return nil, fmt.Errorf("error uploading file: %w", err)
	}

	asset := models.MediaAsset{
		UserID:   userID,
		FileName: file.Filename,
		FileType: fileType.MIME.Value,
		FileSize: int64(len(fileBytes)),
		FileURL:  fmt.Sprintf("%s/%s", s.config.R2.PublicURL, key),
	}

	id, err := s.ma.Create(ctx, &asset)
	if err != nil {
		return nil, err
	}
	asset.ID = id

	return &asset, nil
}

func (s *assetService) Get(ctx context.Context, assetID int64) (*models.MediaAsset, error) {
	return s.ma.GetByID(ctx, assetID)
}

func (s *assetService) ListByUser(ctx context.Context, userID int64) ([]*models.MediaAsset, error) {
	return s.ma.ListByUserID(ctx, userID)
}
