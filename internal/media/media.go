// Package media stores message images and profile pictures in S3-compatible
// object storage and hands back a public URL.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/pliu/dmchat/internal/common"
)

const maxImageBytes = 5 << 20

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}
)

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Uploader turns an inline image (data URL or bare base64) into a URL.
type Uploader interface {
	Upload(ctx context.Context, data string) (string, error)
}

// Disabled rejects every upload. It is used when no bucket is configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, string) (string, error) {
	return "", common.Validationf("image uploads are not enabled")
}

type S3Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	BaseEndpoint string
}

type S3Uploader struct {
	cfg    S3Config
	client *s3.Client
}

func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Uploader{cfg: cfg, client: client}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, data string) (string, error) {
	contentType, body, err := DecodeImage(data)
	if err != nil {
		return "", err
	}
	key := "images/" + uuid.NewString() + extensions[contentType]

	_, err = putObject(u.client, ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("%w: upload image: %w", common.ErrStorage, err)
	}
	return u.URL(key), nil
}

// URL is where key can be fetched once uploaded.
func (u *S3Uploader) URL(key string) string {
	if u.cfg.BaseEndpoint != "" {
		return strings.TrimRight(u.cfg.BaseEndpoint, "/") + "/" + u.cfg.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.cfg.Bucket, u.cfg.Region, key)
}

// DecodeImage accepts "data:image/png;base64,..." or bare base64 and returns
// the sniffed content type with the raw bytes.
func DecodeImage(data string) (string, []byte, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return "", nil, common.Validationf("image is empty")
	}
	if rest, ok := strings.CutPrefix(data, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return "", nil, common.Validationf("image must be a base64 data URL")
		}
		data = payload
	}

	body, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", nil, common.Validationf("image is not valid base64")
	}
	if len(body) > maxImageBytes {
		return "", nil, common.Validationf("image exceeds %d bytes", maxImageBytes)
	}

	contentType := http.DetectContentType(body)
	if _, ok := extensions[contentType]; !ok {
		return "", nil, common.Validationf("unsupported image type %s", contentType)
	}
	return contentType, body, nil
}
