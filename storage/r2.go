package storage

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// R2Config holds configuration for an S3-compatible bucket (Cloudflare R2)
type R2Config struct {
	AccessKey string
	SecretKey string
	AccountID string
	Bucket    string
	Endpoint  string
	Region    string
	BaseURL   string // public URL prefix for uploaded files
}

// R2Storage uploads merged export clips to an S3-compatible bucket
type R2Storage struct {
	config   R2Config
	session  *session.Session
	client   *s3.S3
	uploader *s3manager.Uploader
}

// NewR2Storage creates a new R2Storage instance
func NewR2Storage(config R2Config) (*R2Storage, error) {
	if config.Region == "" {
		config.Region = "auto"
	}
	if config.Endpoint == "" && config.AccountID != "" {
		config.Endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", config.AccountID)
	}

	sess, err := session.NewSession(&aws.Config{
		Credentials:      credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, ""),
		Endpoint:         aws.String(config.Endpoint),
		Region:           aws.String(config.Region),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %v", err)
	}

	// Sequential multipart parts: exports often leave on residential uplinks
	uploader := s3manager.NewUploader(sess, func(u *s3manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024
		u.Concurrency = 1
	})

	return &R2Storage{
		config:   config,
		session:  sess,
		client:   s3.New(sess),
		uploader: uploader,
	}, nil
}

// UploadFile uploads a local file under the given remote key and returns
// its public URL.
func (r *R2Storage) UploadFile(localPath, remotePath string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %v", localPath, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to get file info: %v", err)
	}

	start := time.Now()
	log.Printf("Uploading %s (%.2f MB) to %s", localPath, float64(info.Size())/(1024*1024), remotePath)

	_, err = r.uploader.Upload(&s3manager.UploadInput{
		Bucket:      aws.String(r.config.Bucket),
		Key:         aws.String(remotePath),
		Body:        file,
		ContentType: aws.String("video/mp4"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %v", localPath, err)
	}

	log.Printf("Uploaded %s in %s", remotePath, time.Since(start).Truncate(time.Millisecond))
	return r.PublicURL(remotePath), nil
}

// PublicURL returns the publicly reachable URL for a remote key.
func (r *R2Storage) PublicURL(remotePath string) string {
	if r.config.BaseURL != "" {
		return strings.TrimRight(r.config.BaseURL, "/") + "/" + remotePath
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(r.config.Endpoint, "/"), r.config.Bucket, remotePath)
}
