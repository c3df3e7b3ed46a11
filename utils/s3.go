package utils

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const presignExpiry = 1 * time.Hour

// S3Archive stores full-resolution history images in a bucket.
type S3Archive struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewS3Archive initializes the S3 client
func NewS3Archive(ctx context.Context, region, bucket string) (*S3Archive, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config, %v", err)
	}

	client := s3.NewFromConfig(cfg)
	log.Println("S3 Client Initialized")
	return &S3Archive{client: client, presign: s3.NewPresignClient(client), bucket: bucket}, nil
}

// Put uploads a data-URI image under objectKey.
func (a *S3Archive) Put(ctx context.Context, objectKey, dataURI string) error {
	img, err := ParseDataURI(dataURI)
	if err != nil {
		return err
	}
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(img.Data),
		ContentType: aws.String(img.MIMEType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file to S3: %w", err)
	}
	return nil
}

// URL generates a presigned URL for an object
func (a *S3Archive) URL(ctx context.Context, objectKey string) (string, error) {
	request, err := a.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to sign request: %w", err)
	}
	return request.URL, nil
}
