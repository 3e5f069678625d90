package mediastore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// PutObjectAPI is the subset of the S3 client used by S3Sink.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads media to an S3 bucket under <RelativePath>/<DisplayName><ext>.
type S3Sink struct {
	client PutObjectAPI
	bucket string
	region string
	now    func() time.Time
}

// NewS3Sink builds a sink from the default AWS credential chain.
func NewS3Sink(ctx context.Context, bucket, region string) (*S3Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	return NewS3SinkWithClient(s3.NewFromConfig(cfg), bucket, region), nil
}

// NewS3SinkWithClient builds a sink around an existing client.
func NewS3SinkWithClient(client PutObjectAPI, bucket, region string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, region: region, now: time.Now}
}

// Save uploads r. Non-seekable readers are buffered so the request can be signed.
func (s *S3Sink) Save(ctx context.Context, req Request, r io.Reader) (Entry, error) {
	key, err := req.Key()
	if err != nil {
		return Entry{}, err
	}

	var (
		body io.Reader
		size int64
	)
	if rs, ok := r.(io.ReadSeeker); ok {
		size, err = rs.Seek(0, io.SeekEnd)
		if err == nil {
			_, err = rs.Seek(0, io.SeekStart)
		}
		if err != nil {
			return Entry{}, errors.Wrap(err, "measure upload")
		}
		body = rs
	} else {
		var buf bytes.Buffer
		if size, err = io.Copy(&buf, r); err != nil {
			return Entry{}, errors.Wrap(err, "buffer upload")
		}
		body = bytes.NewReader(buf.Bytes())
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(req.MIMEType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return Entry{}, errors.Wrapf(err, "upload s3://%s/%s", s.bucket, key)
	}

	uri := s.URL(key)
	return Entry{
		ID:           entryID(uri),
		DisplayName:  req.DisplayName,
		MIMEType:     req.MIMEType,
		RelativePath: cleanRelative(req.RelativePath),
		URI:          uri,
		Size:         size,
		CreatedAt:    s.now().UTC(),
	}, nil
}

// URL returns the public object URL for a key.
func (s *S3Sink) URL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
