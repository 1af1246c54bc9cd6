package storage

import (
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/pkg/errors"
)

type s3backend struct {
	svc      *s3.S3
	uploader *s3manager.Uploader
	bucket   string
}

// S3Options holds the connection parameters of the S3 backend.
type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
}

// NewS3 returns a new S3 backend. It works with any S3-compatible provider
// (AWS, R2, MinIO) thanks to the path-style addressing.
func NewS3(o S3Options) (Backend, error) {
	sess, err := session.NewSession(&aws.Config{
		Endpoint:         aws.String(o.Endpoint),
		Region:           aws.String(o.Region),
		Credentials:      credentials.NewStaticCredentials(o.AccessKey, o.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not create S3 session")
	}

	svc := s3.New(sess)
	return &s3backend{
		svc:      svc,
		uploader: s3manager.NewUploaderWithClient(svc),
		bucket:   o.Bucket,
	}, nil
}

func (b *s3backend) Name() string {
	return "s3"
}

func (b *s3backend) Reader(key string) (io.ReadCloser, error) {
	output, err := b.svc.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not get object")
	}
	return output.Body, nil
}

func (b *s3backend) Writer(key string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()

	w := &s3writer{pw: pw, done: make(chan struct{})}
	go func() {
		defer close(w.done)

		_, err := b.uploader.Upload(&s3manager.UploadInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(key),
			Body:   pr,
		})
		w.err = errors.Wrap(err, "could not put object")
		pr.CloseWithError(err)
	}()

	return w, nil
}

func (b *s3backend) List(cursor string, limit int) ([]Entry, string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(b.bucket),
		MaxKeys: aws.Int64(int64(limit)),
	}
	if cursor != "" {
		input.ContinuationToken = aws.String(cursor)
	}

	output, err := b.svc.ListObjectsV2(input)
	if err != nil {
		return nil, "", errors.Wrap(err, "could not list objects")
	}

	entries := make([]Entry, 0, len(output.Contents))
	for _, object := range output.Contents {
		entries = append(entries, Entry{
			Key:  aws.StringValue(object.Key),
			Size: aws.Int64Value(object.Size),
		})
	}

	return entries, aws.StringValue(output.NextContinuationToken), nil
}

func (b *s3backend) Remove(key string) error {
	_, err := b.svc.DeleteObject(&s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	return errors.Wrap(err, "could not delete object")
}

func (b *s3backend) Cleanup() error {
	// Keys have no directory materialization on S3.
	return nil
}

// s3writer bridges the Backend.Writer contract with the reader-oriented
// upload API of the SDK.
type s3writer struct {
	pw   *io.PipeWriter
	done chan struct{}
	err  error
}

func (w *s3writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *s3writer) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	<-w.done
	return w.err
}
