package imagehost

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/xid"
)

// s3API is the part of *s3.Client the host uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config configures an S3 host.
type S3Config struct {
	Bucket string
	Region string

	// Endpoint points at an S3-compatible service such as MinIO. Empty
	// means AWS. Setting it switches to path-style addressing.
	Endpoint string

	// AccessKey and SecretKey are optional; without them the default AWS
	// credential chain applies.
	AccessKey string
	SecretKey string

	// PublicURL is the base clients fetch images from, e.g. a CDN origin.
	// Empty means the bucket's own URL.
	PublicURL string

	// Prefix is prepended to every object key.
	Prefix string
}

// S3 stores images as objects in a bucket.
type S3 struct {
	client    s3API
	bucket    string
	prefix    string
	publicURL string
	decoder   *Decoder
}

var _ Host = (*S3)(nil)

// NewS3 builds an S3 client from cfg.
func NewS3(ctx context.Context, cfg S3Config, decoder *Decoder) (*S3, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("imagehost: loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3(client, cfg, decoder), nil
}

func newS3(client s3API, cfg S3Config, decoder *Decoder) *S3 {
	return &S3{
		client:    client,
		bucket:    cfg.Bucket,
		prefix:    strings.Trim(cfg.Prefix, "/"),
		publicURL: publicBase(cfg),
		decoder:   decoder,
	}
}

// publicBase is the URL objects are reachable under, without a trailing slash.
func publicBase(cfg S3Config) string {
	switch {
	case cfg.PublicURL != "":
		return strings.TrimRight(cfg.PublicURL, "/")
	case cfg.Endpoint != "":
		return strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}
}

func (h *S3) key(name string) string {
	if h.prefix == "" {
		return name
	}
	return h.prefix + "/" + name
}

func (h *S3) Upload(ctx context.Context, data string) (*Image, error) {
	blob, err := h.decoder.Decode(ctx, data)
	if err != nil {
		return nil, err
	}

	id := xid.New().String()
	key := h.key(id + blob.Ext)

	_, err = h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(h.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(blob.Data),
		ContentType:   aws.String(blob.ContentType),
		ContentLength: aws.Int64(int64(len(blob.Data))),
	})
	if err != nil {
		return nil, fmt.Errorf("imagehost: putting %s: %w", key, err)
	}

	return &Image{URL: h.publicURL + "/" + key, ID: id}, nil
}

// Destroy deletes every object named "<id>.<ext>" under the prefix. The
// extension is not known from the id alone, hence the listing.
func (h *S3) Destroy(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("imagehost: invalid image id %q", id)
	}

	out, err := h.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(h.bucket),
		Prefix: aws.String(h.key(id + ".")),
	})
	if err != nil {
		return fmt.Errorf("imagehost: listing %s: %w", id, err)
	}

	for _, obj := range out.Contents {
		_, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(h.bucket),
			Key:    obj.Key,
		})
		if err != nil {
			return fmt.Errorf("imagehost: deleting %s: %w", aws.ToString(obj.Key), err)
		}
	}
	return nil
}

func (h *S3) Owns(rawURL string) bool {
	prefix := h.publicURL + "/"
	if h.prefix != "" {
		prefix += h.prefix + "/"
	}
	return strings.HasPrefix(rawURL, prefix) && len(rawURL) > len(prefix)
}
