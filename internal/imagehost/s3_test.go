package imagehost

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects in a map keyed by object key.
type fakeS3 struct {
	objects   map[string][]byte
	types     map[string]string
	deleteErr error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for key := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func TestS3_UploadAndDestroy(t *testing.T) {
	fake := newFakeS3()
	host := newS3(fake, S3Config{
		Bucket:    "covers",
		Region:    "eu-west-1",
		PublicURL: "https://cdn.example.com/",
		Prefix:    "/books/",
	}, testDecoder())
	ctx := context.Background()

	img, err := host.Upload(ctx, pngDataURI())
	require.NoError(t, err)

	key := "books/" + img.ID + ".png"
	assert.Equal(t, "https://cdn.example.com/"+key, img.URL)
	assert.Equal(t, pngBytes, fake.objects[key])
	assert.Equal(t, "image/png", fake.types[key])
	assert.True(t, host.Owns(img.URL))
	assert.Equal(t, img.ID, PublicID(img.URL))

	require.NoError(t, host.Destroy(ctx, img.ID))
	assert.Empty(t, fake.objects)
}

func TestS3_DestroyLeavesOtherObjects(t *testing.T) {
	fake := newFakeS3()
	fake.objects["books/keep.png"] = pngBytes
	fake.objects["books/gone.jpg"] = pngBytes
	host := newS3(fake, S3Config{Bucket: "covers", Region: "us-east-1", Prefix: "books"}, testDecoder())

	require.NoError(t, host.Destroy(context.Background(), "gone"))
	assert.Contains(t, fake.objects, "books/keep.png")
	assert.NotContains(t, fake.objects, "books/gone.jpg")
}

func TestS3_DestroyError(t *testing.T) {
	fake := newFakeS3()
	fake.objects["books/x.png"] = pngBytes
	fake.deleteErr = errors.New("access denied")
	host := newS3(fake, S3Config{Bucket: "covers", Region: "us-east-1", Prefix: "books"}, testDecoder())

	assert.Error(t, host.Destroy(context.Background(), "x"))
	assert.Error(t, host.Destroy(context.Background(), "../x"))
}

func TestS3_PublicBase(t *testing.T) {
	assert.Equal(t, "https://covers.s3.us-east-1.amazonaws.com",
		publicBase(S3Config{Bucket: "covers", Region: "us-east-1"}))
	assert.Equal(t, "http://127.0.0.1:9000/covers",
		publicBase(S3Config{Bucket: "covers", Endpoint: "http://127.0.0.1:9000/"}))
	assert.Equal(t, "https://cdn.example.com",
		publicBase(S3Config{Bucket: "covers", PublicURL: "https://cdn.example.com/"}))
}

func TestS3_Owns(t *testing.T) {
	host := newS3(newFakeS3(), S3Config{Bucket: "covers", Region: "us-east-1", Prefix: "books"}, testDecoder())

	assert.True(t, host.Owns("https://covers.s3.us-east-1.amazonaws.com/books/abc.png"))
	assert.False(t, host.Owns("https://covers.s3.us-east-1.amazonaws.com/other/abc.png"))
	assert.False(t, host.Owns("http://localhost:8080/uploads/abc.png"))
}
