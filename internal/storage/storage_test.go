package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	if in.Body != nil {
		b, _ := io.ReadAll(in.Body)
		f.body = string(b)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3StoreUpload(t *testing.T) {
	client := &fakeS3{}
	store := NewS3Store(client, "pos-images", "", "")

	url, err := store.Upload(context.Background(), "products/1/a.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "https://pos-images.s3.amazonaws.com/products/1/a.png", url)
	assert.Equal(t, "pos-images", aws.ToString(client.input.Bucket))
	assert.Equal(t, "products/1/a.png", aws.ToString(client.input.Key))
	assert.Equal(t, "image/png", aws.ToString(client.input.ContentType))
	assert.Equal(t, "png-bytes", client.body)
}

func TestS3StoreUploadError(t *testing.T) {
	store := NewS3Store(&fakeS3{err: errors.New("denied")}, "b", "", "")

	_, err := store.Upload(context.Background(), "k", "image/png", strings.NewReader("x"))
	assert.ErrorContains(t, err, "denied")
}

func TestS3StoreURL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		public   string
		want     string
	}{
		{"default", "", "", "https://b.s3.amazonaws.com/k.png"},
		{"endpoint", "http://localhost:4566/", "", "http://localhost:4566/b/k.png"},
		{"public base wins", "http://localhost:4566", "https://cdn.example.com/", "https://cdn.example.com/k.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewS3Store(&fakeS3{}, "b", tt.endpoint, tt.public)
			assert.Equal(t, tt.want, store.URL("k.png"))
		})
	}
}

func TestNoopStore(t *testing.T) {
	_, err := NoopStore{}.Upload(context.Background(), "k", "image/png", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrStorageDisabled)
}
