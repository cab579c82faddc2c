package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string]string
	lastPut *s3.PutObjectInput
	failPut error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.failPut != nil {
		return nil, f.failPut
	}
	if _, exists := f.objects[aws.ToString(in.Key)]; exists && aws.ToString(in.IfNoneMatch) == "*" {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.lastPut = in
	f.objects[aws.ToString(in.Key)] = string(body)
	return &s3.PutObjectOutput{ETag: aws.String(`"etag"`)}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("text/plain"),
	}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Storage_RoundTrip(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}}
	s := &s3Storage{client: fake, bucket: "portal"}
	ctx := context.Background()

	info, err := s.Put(ctx, "1.txt", strings.NewReader("hello"), PutObjectOptions{Size: 5, ContentType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, `"etag"`, info.ETag)
	assert.Equal(t, "portal", aws.ToString(fake.lastPut.Bucket))
	assert.Equal(t, int64(5), aws.ToInt64(fake.lastPut.ContentLength))

	rc, got, err := s.Get(ctx, "1.txt")
	require.NoError(t, err)
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	assert.Equal(t, "hello", string(body))
	assert.Equal(t, int64(5), got.Size)

	require.NoError(t, s.Delete(ctx, "1.txt"))
	_, _, err = s.Get(ctx, "1.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestS3Storage_PutUnknownSizeOmitsLength(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}}
	s := &s3Storage{client: fake, bucket: "portal"}

	_, err := s.Put(context.Background(), "2.bin", strings.NewReader("x"), PutObjectOptions{Size: -1})
	require.NoError(t, err)
	assert.Nil(t, fake.lastPut.ContentLength)
}

func TestS3Storage_PutError(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}, failPut: errors.New("access denied")}
	s := &s3Storage{client: fake, bucket: "portal"}

	_, err := s.Put(context.Background(), "3.bin", strings.NewReader("x"), PutObjectOptions{Size: 1})
	assert.ErrorContains(t, err, "access denied")
}

func TestS3Storage_PutNoOverwrite(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"1.png": "old"}}
	s := &s3Storage{client: fake, bucket: "portal"}
	ctx := context.Background()

	_, err := s.Put(ctx, "1.png", strings.NewReader("new"), PutObjectOptions{Size: 3, NoOverwrite: true})
	assert.ErrorIs(t, err, ErrObjectExists)
	assert.Equal(t, "old", fake.objects["1.png"])

	_, err = s.Put(ctx, "2.png", strings.NewReader("new"), PutObjectOptions{Size: 3, NoOverwrite: true})
	require.NoError(t, err)
	assert.Equal(t, "*", aws.ToString(fake.lastPut.IfNoneMatch))
	assert.Equal(t, "new", fake.objects["2.png"])
}
