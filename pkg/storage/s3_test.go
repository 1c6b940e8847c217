package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects     map[string][]byte
	metadata    map[string]map[string]string
	headErr     error
	putErr      error
	createCalls int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, metadata: map[string]map[string]string{}}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, _ := io.ReadAll(in.Body)
	f.objects[*in.Key] = data
	f.metadata[*in.Key] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	f.createCalls++
	f.headErr = nil
	return &s3.CreateBucketOutput{}, nil
}

type fakePresigner struct {
	lastTTL time.Duration
}

func (p *fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	opts := &s3.PresignOptions{}
	for _, fn := range optFns {
		fn(opts)
	}
	p.lastTTL = opts.Expires
	return &v4.PresignedHTTPRequest{URL: "https://bucket.s3.example.com/" + *in.Key + "?X-Amz-Signature=abc"}, nil
}

func TestS3Store_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := newS3Store(fake, &fakePresigner{}, "buildpro-docs")

	n, err := store.Put(ctx, "orgs/o/projects/p/k-plan.pdf", bytes.NewReader([]byte("hello")), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		fake.metadata["orgs/o/projects/p/k-plan.pdf"]["checksum-sha256"])

	data, err := store.Get(ctx, "orgs/o/projects/p/k-plan.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	require.NoError(t, store.Delete(ctx, "orgs/o/projects/p/k-plan.pdf"))
	_, err = store.Get(ctx, "orgs/o/projects/p/k-plan.pdf")
	assert.ErrorIs(t, err, ErrBlobNotFound)
}

func TestS3Store_PutError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("access denied")
	store := newS3Store(fake, &fakePresigner{}, "b")

	_, err := store.Put(context.Background(), "k", bytes.NewReader([]byte("x")), "text/plain")
	assert.ErrorContains(t, err, "failed to upload to s3")
}

func TestS3Store_PresignedURL(t *testing.T) {
	presigner := &fakePresigner{}
	store := newS3Store(newFakeS3(), presigner, "b")

	url, err := store.PresignedURL(context.Background(), "k", 10*time.Minute)
	require.NoError(t, err)
	assert.Contains(t, url, "X-Amz-Signature")
	assert.Equal(t, 10*time.Minute, presigner.lastTTL)
}

func TestS3Store_HealthCheck(t *testing.T) {
	fake := newFakeS3()
	store := newS3Store(fake, &fakePresigner{}, "b")
	assert.NoError(t, store.HealthCheck(context.Background()))

	fake.headErr = errors.New("timeout")
	assert.ErrorContains(t, store.HealthCheck(context.Background()), "s3 health check failed")
}

func TestS3Store_CreateBucketIfNotExists(t *testing.T) {
	fake := newFakeS3()
	fake.headErr = &types.NotFound{}
	store := newS3Store(fake, &fakePresigner{}, "b")

	require.NoError(t, store.createBucketIfNotExists(context.Background()))
	assert.Equal(t, 1, fake.createCalls)

	require.NoError(t, store.createBucketIfNotExists(context.Background()))
	assert.Equal(t, 1, fake.createCalls)
}

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, isNotFoundError(&types.NoSuchKey{}))
	assert.True(t, isNotFoundError(&types.NotFound{}))
	assert.True(t, isNotFoundError(errors.New("api error NotFound: Not Found")))
	assert.False(t, isNotFoundError(errors.New("access denied")))
	assert.False(t, isNotFoundError(nil))
}

func TestIsBucketAlreadyExistsError(t *testing.T) {
	assert.True(t, isBucketAlreadyExistsError(&types.BucketAlreadyOwnedByYou{}))
	assert.True(t, isBucketAlreadyExistsError(&types.BucketAlreadyExists{}))
	assert.False(t, isBucketAlreadyExistsError(errors.New("other")))
}
