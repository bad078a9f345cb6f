package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/qrprint/internal/config"
)

type fakeUploader struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeUploader) Upload(ctx context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = b
	return &manager.UploadOutput{Location: "https://example/" + aws.ToString(in.Key)}, nil
}

func TestKey(t *testing.T) {
	p := &Publisher{bucket: "b", prefix: "prints"}
	assert.Equal(t, "prints/DIMBOLI_1_10/DIMBOLI_1_10.pdf", p.Key("DIMBOLI_1_10", "/srv/output/DIMBOLI_1_10/DIMBOLI_1_10.pdf"))
	assert.Equal(t, "prints/x.zip", p.Key("", "x.zip"))

	bare := &Publisher{bucket: "b"}
	assert.Equal(t, "job/x.zip", bare.Key("/job/", "out/x.zip"))
}

func TestPublish(t *testing.T) {
	local := filepath.Join(t.TempDir(), "DIMBOLI_1_10.pdf")
	require.NoError(t, os.WriteFile(local, []byte("%PDF-1.3\n%%EOF\n"), 0o644))

	up := &fakeUploader{}
	p := &Publisher{uploader: up, bucket: "qr-bucket", prefix: "prints"}

	loc, err := p.Publish(context.Background(), "DIMBOLI_1_10", local)
	require.NoError(t, err)
	assert.Equal(t, "s3://qr-bucket/prints/DIMBOLI_1_10/DIMBOLI_1_10.pdf", loc)
	assert.Equal(t, "qr-bucket", aws.ToString(up.in.Bucket))
	assert.Equal(t, "application/pdf", aws.ToString(up.in.ContentType))
	assert.Equal(t, "DIMBOLI_1_10", up.in.Metadata["job"])
	assert.Equal(t, "%PDF-1.3\n%%EOF\n", string(up.body))
}

func TestPublish_Errors(t *testing.T) {
	p := &Publisher{uploader: &fakeUploader{err: errors.New("denied")}, bucket: "b"}

	_, err := p.Publish(context.Background(), "j", filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorContains(t, err, "open artifact")

	local := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, os.WriteFile(local, []byte("PK"), 0o644))
	_, err = p.Publish(context.Background(), "j", local)
	assert.ErrorContains(t, err, "denied")
}

func TestNewPublisher_Disabled(t *testing.T) {
	_, err := NewPublisher(context.Background(), config.S3Config{})
	assert.Error(t, err)
}

type fakeHead struct{ err error }

func (f fakeHead) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.err
}

func TestPing(t *testing.T) {
	p := &Publisher{head: fakeHead{}, bucket: "b"}
	assert.NoError(t, p.Ping(context.Background()))

	p.head = fakeHead{err: errors.New("forbidden")}
	assert.ErrorContains(t, p.Ping(context.Background()), "forbidden")
}
