package artifacts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/pspace/internal/apitest"
	"github.com/3leaps/pspace/pkg/job"
	"github.com/3leaps/pspace/pkg/paperspace"
)

type mockAPIError struct {
	code    string
	message string
}

func (e *mockAPIError) Error() string                 { return fmt.Sprintf("%s: %s", e.code, e.message) }
func (e *mockAPIError) ErrorCode() string             { return e.code }
func (e *mockAPIError) ErrorMessage() string          { return e.message }
func (e *mockAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultUnknown }

type mockPutter struct {
	objects map[string][]byte
	err     error
}

func (m *mockPutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if int64(len(b)) != aws.ToInt64(in.ContentLength) {
		return nil, errors.New("content length mismatch")
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func TestCleanName(t *testing.T) {
	good := map[string]string{
		"model.h5":          "model.h5",
		"out/./a.txt":       "out/a.txt",
		"out\\b.txt":        "out/b.txt",
		"out/../c.txt":      "c.txt",
		" spaced/name.txt ": "spaced/name.txt",
	}
	for in, want := range good {
		got, err := CleanName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "/etc/passwd", "..", "../x", "a/../../x", "."} {
		_, err := CleanName(in)
		assert.ErrorIs(t, err, ErrUnsafeName, in)
	}
}

func TestParseDestination(t *testing.T) {
	d, err := ParseDestination("data", "j1")
	require.NoError(t, err)
	assert.False(t, d.IsS3())
	assert.Equal(t, filepath.Join("data", "j1"), d.Dir)

	d, err = ParseDestination("s3://bucket/runs/", "j1")
	require.NoError(t, err)
	assert.True(t, d.IsS3())
	assert.Equal(t, "bucket", d.Bucket)
	assert.Equal(t, "runs/j1/", d.Prefix)

	d, err = ParseDestination("s3://bucket", "j1")
	require.NoError(t, err)
	assert.Equal(t, "j1/", d.Prefix)

	_, err = ParseDestination("s3:///x", "j1")
	assert.Error(t, err)
	_, err = ParseDestination("", "j1")
	assert.Error(t, err)
	_, err = ParseDestination("data", "")
	assert.Error(t, err)
}

func TestLocalSink_Put(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "j1")
	sink := &LocalSink{Dir: dir}

	require.NoError(t, sink.Put(context.Background(), "nested/out.txt", bytes.NewReader([]byte("hello")), 5))
	b, err := os.ReadFile(filepath.Join(dir, "nested", "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	err = sink.Put(context.Background(), "../escape.txt", bytes.NewReader(nil), 0)
	assert.ErrorIs(t, err, ErrUnsafeName)
}

func TestS3Sink_Put(t *testing.T) {
	m := &mockPutter{}
	sink := newS3Sink(m, "bucket", "runs/j1")
	assert.Equal(t, "s3://bucket/runs/j1/", sink.Location())

	require.NoError(t, sink.Put(context.Background(), "model.h5", bytes.NewReader([]byte("w")), 1))
	assert.Equal(t, []byte("w"), m.objects["bucket/runs/j1/model.h5"])
}

func TestS3Sink_WrapError(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"AccessDenied", ErrAccessDenied},
		{"NoSuchBucket", ErrBucketNotFound},
		{"InvalidAccessKeyId", ErrInvalidCredentials},
		{"SlowDown", ErrThrottled},
		{"ServiceUnavailable", ErrUnavailable},
	}
	for _, tt := range tests {
		sink := newS3Sink(&mockPutter{err: &mockAPIError{code: tt.code, message: "x"}}, "bucket", "")
		err := sink.Put(context.Background(), "a", bytes.NewReader(nil), 0)
		assert.ErrorIs(t, err, tt.want, tt.code)

		var se *StorageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "a", se.Key)
	}
}

func TestS3Config_Validate(t *testing.T) {
	assert.Error(t, (&S3Config{}).Validate())
	assert.NoError(t, (&S3Config{Bucket: "b"}).Validate())
	err := (&S3Config{Bucket: "b", AccessKeyID: "id"}).Validate()
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
}

func TestResolveRegion(t *testing.T) {
	assert.Equal(t, "eu-west-1", resolveRegion("", "eu-west-1"))
	assert.Equal(t, DefaultAWSRegion, resolveRegion("", ""))
	assert.Equal(t, "", resolveRegion("http://localhost:9000", ""))
}

func TestFetch_LocalWithLog(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.AddJob(job.Record{ID: "j1", State: job.StateStopped})
	srv.AddArtifact("j1", "model.h5", []byte("weights"))
	srv.AddArtifact("j1", "metrics.json", []byte(`{"acc":0.9}`))
	srv.AppendLogs("j1", "epoch 1", "epoch 2", "PSEOF")
	srv.SetPageLimit(2)

	client, err := paperspace.New(paperspace.Config{
		APIKey:    apitest.APIKey,
		APIURL:    srv.URL,
		LogsURL:   srv.URL,
		RateLimit: -1,
	})
	require.NoError(t, err)

	dest, err := ParseDestination(t.TempDir(), "j1")
	require.NoError(t, err)

	sum, err := Fetch(context.Background(), client, "j1", &LocalSink{Dir: dest.Dir}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Files)
	assert.Equal(t, int64(len("weights")+len(`{"acc":0.9}`)), sum.Bytes)
	assert.Equal(t, 3, sum.LogLines)

	b, err := os.ReadFile(filepath.Join(dest.Dir, "model.h5"))
	require.NoError(t, err)
	assert.Equal(t, "weights", string(b))

	b, err = os.ReadFile(filepath.Join(dest.Dir, LogFileName))
	require.NoError(t, err)
	assert.Equal(t, "epoch 1\nepoch 2\nPSEOF\n", string(b))
}

func TestFetch_ToS3(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.AddJob(job.Record{ID: "j1", State: job.StateStopped})
	srv.AddArtifact("j1", "out.txt", []byte("done"))

	client, err := paperspace.New(paperspace.Config{APIKey: apitest.APIKey, APIURL: srv.URL, LogsURL: srv.URL, RateLimit: -1})
	require.NoError(t, err)

	m := &mockPutter{}
	sum, err := Fetch(context.Background(), client, "j1", newS3Sink(m, "bucket", "runs/j1/"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Files)
	assert.Equal(t, []byte("done"), m.objects["bucket/runs/j1/out.txt"])
	assert.Equal(t, []byte(""), m.objects["bucket/runs/j1/log.txt"])
}

func TestFetch_ListError(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	client, err := paperspace.New(paperspace.Config{APIKey: "bad", APIURL: srv.URL, LogsURL: srv.URL, RateLimit: -1})
	require.NoError(t, err)

	_, err = Fetch(context.Background(), client, "j1", &LocalSink{Dir: t.TempDir()}, nil)
	assert.True(t, paperspace.IsRemote(err))
}

func TestLoadAWSConfig_StaticCredentials(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_PROFILE", "")

	awsCfg, err := loadAWSConfig(context.Background(), S3Config{
		Bucket:          "b",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
	})
	require.NoError(t, err)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIDEXAMPLE", creds.AccessKeyID)
	assert.Equal(t, "secret", creds.SecretAccessKey)
}
