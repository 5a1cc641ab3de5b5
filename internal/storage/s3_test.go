package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
)

// fakeAPI implements API over an in-memory map.
type fakeAPI struct {
	objects map[string][]byte
	getErr  error
	putErr  error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{objects: make(map[string][]byte)}
}

func (f *fakeAPI) PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.StringValue(input.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.StringValue(input.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func newTestBucket(t *testing.T, api API) *Bucket {
	t.Helper()
	b, err := NewBucket(BucketOpts{
		Endpoint: "storage.example.net",
		Region:   "eu-central-1",
		Bucket:   "podcasts",
		API:      api,
	})
	if err != nil {
		t.Fatalf("new bucket: %v", err)
	}
	return b
}

func TestNewBucket_Validation(t *testing.T) {
	if _, err := NewBucket(BucketOpts{Endpoint: "x"}); err == nil {
		t.Fatal("expected error for missing bucket")
	}
	if _, err := NewBucket(BucketOpts{Bucket: "x"}); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	api := newFakeAPI()
	b := newTestBucket(t, api)

	if err := b.Put(context.Background(), "alice/metadata.mp", []byte("blob")); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, err := b.Get(context.Background(), "alice/metadata.mp")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != "blob" {
		t.Errorf("got %q", data)
	}
}

func TestGet_MissingKeyIsNotFound(t *testing.T) {
	b := newTestBucket(t, newFakeAPI())

	_, err := b.Get(context.Background(), "nobody/metadata.mp")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestGet_OtherErrorIsNotNotFound(t *testing.T) {
	api := newFakeAPI()
	api.getErr = awserr.New("AccessDenied", "denied", nil)
	b := newTestBucket(t, api)

	_, err := b.Get(context.Background(), "alice/metadata.mp")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("access denied must not map to ErrNotFound")
	}
}

func TestPutFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episode.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	api := newFakeAPI()
	b := newTestBucket(t, api)

	if err := b.PutFile(context.Background(), "alice/audio/ep1.mp3", path); err != nil {
		t.Fatalf("put file: %v", err)
	}
	if string(api.objects["alice/audio/ep1.mp3"]) != "audio" {
		t.Errorf("stored %q", api.objects["alice/audio/ep1.mp3"])
	}
}

func TestPutFile_MissingLocalFile(t *testing.T) {
	b := newTestBucket(t, newFakeAPI())
	if err := b.PutFile(context.Background(), "k", filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing local file")
	}
}

func TestPublicURL(t *testing.T) {
	cases := []struct {
		endpoint string
		want     string
	}{
		{"storage.example.net", "https://storage.example.net/podcasts/alice/feed.xml"},
		{"https://storage.example.net", "https://storage.example.net/podcasts/alice/feed.xml"},
	}
	for _, tc := range cases {
		b, err := NewBucket(BucketOpts{Endpoint: tc.endpoint, Bucket: "podcasts", API: newFakeAPI()})
		if err != nil {
			t.Fatal(err)
		}
		if got := b.PublicURL("alice/feed.xml"); got != tc.want {
			t.Errorf("PublicURL(%s) = %s, want %s", tc.endpoint, got, tc.want)
		}
	}
}
