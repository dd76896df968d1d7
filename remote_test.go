package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type fakeObject struct {
	body     []byte
	metadata map[string]string
	sse      types.ServerSideEncryption
	modified time.Time
}

// fakeS3 is an in-memory s3API
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string]fakeObject
	putErrs  []error // returned by successive PutObject calls before succeeding
	putCalls int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]fakeObject{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.putCalls++
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		return nil, err
	}

	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = fakeObject{
		body:     body,
		metadata: in.Metadata,
		sse:      in.ServerSideEncryption,
		modified: time.Now(),
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{
		Body:     io.NopCloser(bytes.NewReader(obj.body)),
		Metadata: obj.metadata,
	}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.body))),
		Metadata:      obj.metadata,
	}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := aws.ToString(in.Prefix)
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		obj := f.objects[k]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(obj.body))),
			LastModified: aws.Time(obj.modified),
		})
	}
	return out, nil
}

func newTestS3Store(prefix, sse string) (*S3Store, *fakeS3) {
	fake := newFakeS3()
	return &S3Store{client: fake, bucket: "test-bucket", prefix: prefix, sse: sse}, fake
}

func shrinkRetryDelay(t *testing.T) {
	t.Helper()
	orig := retryBaseDelay
	retryBaseDelay = time.Millisecond
	t.Cleanup(func() { retryBaseDelay = orig })
}

func TestS3StoreKey(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"csvlock/", "csvlock/contacts.csv.enc"},
		{"csvlock", "csvlock/contacts.csv.enc"},
		{"", "contacts.csv.enc"},
		{"team/secrets/", "team/secrets/contacts.csv.enc"},
	}

	for _, tt := range tests {
		store := &S3Store{prefix: tt.prefix}
		if got := store.key("contacts.csv.enc"); got != tt.want {
			t.Errorf("key with prefix %q = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}

func TestS3StorePutGet(t *testing.T) {
	store, fake := newTestS3Store("csvlock/", "AES256")
	ctx := context.Background()

	blob := []byte("sealed")
	if err := store.Put(ctx, "contacts.csv.enc", blob, map[string]string{"hostname": "laptop"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	obj, ok := fake.objects["csvlock/contacts.csv.enc"]
	if !ok {
		t.Fatalf("object not stored under prefixed key; have %v", fake.objects)
	}
	if obj.sse != types.ServerSideEncryptionAes256 {
		t.Errorf("expected AES256 SSE, got %q", obj.sse)
	}
	if obj.metadata["format"] != formatTag {
		t.Errorf("format metadata = %q", obj.metadata["format"])
	}
	if obj.metadata["size"] != "6" {
		t.Errorf("size metadata = %q", obj.metadata["size"])
	}
	if obj.metadata["hostname"] != "laptop" {
		t.Errorf("caller metadata not kept: %v", obj.metadata)
	}

	got, meta, err := store.Get(ctx, "contacts.csv.enc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, blob) {
		t.Errorf("got %q, want %q", got, blob)
	}
	if meta["hostname"] != "laptop" {
		t.Errorf("meta = %v", meta)
	}
}

func TestS3StorePutKMS(t *testing.T) {
	store, fake := newTestS3Store("", "aws:kms")
	if err := store.Put(context.Background(), "x.enc", []byte("x"), nil); err != nil {
		t.Fatal(err)
	}
	if fake.objects["x.enc"].sse != types.ServerSideEncryptionAwsKms {
		t.Errorf("expected aws:kms SSE, got %q", fake.objects["x.enc"].sse)
	}
}

func TestS3StorePutRetriesTransientErrors(t *testing.T) {
	shrinkRetryDelay(t)
	store, fake := newTestS3Store("", "")
	fake.putErrs = []error{errors.New("connection reset"), errors.New("timeout")}

	if err := store.Put(context.Background(), "x.enc", []byte("x"), nil); err != nil {
		t.Fatalf("Put should succeed on third attempt: %v", err)
	}
	if fake.putCalls != 3 {
		t.Errorf("expected 3 calls, got %d", fake.putCalls)
	}
}

func TestS3StorePutPermanentError(t *testing.T) {
	shrinkRetryDelay(t)
	store, fake := newTestS3Store("", "")
	fake.putErrs = []error{&smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}}

	err := store.Put(context.Background(), "x.enc", []byte("x"), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if fake.putCalls != 1 {
		t.Errorf("permanent error should not be retried, got %d calls", fake.putCalls)
	}
}

func TestS3StoreGetMissing(t *testing.T) {
	shrinkRetryDelay(t)
	store, _ := newTestS3Store("csvlock/", "")

	_, _, err := store.Get(context.Background(), "missing.enc")
	if err == nil || !strings.Contains(err.Error(), `"missing.enc" not found in s3://test-bucket/csvlock/`) {
		t.Errorf("expected friendly not found error, got %v", err)
	}
}

func TestS3StoreList(t *testing.T) {
	store, fake := newTestS3Store("csvlock", "")
	ctx := context.Background()

	_ = store.Put(ctx, "a.enc", []byte("1"), nil)
	_ = store.Put(ctx, "b.enc", []byte("22"), nil)
	fake.objects["csvlock/nested/c.enc"] = fakeObject{body: []byte("3")}
	fake.objects["csvlock-other/d.enc"] = fakeObject{body: []byte("4")}
	fake.objects["csvlock/"] = fakeObject{}

	objects, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	var names []string
	for _, o := range objects {
		names = append(names, o.Name)
	}
	if strings.Join(names, ",") != "a.enc,b.enc" {
		t.Errorf("unexpected names: %v", names)
	}
	if objects[1].Size != 2 {
		t.Errorf("b.enc size = %d", objects[1].Size)
	}
}

func TestS3StoreDelete(t *testing.T) {
	store, fake := newTestS3Store("p/", "")
	ctx := context.Background()

	_ = store.Put(ctx, "a.enc", []byte("1"), nil)
	if err := store.Delete(ctx, "a.enc"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := fake.objects["p/a.enc"]; ok {
		t.Error("object should be deleted")
	}
}

func TestS3StoreDeleteMissing(t *testing.T) {
	shrinkRetryDelay(t)
	store, fake := newTestS3Store("csvlock/", "")
	fake.objects["csvlock/kept.enc"] = fakeObject{body: []byte("x")}

	err := store.Delete(context.Background(), "never-pushed.enc")
	if err == nil || !strings.Contains(err.Error(), `"never-pushed.enc" not found in s3://test-bucket/csvlock/`) {
		t.Errorf("expected not found error, got %v", err)
	}
	if _, ok := fake.objects["csvlock/kept.enc"]; !ok {
		t.Error("other objects must be untouched")
	}
}

func TestRemoteStoresAgreeOnMissingDelete(t *testing.T) {
	shrinkRetryDelay(t)
	s3Store, _ := newTestS3Store("", "")
	localStore, err := newLocalStore(&LocalConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}

	for name, store := range map[string]RemoteStore{"s3": s3Store, "local": localStore} {
		err := store.Delete(context.Background(), "typo.enc")
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("%s: deleting a missing object should fail with not found, got %v", name, err)
		}
	}
}

func TestS3StoreRejectsBadNames(t *testing.T) {
	store, fake := newTestS3Store("csvlock/", "")
	if err := store.Put(context.Background(), "../x", []byte("x"), nil); !IsValidationError(err) {
		t.Errorf("expected ValidationError, got %v", err)
	}
	if fake.putCalls != 0 {
		t.Error("invalid name should not reach S3")
	}
}

func TestIsPermanentS3Error(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"plain error", errors.New("boom"), false},
		{"access denied", &smithy.GenericAPIError{Code: "AccessDenied"}, true},
		{"no such bucket", &smithy.GenericAPIError{Code: "NoSuchBucket"}, true},
		{"throttled", &smithy.GenericAPIError{Code: "SlowDown"}, false},
		{"no such key type", &types.NoSuchKey{}, true},
		{"head not found", &types.NotFound{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPermanentS3Error(tt.err); got != tt.want {
				t.Errorf("isPermanentS3Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRetryWithBackoffExhausted(t *testing.T) {
	shrinkRetryDelay(t)
	calls := 0
	transient := errors.New("transient")

	err := retryWithBackoff(context.Background(), 3, func() error {
		calls++
		return transient
	})
	if !errors.Is(err, transient) {
		t.Errorf("expected wrapped transient error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoffContextCancelled(t *testing.T) {
	orig := retryBaseDelay
	retryBaseDelay = time.Hour
	defer func() { retryBaseDelay = orig }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := retryWithBackoff(ctx, 3, func() error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestNewRemoteStoreFromConfigNoBackend(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	_, err := newRemoteStoreFromConfig(cfg)
	if err == nil || !strings.Contains(err.Error(), "csvlock init") {
		t.Errorf("expected hint to run csvlock init, got %v", err)
	}
}

func TestNewRemoteStoreFromConfigLocal(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Remote: &RemoteConfig{Backend: "local", Local: &LocalConfig{Path: dir}}}

	store, err := newRemoteStoreFromConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*LocalStore); !ok {
		t.Errorf("expected *LocalStore, got %T", store)
	}
}

func TestValidateObjectName(t *testing.T) {
	valid := []string{"contacts.csv.enc", "a", "with space.enc", ".hidden.enc"}
	for _, name := range valid {
		if err := validateObjectName(name); err != nil {
			t.Errorf("validateObjectName(%q) unexpected error: %v", name, err)
		}
	}
	invalid := []string{"", ".", "..", "a/b", `a\b`}
	for _, name := range invalid {
		if err := validateObjectName(name); err == nil {
			t.Errorf("validateObjectName(%q) should fail", name)
		}
	}
}

func TestFormatAge(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want string
	}{
		{30 * time.Second, "s ago"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{72 * time.Hour, "3d ago"},
	}

	for _, tt := range tests {
		got := formatAge(time.Now().Add(-tt.age))
		if !strings.HasSuffix(got, tt.want) {
			t.Errorf("formatAge(-%s) = %q, want suffix %q", tt.age, got, tt.want)
		}
	}
}
