package speechcache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// ---------------------------------------------------------------------------
// mock S3 client
// ---------------------------------------------------------------------------

// apiError implements smithy.APIError for test assertions.
type apiError struct {
	code string
	msg  string
}

func (e *apiError) Error() string                 { return e.msg }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.msg }
func (e *apiError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }

var (
	errNoSuchKey = &apiError{code: "NoSuchKey", msg: "no such key"}
	errNotFound  = &apiError{code: "NotFound", msg: "not found"}
)

// mockS3 is a thread-safe in-memory S3 backend.
type mockS3 struct {
	mu      sync.Mutex
	objects map[string][]byte

	getErr error
	putErr error
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string][]byte)}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, errNoSuchKey
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, errNotFound
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *mockS3) object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

// ---------------------------------------------------------------------------
// FileStore tests
// ---------------------------------------------------------------------------

func writeAll(t *testing.T, store FileStore, path, data string) {
	t.Helper()
	w, err := store.Write(context.Background(), path)
	if err != nil {
		t.Fatalf("Write(%q): %v", path, err)
	}
	if _, err := io.WriteString(w, data); err != nil {
		t.Fatalf("write data: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func readAll(t *testing.T, store FileStore, path string) string {
	t.Helper()
	r, err := store.Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read(%q): %v", path, err)
	}
	defer r.Close()
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read data: %v", err)
	}
	return string(got)
}

func testFileStore(t *testing.T, store FileStore) {
	ctx := context.Background()

	if _, err := store.Read(ctx, "ab/missing.pcm"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Read missing: error = %v, want os.ErrNotExist", err)
	}
	if ok, err := store.Exists(ctx, "ab/missing.pcm"); err != nil || ok {
		t.Fatalf("Exists missing = %v, %v", ok, err)
	}

	writeAll(t, store, "ab/abcd.pcm", "first")
	writeAll(t, store, "ab/abcd.pcm", "second")
	if got := readAll(t, store, "ab/abcd.pcm"); got != "second" {
		t.Fatalf("Read = %q, want %q", got, "second")
	}
	if ok, err := store.Exists(ctx, "ab/abcd.pcm"); err != nil || !ok {
		t.Fatalf("Exists = %v, %v, want true", ok, err)
	}

	if err := store.Delete(ctx, "ab/abcd.pcm"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "ab/abcd.pcm"); err != nil {
		t.Fatalf("Delete twice: %v", err)
	}
	if ok, _ := store.Exists(ctx, "ab/abcd.pcm"); ok {
		t.Fatal("Exists after Delete = true")
	}
}

func TestLocalStore(t *testing.T) {
	store, err := NewLocal(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	testFileStore(t, store)

	entries, err := os.ReadDir(filepath.Join(store.Root(), "ab"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("leftover files: %v", entries)
	}
}

func TestLocalWriteIsAtomic(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	w, err := store.Write(context.Background(), "x/y.pcm")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	io.WriteString(w, "partial")
	if ok, _ := store.Exists(context.Background(), "x/y.pcm"); ok {
		t.Fatal("artifact visible before Close")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := readAll(t, store, "x/y.pcm"); got != "partial" {
		t.Fatalf("Read = %q", got)
	}
}

func TestS3Store(t *testing.T) {
	mock := newMockS3()
	testFileStore(t, NewS3(mock, "bucket", ""))
}

func TestS3StorePrefix(t *testing.T) {
	mock := newMockS3()
	store := NewS3(mock, "bucket", "speech")
	writeAll(t, store, "ab/abcd.pcm", "data")
	if got, ok := mock.object("speech/ab/abcd.pcm"); !ok || string(got) != "data" {
		t.Fatalf("object = %q, %v", got, ok)
	}
}

func TestS3ReadOtherError(t *testing.T) {
	mock := newMockS3()
	mock.getErr = errors.New("network timeout")
	store := NewS3(mock, "bucket", "")

	_, err := store.Read(context.Background(), "x")
	if err == nil || errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Read error = %v, want a non-NotExist error", err)
	}
}

func TestS3WriteUploadError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("access denied")
	store := NewS3(mock, "bucket", "")

	w, err := store.Write(context.Background(), "x")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	w.Write([]byte("data"))
	if err := w.Close(); err == nil || err.Error() != "access denied" {
		t.Fatalf("Close error = %v, want access denied", err)
	}
}
