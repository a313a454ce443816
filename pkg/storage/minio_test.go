package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// s3Stub answers the minimal object API surface Fetch touches, recording
// every request method so tests can assert which calls were made.
type s3Stub struct {
	mu       sync.Mutex
	objects  map[string][]byte
	requests []string
}

func newS3Stub() *s3Stub {
	return &s3Stub{objects: make(map[string][]byte)}
}

func (s *s3Stub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	data, ok := s.objects[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
	w.Header().Set("ETag", `"stub-etag"`)

	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (s *s3Stub) methods() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	methods := make([]string, 0, len(s.requests))
	for _, request := range s.requests {
		methods = append(methods, strings.Fields(request)[0])
	}
	return methods
}

func newStubStore(t *testing.T, stub *s3Stub) *MinioStore {
	t.Helper()

	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	client, err := minio.New(strings.TrimPrefix(server.URL, "http://"), &minio.Options{
		Creds:  credentials.NewStaticV4("stub-access", "stub-secret", ""),
		Secure: false,
		Region: "us-east-1",
	})
	require.NoError(t, err)

	return &MinioStore{client: client, logger: zerolog.Nop()}
}

func TestFetchDownloadsAfterStat(t *testing.T) {
	stub := newS3Stub()
	stub.objects["/submissions/owner/essay.txt"] = []byte("the essay body")
	store := newStubStore(t, stub)

	data, err := store.Fetch(context.Background(), "submissions", "owner/essay.txt", 1024)
	require.NoError(t, err)
	require.Equal(t, []byte("the essay body"), data)
	require.Equal(t, []string{http.MethodHead, http.MethodGet}, stub.methods())
}

func TestFetchOversizedObjectNeverDownloads(t *testing.T) {
	stub := newS3Stub()
	stub.objects["/submissions/owner/huge.txt"] = []byte(strings.Repeat("x", 256))
	store := newStubStore(t, stub)

	_, err := store.Fetch(context.Background(), "submissions", "owner/huge.txt", 64)
	require.ErrorIs(t, err, ErrObjectTooLarge)
	require.Equal(t, []string{http.MethodHead}, stub.methods())
}

func TestFetchMissingObject(t *testing.T) {
	stub := newS3Stub()
	store := newStubStore(t, stub)

	_, err := store.Fetch(context.Background(), "submissions", "owner/absent.txt", 64)
	require.ErrorIs(t, err, ErrObjectNotFound)
	require.Equal(t, []string{http.MethodHead}, stub.methods())
}
