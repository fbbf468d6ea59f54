package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giraffeguru/paperchat/pkg/genai"
	"github.com/giraffeguru/paperchat/pkg/papers"
)

// fakeStore implements genai.BlobStore with atomic create-if-absent,
// mirroring the remote store's conflict contract.
type fakeStore struct {
	mu            sync.Mutex
	blobs         map[string]genai.Blob
	missNextFetch bool
	creates       atomic.Int64
	fetches       atomic.Int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: make(map[string]genai.Blob)}
}

func (s *fakeStore) Fetch(_ context.Context, name string) (genai.Blob, error) {
	s.fetches.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.missNextFetch {
		s.missNextFetch = false
		return genai.Blob{}, genai.ErrNotFound
	}
	b, ok := s.blobs[name]
	if !ok {
		return genai.Blob{}, genai.ErrNotFound
	}
	return b, nil
}

func (s *fakeStore) Create(_ context.Context, name string, _ []byte, mimeType, _ string) (genai.Blob, error) {
	s.creates.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[name]; ok {
		return genai.Blob{}, genai.ErrAlreadyExists
	}
	b := genai.Blob{Name: "files/" + name, URI: "https://files/" + name, MimeType: mimeType}
	s.blobs[name] = b
	return b, nil
}

// rewriteTransport redirects every request to the test server so the
// ingester's real upstream URLs never leave the process.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

// sourceServer serves fake paper PDFs and returns an HTTP client
// pinned to it.
func sourceServer(t *testing.T, status int, body []byte) *http.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	target, _ := url.Parse(srv.URL)
	return &http.Client{Transport: rewriteTransport{target: target}}
}

func mustRef(t *testing.T) papers.Ref {
	t.Helper()
	ref, err := papers.Parse("2301.12345", papers.SourceArxiv)
	require.NoError(t, err)
	return ref
}

func TestEnsureFetchHitSkipsDownload(t *testing.T) {
	store := newFakeStore()
	store.blobs["arxiv-2301-12345"] = genai.Blob{Name: "files/arxiv-2301-12345", URI: "u"}

	in := New(store, sourceServer(t, http.StatusOK, []byte("%PDF-1.4 data")), 1<<20, "test-agent")
	res, err := in.Ensure(context.Background(), mustRef(t))
	require.NoError(t, err)
	assert.Equal(t, OutcomeFound, res.Outcome)
	assert.Equal(t, int64(0), store.creates.Load())
}

func TestEnsureDownloadsAndCreatesOnMiss(t *testing.T) {
	store := newFakeStore()
	in := New(store, sourceServer(t, http.StatusOK, []byte("%PDF-1.4 data")), 1<<20, "test-agent")

	res, err := in.Ensure(context.Background(), mustRef(t))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreatedNew, res.Outcome)
	assert.Equal(t, "files/arxiv-2301-12345", res.Blob.Name)
	assert.Equal(t, int64(1), store.creates.Load())
}

func TestEnsureRecoversFromCreateRace(t *testing.T) {
	store := newFakeStore()
	in := New(store, sourceServer(t, http.StatusOK, []byte("%PDF-1.4 data")), 1<<20, "test-agent")

	// Simulate losing the race: the initial fetch misses, but a
	// concurrent creator's blob is in place by the time Create runs.
	ref := mustRef(t)
	_, err := store.Create(context.Background(), ref.BlobName(), nil, "application/pdf", "")
	require.NoError(t, err)
	store.missNextFetch = true
	store.creates.Store(0)

	res, err := in.Ensure(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFound, res.Outcome)
	assert.Equal(t, "files/"+ref.BlobName(), res.Blob.Name)
	assert.Equal(t, int64(1), store.creates.Load(), "the losing create attempt must be counted")
}

func TestEnsureConcurrentDedup(t *testing.T) {
	store := newFakeStore()
	in := New(store, sourceServer(t, http.StatusOK, []byte("%PDF-1.4 data")), 1<<20, "test-agent")
	ref := mustRef(t)

	const n = 8
	var wg sync.WaitGroup
	results := make([]Resolution, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = in.Ensure(context.Background(), ref)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "files/"+ref.BlobName(), results[i].Blob.Name)
		if results[i].Outcome == OutcomeCreatedNew {
			created++
		}
	}
	assert.Equal(t, 1, created, "exactly one caller may win the create")
}

func TestDownloadRejectsNonPDF(t *testing.T) {
	in := New(newFakeStore(), sourceServer(t, http.StatusOK, []byte("<html>not found</html>")), 1<<20, "a")
	_, err := in.Download(context.Background(), mustRef(t))
	assert.ErrorIs(t, err, ErrUpstreamData)
}

func TestDownloadRejectsBadStatus(t *testing.T) {
	in := New(newFakeStore(), sourceServer(t, http.StatusBadGateway, nil), 1<<20, "a")
	_, err := in.Download(context.Background(), mustRef(t))
	assert.ErrorIs(t, err, ErrUpstreamData)
}

func TestDownloadRejectsOversize(t *testing.T) {
	body := append([]byte("%PDF-1.4 "), make([]byte, 256)...)
	in := New(newFakeStore(), sourceServer(t, http.StatusOK, body), 64, "a")
	_, err := in.Download(context.Background(), mustRef(t))
	assert.ErrorIs(t, err, ErrUpstreamData)
}
