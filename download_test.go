package mlp_go

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requestLog Paths requested from test server
type requestLog struct {
	mu    sync.Mutex
	paths []string
}

func (l *requestLog) add(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, path)
}

func (l *requestLog) take() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	paths := l.paths
	l.paths = nil
	return paths
}

// servedFiles Replaces checksums of kind with ones of generated content for the duration of test
func servedFiles(t *testing.T, kind Kind) map[string][]byte {
	t.Helper()
	files := make(map[string][]byte)
	sums := make(map[string]string)
	for _, name := range []string{trainImagesFile, trainLabelsFile, testImagesFile, testLabelsFile} {
		files[name] = []byte("content of " + name)
		sums[name] = fmt.Sprintf("%x", md5.Sum(files[name]))
	}
	original := checksums[kind]
	checksums[kind] = sums
	t.Cleanup(func() { checksums[kind] = original })
	return files
}

func TestDownload(t *testing.T) {
	files := servedFiles(t, FashionMNIST)
	requested := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested.add(r.URL.Path)
		content, ok := files[filepath.Base(r.URL.Path)]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(content)
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "nested", "fashion")
	d := &Downloader{Client: srv.Client(), BaseURL: srv.URL + "/"}
	require.NoError(t, d.Download(context.Background(), FashionMNIST, dir))
	assert.Len(t, requested.take(), 4)
	for name, content := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Equal(t, content, data, name)
		_, statErr := os.Stat(filepath.Join(dir, name+".part"))
		assert.True(t, os.IsNotExist(statErr), "temporary file of '%s' must be renamed", name)
	}

	// Verified files are skipped
	require.NoError(t, d.Download(context.Background(), FashionMNIST, dir))
	assert.Empty(t, requested.take())

	// Corrupted file is fetched again
	require.NoError(t, os.WriteFile(filepath.Join(dir, testLabelsFile), []byte("broken"), 0644))
	require.NoError(t, d.Download(context.Background(), FashionMNIST, dir))
	assert.Equal(t, []string{"/" + testLabelsFile}, requested.take())
	data, err := os.ReadFile(filepath.Join(dir, testLabelsFile))
	require.NoError(t, err)
	assert.Equal(t, files[testLabelsFile], data)
}

func TestDownloadChecksumMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("definitely not a dataset"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := &Downloader{Client: srv.Client(), BaseURL: srv.URL + "/"}
	err := d.Download(context.Background(), MNIST, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")

	_, statErr := os.Stat(filepath.Join(dir, trainImagesFile))
	assert.True(t, os.IsNotExist(statErr), "corrupted file must be removed")
	_, statErr = os.Stat(filepath.Join(dir, trainImagesFile+".part"))
	assert.True(t, os.IsNotExist(statErr), "temporary file must be renamed")
}

func TestDownloadBadStatus(t *testing.T) {
	requested := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested.add(r.URL.Path)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d := &Downloader{Client: srv.Client(), BaseURL: srv.URL + "/"}
	err := d.Download(context.Background(), FashionMNIST, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, []string{"/" + trainImagesFile}, requested.take())
}

func TestDownloadCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("unreachable"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &Downloader{Client: srv.Client(), BaseURL: srv.URL + "/"}
	err := d.Download(ctx, MNIST, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDownloadUnknownKind(t *testing.T) {
	err := (&Downloader{}).Download(context.Background(), Kind("kmnist"), t.TempDir())
	assert.Error(t, err)
}

func TestFileMD5(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(fname, []byte("hello"), 0644))
	sum, err := fileMD5(fname)
	require.NoError(t, err)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", sum)
}
