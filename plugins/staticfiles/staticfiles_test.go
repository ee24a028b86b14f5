package staticfiles

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jequi/internal/jqhttp"
)

// newTestdir lays out spec.md §8 scenario 6's fixture: test/index.html,
// test/file, test/noperm (mode 000), and a not-found body outside the root.
func newTestdir(t *testing.T) (root, notFoundPath string) {
	t.Helper()
	root = t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<html>home</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "file"), []byte("file contents"), 0o644))

	noperm := filepath.Join(root, "noperm")
	require.NoError(t, os.WriteFile(noperm, []byte("secret"), 0o644))
	require.NoError(t, os.Chmod(noperm, 0o000))
	t.Cleanup(func() { os.Chmod(noperm, 0o644) })

	notFoundPath = filepath.Join(t.TempDir(), "404.html")
	require.NoError(t, os.WriteFile(notFoundPath, []byte("nothing here"), 0o644))

	return root, notFoundPath
}

func TestClampPathTraversal(t *testing.T) {
	assert.Equal(t, "file", clampPath("/file/./../../file"))
}

func TestHandleTraversalEscape(t *testing.T) {
	root, _ := newTestdir(t)
	cfg := &Config{StaticFilesPath: root}

	req := jqhttp.NewRequest()
	req.URI = jqhttp.NewURI("/file/./../../file")
	resp := jqhttp.NewResponse()

	_, err := cfg.handle(context.Background(), req, resp)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "file contents", resp.Body.String())
}

func TestHandleIndexDefault(t *testing.T) {
	root, _ := newTestdir(t)
	cfg := &Config{StaticFilesPath: root}

	req := jqhttp.NewRequest()
	req.URI = jqhttp.NewURI("/")
	resp := jqhttp.NewResponse()

	_, err := cfg.handle(context.Background(), req, resp)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "<html>home</html>", resp.Body.String())
	assert.Equal(t, "text/html", resp.GetHeader("content-type"))
}

func TestHandleInferContentTypeDisabled(t *testing.T) {
	root, _ := newTestdir(t)
	disabled := false
	cfg := &Config{StaticFilesPath: root, InferContentTypeFlag: &disabled}

	req := jqhttp.NewRequest()
	req.URI = jqhttp.NewURI("/")
	resp := jqhttp.NewResponse()

	_, err := cfg.handle(context.Background(), req, resp)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "", resp.GetHeader("content-type"))
}

func TestHandleNoPermission(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root ignores file permission bits")
	}
	root, _ := newTestdir(t)
	cfg := &Config{StaticFilesPath: root}

	req := jqhttp.NewRequest()
	req.URI = jqhttp.NewURI("/noperm")
	resp := jqhttp.NewResponse()

	_, err := cfg.handle(context.Background(), req, resp)
	require.NoError(t, err)
	assert.Equal(t, 403, resp.Status)
}

func TestHandleNotFoundWithBody(t *testing.T) {
	root, notFoundPath := newTestdir(t)
	cfg := &Config{StaticFilesPath: root, NotFoundPath: notFoundPath}

	req := jqhttp.NewRequest()
	req.URI = jqhttp.NewURI("/notfound")
	resp := jqhttp.NewResponse()

	_, err := cfg.handle(context.Background(), req, resp)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.Status)
	assert.Equal(t, "nothing here", resp.Body.String())
}
