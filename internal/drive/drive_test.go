package drive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(), "", "",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return c
}

func TestNewClientNeedsCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), "", "")
	require.Error(t, err)
}

func TestSearchExcludesFolders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/files"), r.URL.Path)
		require.Equal(t, "mimeType!='application/vnd.google-apps.folder' and (name contains 'report')", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"files":[{"id":"f1","name":"Q3 report","mimeType":"application/vnd.google-apps.document"}]}`))
	})

	files, err := c.Search(context.Background(), "name contains 'report'")
	require.NoError(t, err)
	require.Equal(t, []File{{ID: "f1", Name: "Q3 report", MimeType: "application/vnd.google-apps.document"}}, files)
}

func TestReadExportsPlainText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/files/f1/export"), r.URL.Path)
		require.Equal(t, "text/plain", r.URL.Query().Get("mimeType"))
		_, _ = w.Write([]byte("Meeting notes"))
	})

	text, err := c.Read(context.Background(), "f1")
	require.NoError(t, err)
	require.Equal(t, "Meeting notes", text)
}

func TestReadRequiresID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	_, err := c.Read(context.Background(), "")
	require.Error(t, err)
}

func TestSearchKeepsFolderFilterAroundOr(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t,
			"mimeType!='application/vnd.google-apps.folder' and (name contains 'a' or name contains 'b')",
			r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"files":[]}`))
	})

	files, err := c.Search(context.Background(), "name contains 'a' or name contains 'b'")
	require.NoError(t, err)
	require.Empty(t, files)
}
