package assets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/product-catalog-service/internal/catalog"
	"github.com/fairyhunter13/product-catalog-service/internal/model"
)

func newTestKit(t *testing.T, h http.HandlerFunc) *ImageKit {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	k, err := NewImageKit(Config{PrivateKey: "private_xyz", UploadURL: srv.URL, APIURL: srv.URL + "/", Folder: "/products"}, srv.Client())
	require.NoError(t, err)
	return k
}

func TestNewImageKit_RequiresPrivateKey(t *testing.T) {
	_, err := NewImageKit(Config{}, nil)
	require.Error(t, err)
}

func TestUpload_SendsMultipartForm(t *testing.T) {
	k := newTestKit(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/files/upload", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "private_xyz", user)
		require.Empty(t, pass)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "a.png", r.FormValue("fileName"))
		require.Equal(t, "/products", r.FormValue("folder"))
		require.Equal(t, "true", r.FormValue("useUniqueFileName"))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		require.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		data, _ := io.ReadAll(f)
		require.Equal(t, "pixels", string(data))

		_ = json.NewEncoder(w).Encode(map[string]string{
			"fileId":       "f-1",
			"url":          "https://ik.imagekit.io/demo/a.png",
			"thumbnailUrl": "https://ik.imagekit.io/demo/tr:n-thumb/a.png",
		})
	})

	im, err := k.Upload(context.Background(), model.Blob{Name: "a.png", ContentType: "image/png", Data: []byte("pixels")})
	require.NoError(t, err)
	require.Equal(t, model.Image{
		URL:       "https://ik.imagekit.io/demo/a.png",
		Thumbnail: "https://ik.imagekit.io/demo/tr:n-thumb/a.png",
		FileID:    "f-1",
	}, im)
}

func TestUpload_ThumbnailFallsBackToURL(t *testing.T) {
	k := newTestKit(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"fileId":"f-2","url":"https://cdn/x.webp"}`)
	})
	im, err := k.Upload(context.Background(), model.Blob{Name: "x.webp", Data: []byte{1}})
	require.NoError(t, err)
	require.Equal(t, "https://cdn/x.webp", im.Thumbnail)
}

func TestUpload_RejectedByServer(t *testing.T) {
	k := newTestKit(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"message":"Your account cannot be authenticated."}`)
	})
	_, err := k.Upload(context.Background(), model.Blob{Name: "a.png", Data: []byte{1}})
	require.ErrorContains(t, err, "status 403")
	require.ErrorContains(t, err, "cannot be authenticated")
}

func TestDelete(t *testing.T) {
	var paths []string
	k := newTestKit(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/v1/files/gone":
			w.WriteHeader(http.StatusNotFound)
		case "/v1/files/boom":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()

	require.NoError(t, k.Delete(ctx, "f-1"))
	require.ErrorIs(t, k.Delete(ctx, "gone"), catalog.ErrNoAsset)
	err := k.Delete(ctx, "boom")
	require.Error(t, err)
	require.NotErrorIs(t, err, catalog.ErrNoAsset)
	require.ErrorIs(t, k.Delete(ctx, ""), catalog.ErrNoAsset)
	require.Equal(t, []string{"/v1/files/f-1", "/v1/files/gone", "/v1/files/boom"}, paths)
}
