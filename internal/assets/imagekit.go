// Package assets stores product images in ImageKit.
package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/fairyhunter13/product-catalog-service/internal/catalog"
	"github.com/fairyhunter13/product-catalog-service/internal/model"
)

const (
	DefaultUploadURL = "https://upload.imagekit.io"
	DefaultAPIURL    = "https://api.imagekit.io"
)

// Config holds ImageKit credentials and endpoints.
type Config struct {
	PublicKey   string
	PrivateKey  string
	URLEndpoint string
	UploadURL   string
	APIURL      string
	Folder      string
	Timeout     time.Duration
}

// ImageKit implements catalog.AssetStore over the ImageKit REST API.
type ImageKit struct {
	cfg    Config
	client *http.Client
}

// NewImageKit returns a client for cfg. A nil client uses one bounded by cfg.Timeout.
func NewImageKit(cfg Config, client *http.Client) (*ImageKit, error) {
	if cfg.PrivateKey == "" {
		return nil, errors.New("imagekit: private key is required")
	}
	if cfg.UploadURL == "" {
		cfg.UploadURL = DefaultUploadURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.UploadURL = strings.TrimRight(cfg.UploadURL, "/")
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &ImageKit{cfg: cfg, client: client}, nil
}

type uploadResponse struct {
	FileID       string `json:"fileId"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

type apiError struct {
	Message string `json:"message"`
}

// Upload stores blob under the configured folder with a unique file name.
func (k *ImageKit) Upload(ctx context.Context, blob model.Blob) (model.Image, error) {
	body, contentType, err := k.uploadForm(blob)
	if err != nil {
		return model.Image{}, errors.Wrap(err, "build upload form")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.cfg.UploadURL+"/api/v1/files/upload", body)
	if err != nil {
		return model.Image{}, errors.Wrap(err, "new upload request")
	}
	req.Header.Set("Content-Type", contentType)
	req.SetBasicAuth(k.cfg.PrivateKey, "")

	resp, err := k.client.Do(req)
	if err != nil {
		return model.Image{}, errors.Wrap(err, "imagekit upload")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.Image{}, statusError("imagekit upload", resp)
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.Image{}, errors.Wrap(err, "decode upload response")
	}
	if out.FileID == "" || out.URL == "" {
		return model.Image{}, errors.New("imagekit upload: response lacks fileId or url")
	}
	thumb := out.ThumbnailURL
	if thumb == "" {
		thumb = out.URL
	}
	return model.Image{URL: out.URL, Thumbnail: thumb, FileID: out.FileID}, nil
}

// Delete removes fileID. An unknown file yields catalog.ErrNoAsset.
func (k *ImageKit) Delete(ctx context.Context, fileID string) error {
	if fileID == "" {
		return catalog.ErrNoAsset
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, k.cfg.APIURL+"/v1/files/"+url.PathEscape(fileID), nil)
	if err != nil {
		return errors.Wrap(err, "new delete request")
	}
	req.SetBasicAuth(k.cfg.PrivateKey, "")

	resp, err := k.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "imagekit delete")
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case http.StatusNotFound:
		return errors.Wrapf(catalog.ErrNoAsset, "file %s", fileID)
	default:
		return statusError("imagekit delete", resp)
	}
}

func (k *ImageKit) uploadForm(blob model.Blob) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := blob.Name
	if name == "" {
		name = "image"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+escapeQuotes(name)+`"`)
	ct := blob.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(blob.Data); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"fileName", name},
		{"useUniqueFileName", "true"},
	}
	if k.cfg.Folder != "" {
		fields = append(fields, [2]string{"folder", k.cfg.Folder})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func statusError(op string, resp *http.Response) error {
	var e apiError
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if json.Unmarshal(raw, &e) == nil && e.Message != "" {
		return errors.Errorf("%s: status %d: %s", op, resp.StatusCode, e.Message)
	}
	return errors.Errorf("%s: status %d", op, resp.StatusCode)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
