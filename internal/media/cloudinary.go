// Package media stores event covers and avatars in Cloudinary through its
// signed REST API.
package media

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spotevents/spot/internal/application"
)

const defaultBaseURL = "https://api.cloudinary.com/v1_1"

// Config holds Cloudinary credentials.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	// Folder prefixes every uploaded public ID when set.
	Folder string
	// BaseURL overrides the API root, mainly for tests.
	BaseURL    string
	HTTPClient *http.Client
	Now        func() time.Time
}

// Enabled reports whether all credentials are present.
func (c Config) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// Cloudinary implements application.ImageStore.
type Cloudinary struct {
	config Config
	client *http.Client
	now    func() time.Time
	logger *slog.Logger
}

// NewCloudinary returns a store, or an error when credentials are missing.
func NewCloudinary(config Config, logger *slog.Logger) (*Cloudinary, error) {
	if !config.Enabled() {
		return nil, errors.New("media: cloudinary credentials are incomplete")
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cloudinary{config: config, client: client, now: now, logger: logger.With("component", "cloudinary")}, nil
}

type apiError struct {
	Message string `json:"message"`
}

// Upload streams the image as a multipart form.
func (c *Cloudinary) Upload(ctx context.Context, upload application.Upload) (application.Image, error) {
	if upload.Content == nil {
		return application.Image{}, errors.New("media: upload has no content")
	}
	params := map[string]string{"timestamp": c.timestamp()}
	if c.config.Folder != "" {
		params["folder"] = c.config.Folder
	}

	body, contentType := c.multipartBody(params, upload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("upload"), body)
	if err != nil {
		return application.Image{}, fmt.Errorf("media: build upload request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	var out struct {
		SecureURL string   `json:"secure_url"`
		URL       string   `json:"url"`
		PublicID  string   `json:"public_id"`
		Error     apiError `json:"error"`
	}
	if err := c.do(req, &out); err != nil {
		return application.Image{}, fmt.Errorf("media: upload %q: %w", upload.Filename, err)
	}
	image := application.Image{URL: out.SecureURL, PublicID: out.PublicID}
	if image.URL == "" {
		image.URL = out.URL
	}
	if image.URL == "" || image.PublicID == "" {
		return application.Image{}, errors.New("media: upload response missing url or public id")
	}
	c.logger.InfoContext(ctx, "image uploaded", "public_id", image.PublicID)
	return image, nil
}

// Delete removes an asset. A missing asset is not an error.
func (c *Cloudinary) Delete(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	params := map[string]string{"public_id": publicID, "timestamp": c.timestamp()}
	form := url.Values{}
	for key, value := range params {
		form.Set(key, value)
	}
	form.Set("api_key", c.config.APIKey)
	form.Set("signature", c.sign(params))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("destroy"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("media: build destroy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out struct {
		Result string   `json:"result"`
		Error  apiError `json:"error"`
	}
	if err := c.do(req, &out); err != nil {
		return fmt.Errorf("media: destroy %q: %w", publicID, err)
	}
	switch out.Result {
	case "ok", "not found":
		return nil
	default:
		return fmt.Errorf("media: destroy %q: unexpected result %q", publicID, out.Result)
	}
}

func (c *Cloudinary) endpoint(action string) string {
	return strings.TrimRight(c.config.BaseURL, "/") + "/" + url.PathEscape(c.config.CloudName) + "/image/" + action
}

func (c *Cloudinary) timestamp() string {
	return strconv.FormatInt(c.now().Unix(), 10)
}

// sign builds the SHA-1 request signature: parameters sorted by name, joined
// as k=v pairs with '&', followed by the API secret.
func (c *Cloudinary) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params[key])
	}
	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + c.config.APISecret))
	return hex.EncodeToString(sum[:])
}

// multipartBody pipes the form so large images are never buffered whole.
func (c *Cloudinary) multipartBody(params map[string]string, upload application.Upload) (io.Reader, string) {
	reader, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	go func() {
		err := func() error {
			for key, value := range params {
				if err := form.WriteField(key, value); err != nil {
					return err
				}
			}
			if err := form.WriteField("api_key", c.config.APIKey); err != nil {
				return err
			}
			if err := form.WriteField("signature", c.sign(params)); err != nil {
				return err
			}
			filename := upload.Filename
			if filename == "" {
				filename = "image"
			}
			part, err := form.CreateFormFile("file", filename)
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, upload.Content); err != nil {
				return err
			}
			return form.Close()
		}()
		writer.CloseWithError(err)
	}()
	return reader, form.FormDataContentType()
}

func (c *Cloudinary) do(req *http.Request, out any) error {
	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		var failure struct {
			Error apiError `json:"error"`
		}
		if json.Unmarshal(body, &failure) == nil && failure.Error.Message != "" {
			return fmt.Errorf("status %d: %s", res.StatusCode, failure.Error.Message)
		}
		return fmt.Errorf("status %d", res.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
