// Package hosting uploads inbound sender images to Cloudinary and builds
// the transformation URLs used by the reply templates.
package hosting

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aldenlin/celebmatch-linebot-go/internal/config"
	apperrors "github.com/aldenlin/celebmatch-linebot-go/internal/errors"
	"github.com/aldenlin/celebmatch-linebot-go/internal/metrics"
)

const (
	// ServiceName is the label used for metrics and external errors.
	ServiceName = "hosting"

	defaultUploadBaseURL   = "https://api.cloudinary.com"
	defaultDeliveryBaseURL = "https://res.cloudinary.com"
)

// UploadResult is the durable location of an uploaded image.
type UploadResult struct {
	URL      string `json:"secure_url"`
	PublicID string `json:"public_id"`
}

// Config configures the hosting client.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string

	// Composite template public ids.
	CompositeTemplateID     string
	CompositeMaleTemplateID string
	CompositeFemaleTemplate string

	// Overridable in tests.
	UploadBaseURL   string
	DeliveryBaseURL string
	HTTPClient      *http.Client
	Metrics         *metrics.Metrics
}

// Client is the Cloudinary client.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a hosting client.
func New(cfg Config) (*Client, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary cloud name, api key and api secret are required")
	}
	if cfg.UploadBaseURL == "" {
		cfg.UploadBaseURL = defaultUploadBaseURL
	}
	if cfg.DeliveryBaseURL == "" {
		cfg.DeliveryBaseURL = defaultDeliveryBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.HostingRequest}
	}
	return &Client{cfg: cfg, httpClient: httpClient}, nil
}

// Upload sends image bytes to the upload API and returns the hosted URL
// and public id. The request is signed with the account secret.
func (c *Client) Upload(ctx context.Context, r io.Reader, tag string) (*UploadResult, error) {
	return c.timedUpload(ctx, r, "", tag)
}

// UploadRemote asks the upload API to fetch the image from a remote URL.
// Cloudinary treats a URL-valued file parameter as a fetch instruction, so
// no bytes pass through this process.
func (c *Client) UploadRemote(ctx context.Context, imageURL, tag string) (*UploadResult, error) {
	if imageURL == "" {
		return nil, apperrors.NewExternalError(ServiceName, apperrors.KindMalformed,
			fmt.Errorf("remote upload url is empty"))
	}
	return c.timedUpload(ctx, nil, imageURL, tag)
}

func (c *Client) timedUpload(ctx context.Context, r io.Reader, remoteURL, tag string) (*UploadResult, error) {
	start := time.Now()
	result, err := c.doUpload(ctx, r, remoteURL, tag)

	status := "success"
	if err != nil {
		status = string(apperrors.ExternalKind(err))
		if status == "" {
			status = "error"
		}
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordExternalCall(ServiceName, status, time.Since(start).Seconds())
	}
	return result, err
}

func (c *Client) doUpload(ctx context.Context, r io.Reader, remoteURL, tag string) (*UploadResult, error) {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	params := map[string]string{
		"timestamp": timestamp,
	}
	if tag != "" {
		params["tags"] = tag
	}
	if c.cfg.Folder != "" {
		params["folder"] = c.cfg.Folder
	}

	var body strings.Builder
	writer := multipart.NewWriter(&body)
	for key, value := range params {
		if err := writer.WriteField(key, value); err != nil {
			return nil, apperrors.NewExternalError(ServiceName, apperrors.KindMalformed, err)
		}
	}
	if err := writer.WriteField("api_key", c.cfg.APIKey); err != nil {
		return nil, apperrors.NewExternalError(ServiceName, apperrors.KindMalformed, err)
	}
	if err := writer.WriteField("signature", signParams(params, c.cfg.APISecret)); err != nil {
		return nil, apperrors.NewExternalError(ServiceName, apperrors.KindMalformed, err)
	}

	if remoteURL != "" {
		if err := writer.WriteField("file", remoteURL); err != nil {
			return nil, apperrors.NewExternalError(ServiceName, apperrors.KindMalformed, err)
		}
	} else {
		part, err := writer.CreateFormFile("file", "upload")
		if err != nil {
			return nil, apperrors.NewExternalError(ServiceName, apperrors.KindMalformed, err)
		}
		if _, err := io.Copy(part, r); err != nil {
			return nil, apperrors.NewExternalError(ServiceName, apperrors.KindNetwork, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, apperrors.NewExternalError(ServiceName, apperrors.KindMalformed, err)
	}

	endpoint := fmt.Sprintf("%s/v1_1/%s/image/upload", c.cfg.UploadBaseURL, c.cfg.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body.String()))
	if err != nil {
		return nil, apperrors.NewExternalError(ServiceName, apperrors.KindMalformed, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NewExternalError(ServiceName, apperrors.KindNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperrors.NewExternalError(ServiceName, apperrors.KindMalformed, err)
	}
	if result.URL == "" || result.PublicID == "" {
		return nil, apperrors.NewExternalError(ServiceName, apperrors.KindMalformed,
			fmt.Errorf("upload response missing url or public id"))
	}

	slog.DebugContext(ctx, "uploaded image",
		"public_id", result.PublicID,
		"tag", tag)
	return &result, nil
}

// signParams produces the SHA-1 request signature: parameters sorted by
// name, joined as key=value pairs with &, with the secret appended.
func signParams(params map[string]string, secret string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params[key])
	}

	sum := sha1.Sum([]byte(strings.Join(pairs, "&") + secret))
	return hex.EncodeToString(sum[:])
}

// checkStatus maps HTTP status codes onto failure kinds.
func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperrors.NewExternalError(ServiceName, apperrors.KindAuth,
			fmt.Errorf("status %d", code))
	case code == http.StatusTooManyRequests || code == 420:
		return apperrors.NewExternalError(ServiceName, apperrors.KindQuota,
			fmt.Errorf("status %d", code))
	case code >= 400 && code < 500:
		return apperrors.NewExternalError(ServiceName, apperrors.KindMalformed,
			fmt.Errorf("status %d", code))
	default:
		return apperrors.NewExternalError(ServiceName, apperrors.KindNetwork,
			fmt.Errorf("status %d", code))
	}
}
