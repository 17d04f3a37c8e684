package hosting

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "github.com/aldenlin/celebmatch-linebot-go/internal/errors"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	cfg := Config{
		CloudName:               "demo",
		APIKey:                  "key-123",
		APISecret:               "secret-456",
		Folder:                  "senders",
		CompositeTemplateID:     "compare_base",
		CompositeMaleTemplateID: "alt_male",
		CompositeFemaleTemplate: "alt_female",
	}
	if handler != nil {
		server := httptest.NewServer(handler)
		t.Cleanup(server.Close)
		cfg.UploadBaseURL = server.URL
		cfg.HTTPClient = server.Client()
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestUpload(t *testing.T) {
	var gotForm map[string]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1_1/demo/image/upload" {
			t.Errorf("path = %q, want /v1_1/demo/image/upload", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart form: %v", err)
		}
		gotForm = map[string]string{}
		for key, values := range r.MultipartForm.Value {
			gotForm[key] = values[0]
		}
		_, _ = w.Write([]byte(`{"secure_url": "https://res.cloudinary.com/demo/image/upload/senders/abc.jpg", "public_id": "senders/abc"}`))
	}))

	result, err := client.Upload(context.Background(), strings.NewReader("fake-image-bytes"), "inbound")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if result.PublicID != "senders/abc" {
		t.Errorf("PublicID = %q, want senders/abc", result.PublicID)
	}

	if gotForm["api_key"] != "key-123" {
		t.Errorf("api_key = %q, want key-123", gotForm["api_key"])
	}
	if gotForm["folder"] != "senders" {
		t.Errorf("folder = %q, want senders", gotForm["folder"])
	}
	if gotForm["tags"] != "inbound" {
		t.Errorf("tags = %q, want inbound", gotForm["tags"])
	}

	// Signature covers the sorted signed params plus the secret.
	signed := "folder=senders&tags=inbound&timestamp=" + gotForm["timestamp"] + "secret-456"
	sum := sha1.Sum([]byte(signed))
	if want := hex.EncodeToString(sum[:]); gotForm["signature"] != want {
		t.Errorf("signature = %q, want %q", gotForm["signature"], want)
	}
}

func TestUploadRemote(t *testing.T) {
	var gotForm map[string]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart form: %v", err)
		}
		gotForm = map[string]string{}
		for key, values := range r.MultipartForm.Value {
			gotForm[key] = values[0]
		}
		_, _ = w.Write([]byte(`{"secure_url": "https://res.cloudinary.com/demo/image/upload/senders/prof.jpg", "public_id": "senders/prof"}`))
	}))

	result, err := client.UploadRemote(context.Background(), "https://profile.line-scdn.net/abc", "profile")
	if err != nil {
		t.Fatalf("UploadRemote: %v", err)
	}
	if result.PublicID != "senders/prof" {
		t.Errorf("PublicID = %q, want senders/prof", result.PublicID)
	}

	// The remote URL travels as the file parameter value.
	if gotForm["file"] != "https://profile.line-scdn.net/abc" {
		t.Errorf("file = %q, want the remote URL", gotForm["file"])
	}
	if gotForm["tags"] != "profile" {
		t.Errorf("tags = %q, want profile", gotForm["tags"])
	}
}

func TestUploadRemoteEmptyURL(t *testing.T) {
	client := newTestClient(t, nil)

	_, err := client.UploadRemote(context.Background(), "", "profile")
	if apperrors.ExternalKind(err) != apperrors.KindMalformed {
		t.Errorf("kind = %q, want malformed", apperrors.ExternalKind(err))
	}
}

func TestUploadAuthFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Upload(context.Background(), strings.NewReader("x"), "")
	if apperrors.ExternalKind(err) != apperrors.KindAuth {
		t.Errorf("kind = %q, want auth", apperrors.ExternalKind(err))
	}
}

func TestUploadMalformedResponse(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))

	_, err := client.Upload(context.Background(), strings.NewReader("x"), "")
	if apperrors.ExternalKind(err) != apperrors.KindMalformed {
		t.Errorf("kind = %q, want malformed", apperrors.ExternalKind(err))
	}
}

func TestFaceThumbnailURL(t *testing.T) {
	client := newTestClient(t, nil)

	got := client.FaceThumbnailURL("celebs/some_celeb")
	want := "https://res.cloudinary.com/demo/image/upload/c_thumb,g_face,w_240/celebs/some_celeb"
	if got != want {
		t.Errorf("FaceThumbnailURL = %q, want %q", got, want)
	}
}

func TestPreviewURL(t *testing.T) {
	client := newTestClient(t, nil)

	got := client.PreviewURL("senders/abc")
	if !strings.HasPrefix(got, "https://") {
		t.Errorf("PreviewURL should be https, got %q", got)
	}
	if !strings.Contains(got, "/w_240/") {
		t.Errorf("PreviewURL should contain width transform, got %q", got)
	}
}

func TestEnsureHTTPS(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"upgrades http", "http://res.cloudinary.com/demo/image/upload/x.jpg", "https://res.cloudinary.com/demo/image/upload/x.jpg"},
		{"keeps https", "https://res.cloudinary.com/demo/image/upload/x.jpg", "https://res.cloudinary.com/demo/image/upload/x.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnsureHTTPS(tt.in); got != tt.want {
				t.Errorf("EnsureHTTPS(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCompositeURL(t *testing.T) {
	client := newTestClient(t, nil)

	got := client.CompositeURL("celebs/some_celeb", "senders/42", 87, 25)
	if !strings.Contains(got, "celebs:some_celeb") {
		t.Errorf("composite URL should embed the celebrity overlay, got %q", got)
	}
	if !strings.Contains(got, "senders:42") {
		t.Errorf("composite URL should embed the sender overlay, got %q", got)
	}
	if !strings.Contains(got, "87") {
		t.Errorf("composite URL should embed the score, got %q", got)
	}
	if !strings.HasSuffix(got, "/compare_base") {
		t.Errorf("composite URL should end with the template id, got %q", got)
	}
	if !strings.Contains(got, "age%2025") {
		t.Errorf("composite URL should carry the encoded age overlay, got %q", got)
	}
	if strings.Contains(got, " ") {
		t.Errorf("composite URL must not contain raw spaces, got %q", got)
	}
}

func TestAltCompositeURL(t *testing.T) {
	client := newTestClient(t, nil)

	female := client.AltCompositeURL("42", "female", 25)
	if !strings.Contains(female, "l_42,") {
		t.Errorf("alt composite should embed the sender image id, got %q", female)
	}
	if !strings.HasSuffix(female, "/alt_female") {
		t.Errorf("alt composite for female should use the female template, got %q", female)
	}
	if !strings.Contains(female, "age%2025") || strings.Contains(female, " ") {
		t.Errorf("alt composite should carry the encoded age overlay without raw spaces, got %q", female)
	}

	male := client.AltCompositeURL("43", "male", 30)
	if !strings.HasSuffix(male, "/alt_male") {
		t.Errorf("alt composite for male should use the male template, got %q", male)
	}
}
