package media

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/spotevents/spot/internal/application"
)

func newTestStore(t *testing.T, handler http.HandlerFunc) *Cloudinary {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store, err := NewCloudinary(Config{
		CloudName:  "demo",
		APIKey:     "key",
		APISecret:  "secret",
		Folder:     "spot",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Now:        func() time.Time { return time.Unix(1700000000, 0) },
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewCloudinary: %v", err)
	}
	return store
}

func expectedSignature(payload string) string {
	sum := sha1.Sum([]byte(payload + "secret"))
	return hex.EncodeToString(sum[:])
}

func TestNewCloudinaryRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := NewCloudinary(Config{CloudName: "demo", APIKey: "key"}, nil); err == nil {
		t.Fatal("expected error for missing secret")
	}
}

func TestCloudinaryUpload(t *testing.T) {
	t.Parallel()

	var gotFile, gotSignature, gotFolder, gotPath string
	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotSignature = r.FormValue("signature")
		gotFolder = r.FormValue("folder")
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		gotFile = string(data)
		_, _ = io.WriteString(w, `{"secure_url":"https://res.cloudinary.com/demo/image/upload/v1/spot/abc.png","public_id":"spot/abc"}`)
	})

	image, err := store.Upload(context.Background(), application.Upload{Filename: "cover.png", Content: strings.NewReader("png-bytes")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if image.PublicID != "spot/abc" || !strings.HasSuffix(image.URL, "spot/abc.png") {
		t.Fatalf("unexpected image %#v", image)
	}
	if gotPath != "/demo/image/upload" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotFile != "png-bytes" || gotFolder != "spot" {
		t.Fatalf("unexpected form file=%q folder=%q", gotFile, gotFolder)
	}
	if want := expectedSignature("folder=spot&timestamp=1700000000"); gotSignature != want {
		t.Fatalf("signature mismatch: got %q want %q", gotSignature, want)
	}
}

func TestCloudinaryUploadFailure(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"Invalid Signature"}}`)
	})

	_, err := store.Upload(context.Background(), application.Upload{Filename: "a.png", Content: strings.NewReader("x")})
	if err == nil || !strings.Contains(err.Error(), "Invalid Signature") {
		t.Fatalf("expected provider message in error, got %v", err)
	}
	if _, err := store.Upload(context.Background(), application.Upload{}); err == nil {
		t.Fatal("expected error for empty upload")
	}
}

func TestCloudinaryDelete(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		result  string
		wantErr bool
	}{
		{name: "deleted", result: "ok"},
		{name: "already gone", result: "not found"},
		{name: "unexpected", result: "error", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var publicID, signature string
			store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/demo/image/destroy" {
					http.NotFound(w, r)
					return
				}
				_ = r.ParseForm()
				publicID = r.PostForm.Get("public_id")
				signature = r.PostForm.Get("signature")
				_, _ = io.WriteString(w, `{"result":"`+tc.result+`"}`)
			})

			err := store.Delete(context.Background(), "spot/abc")
			if (err != nil) != tc.wantErr {
				t.Fatalf("Delete error = %v, wantErr %v", err, tc.wantErr)
			}
			if publicID != "spot/abc" {
				t.Fatalf("unexpected public id %q", publicID)
			}
			if want := expectedSignature("public_id=spot/abc&timestamp=1700000000"); signature != want {
				t.Fatalf("signature mismatch: got %q want %q", signature, want)
			}
		})
	}
}

func TestCloudinaryDeleteEmptyIDIsNoop(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if err := store.Delete(context.Background(), ""); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestCloudinaryContextCancelled(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"result":"ok"}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Delete(ctx, "spot/abc"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
