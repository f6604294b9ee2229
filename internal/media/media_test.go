package media

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/vgprice/engine/internal/ingesterr"
)

// CanonicalMedia.url_hash must equal sha256(url).
func TestHashURL(t *testing.T) {
	url := "https://cdn.example.com/portal2/cover.jpg"
	sum := sha256.Sum256([]byte(url))
	want := hex.EncodeToString(sum[:])

	if got := HashURL(url); got != want {
		t.Errorf("HashURL(%q) = %q, want %q", url, got, want)
	}
}

func TestHashURLDeterministic(t *testing.T) {
	url := "https://cdn.example.com/a.png"
	if HashURL(url) != HashURL(url) {
		t.Error("HashURL is not deterministic")
	}
}

func TestHashURLDistinctForDistinctURLs(t *testing.T) {
	a := HashURL("https://cdn.example.com/a.png")
	b := HashURL("https://cdn.example.com/b.png")
	if a == b {
		t.Error("HashURL collided for distinct URLs")
	}
}

func i32(v int32) *int32 { return &v }
func s(v string) *string { return &v }

// Non-empty url, strictly positive dimensions, and videos needing a
// playable URL.
func TestGameMediaInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		in      GameMediaInput
		wantErr error
	}{
		{
			name:    "empty url rejected",
			in:      GameMediaInput{Kind: KindImage, URL: ""},
			wantErr: errEmptyURL,
		},
		{
			name:    "zero width rejected",
			in:      GameMediaInput{Kind: KindImage, URL: "https://x/y.png", Width: i32(0)},
			wantErr: errNonPositiveDims,
		},
		{
			name:    "negative height rejected",
			in:      GameMediaInput{Kind: KindImage, URL: "https://x/y.png", Height: i32(-1)},
			wantErr: errNonPositiveDims,
		},
		{
			name:    "video without stream_url or url rejected",
			in:      GameMediaInput{Kind: KindVideo, URL: ""},
			wantErr: errVideoMissingURL,
		},
		{
			name: "video with url only is fine",
			in:   GameMediaInput{Kind: KindVideo, URL: "https://x/trailer.mp4"},
		},
		{
			name: "video with stream_url and url is fine",
			in:   GameMediaInput{Kind: KindVideo, URL: "https://x/fallback.jpg", StreamURL: s("rtmp://x/stream")},
		},
		{
			name: "valid image",
			in:   GameMediaInput{Kind: KindImage, URL: "https://x/cover.jpg", Width: i32(1920), Height: i32(1080)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("validate() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("validate() = nil, want error containing %v", tt.wantErr)
			}
			ierr, ok := err.(*ingesterr.Error)
			if !ok {
				t.Fatalf("validate() error type = %T, want *ingesterr.Error", err)
			}
			if ierr.Kind != ingesterr.KindInvariantViolation {
				t.Errorf("validate() kind = %v, want %v", ierr.Kind, ingesterr.KindInvariantViolation)
			}
			if ierr.Err != tt.wantErr {
				t.Errorf("validate() underlying err = %v, want %v", ierr.Err, tt.wantErr)
			}
		})
	}
}
