package storage

import (
	"strings"
	"testing"
)

func TestCacheFromBlobName(t *testing.T) {
	id := entryID("https://app.example.com/style.css")

	tests := []struct {
		name   string
		blob   string
		want   string
		wantOK bool
	}{
		{"simple", blobName("vision-lens-v1", "https://app.example.com/style.css"), "vision-lens-v1", true},
		{"slash in cache name", "app/v1/" + id, "app/v1", true},
		{"no cache", "/" + id, "", false},
		{"no slash", id, "", false},
		{"foreign blob", "vision-lens-v1/readme.txt", "", false},
		{"short id", "vision-lens-v1/" + id[:10], "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := cacheFromBlobName(tt.blob)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Expected (%q, %v), got (%q, %v)", tt.want, tt.wantOK, got, ok)
			}
		})
	}
}

func TestBlobName_RoundTrip(t *testing.T) {
	for _, cache := range []string{"v1", "vision-lens-v2", "app/v1"} {
		name := blobName(cache, "https://app.example.com/")
		if !strings.HasPrefix(name, cache+"/") {
			t.Errorf("Expected %s to be under %s/", name, cache)
		}
		got, ok := cacheFromBlobName(name)
		if !ok || got != cache {
			t.Errorf("Expected cache %q from %s, got %q", cache, name, got)
		}
	}
}
