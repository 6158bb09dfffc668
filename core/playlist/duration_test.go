package playlist

import (
	"testing"

	"github.com/pkg/errors"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		token   string
		want    int
		wantErr bool
	}{
		{"PT1H5M30S", 3930, false},
		{"PT4M13S", 253, false},
		{"PT2H", 7200, false},
		{"PT45S", 45, false},
		{"PT10M", 600, false},
		{"PT0S", 0, false},
		{"PT", 0, true},
		{"", 0, true},
		{"4M13S", 0, true},
		{"PT4M13Sx", 0, true},
		{"PT1H5M30S extra", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseDuration(tt.token)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDuration(%q) = %d; want error", tt.token, got)
				}
				if errors.Cause(err) != ErrBadDuration {
					t.Fatalf("ParseDuration(%q) err = %v; want ErrBadDuration", tt.token, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDuration(%q): %v", tt.token, err)
			}
			if got != tt.want {
				t.Errorf("ParseDuration(%q) = %d; want %d", tt.token, got, tt.want)
			}
		})
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		secs int
		want string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{125, "2:05"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{3661, "1:01:01"},
		{3930, "1:05:30"},
		{36610, "10:10:10"},
	}
	for _, tt := range tests {
		got, err := FormatSeconds(tt.secs)
		if err != nil {
			t.Fatalf("FormatSeconds(%d): %v", tt.secs, err)
		}
		if got != tt.want {
			t.Errorf("FormatSeconds(%d) = %q; want %q", tt.secs, got, tt.want)
		}
	}

	if _, err := FormatSeconds(-1); err == nil {
		t.Error("FormatSeconds(-1) did not fail")
	}
}

// parse → format round-trips to an equivalent clock display.
func TestDurationRoundTrip(t *testing.T) {
	tests := map[string]string{
		"PT1H5M30S": "1:05:30",
		"PT4M13S":   "4:13",
		"PT90M":     "1:30:00",
		"PT45S":     "0:45",
	}
	for token, want := range tests {
		secs, err := ParseDuration(token)
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", token, err)
		}
		got, err := FormatSeconds(secs)
		if err != nil {
			t.Fatalf("FormatSeconds(%d): %v", secs, err)
		}
		if got != want {
			t.Errorf("%q -> %d -> %q; want %q", token, secs, got, want)
		}
	}
}

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"https://www.youtube.com/playlist?list=PLabc_123-XYZ", "PLabc_123-XYZ", true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL1234567890abc", "PL1234567890abc", true},
		{"PL1234567890abc", "PL1234567890abc", true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "", false},
		{"not a url at all", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractPlaylistID(tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ExtractPlaylistID(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.wantOK)
		}
	}
}
