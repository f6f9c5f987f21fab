package upload

import (
	"regexp"
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Summer Beach Photo!", "summer-beach-photo"},
		{"IMG_0001", "img-0001"},
		{"Café Crème", "cafe-creme"},
		{"Straße", "strasse"},
		{"  --weird__name--  ", "weird-name"},
		{"фото отпуск", "foto-otpusk"},
		{"Ελλάδα", "ellada"},
		{"!!!", "image"},
		{"", "image"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Slugify(tt.in); got != tt.want {
				t.Fatalf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlugifyTransliteratesCJK(t *testing.T) {
	for _, in := range []string{"東京タワー", "日本語", "서울"} {
		got := Slugify(in)
		if got == fallbackSlug || !slugPattern.MatchString(got) {
			t.Fatalf("Slugify(%q) = %q, want a transliterated slug", in, got)
		}
	}
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func TestSlugifyTruncates(t *testing.T) {
	got := Slugify(strings.Repeat("a", 300))
	if len(got) != 100 {
		t.Fatalf("expected 100 characters, got %d", len(got))
	}
}
