package ui

import (
	"bytes"
	"testing"
)

func TestPlainOutputRoutesStreams(t *testing.T) {
	var out, errOut bytes.Buffer
	u := New(&out, &errOut, ColorNever, false)

	u.Infof("Ingesting: page=%d\n", 1)
	u.Successf("done")
	u.Warnf("HTTP %d", 500)
	u.Errorf("Error: %s", "boom")

	if got, want := out.String(), "Ingesting: page=1\ndone\n"; got != want {
		t.Fatalf("stdout = %q, want %q", got, want)
	}
	if got, want := errOut.String(), "HTTP 500\nError: boom\n"; got != want {
		t.Fatalf("stderr = %q, want %q", got, want)
	}
}

func TestColorDisabledByFlag(t *testing.T) {
	var out bytes.Buffer
	u := New(&out, &out, ColorAlways, true)
	if u.ColorEnabled {
		t.Fatalf("ColorEnabled = true, want false when disabled")
	}
}

func TestNormalizeColorMode(t *testing.T) {
	cases := map[string]ColorMode{
		"always":  ColorAlways,
		" NEVER ": ColorNever,
		"":        ColorAuto,
		"rainbow": ColorAuto,
	}
	for input, want := range cases {
		if got := NormalizeColorMode(input); got != want {
			t.Fatalf("NormalizeColorMode(%q) = %q, want %q", input, got, want)
		}
	}
}
