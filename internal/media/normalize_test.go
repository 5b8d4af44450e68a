package media

import "testing"

func TestParseRatio(t *testing.T) {
	w, h, err := parseRatio("16:9")
	if err != nil || w != 16 || h != 9 {
		t.Fatalf("expected 16:9, got %d:%d err=%v", w, h, err)
	}
}

func TestParseRatioInvalid(t *testing.T) {
	if _, _, err := parseRatio("not-a-ratio"); err == nil {
		t.Fatal("expected error for invalid ratio string")
	}
}

func TestNormalizeAspectEmptyRatioIsNoop(t *testing.T) {
	data := []byte{1, 2, 3}
	out, err := normalizeAspect(data, "image/png", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != string(data) {
		t.Fatal("expected passthrough for empty ratio")
	}
}
