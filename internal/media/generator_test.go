package media

import "testing"

func TestDecodeDataURL(t *testing.T) {
	data, mime, err := decodeDataURL("data:image/png;base64,aGVsbG8=")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mime != "image/png" {
		t.Fatalf("expected image/png, got %q", mime)
	}
	if string(data) != "hello" {
		t.Fatalf("expected decoded bytes 'hello', got %q", data)
	}
}

func TestDecodeDataURLRejectsNonDataURL(t *testing.T) {
	if _, _, err := decodeDataURL("https://example.com/image.png"); err == nil {
		t.Fatal("expected error for non-data URL")
	}
}

func TestParseImageResponseFromImagesArray(t *testing.T) {
	body := []byte(`{"choices":[{"message":{"images":[{"image_url":{"url":"data:image/jpeg;base64,aGk="}}]}}]}`)
	data, mime, err := parseImageResponse(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mime != "image/jpeg" || string(data) != "hi" {
		t.Fatalf("unexpected result: mime=%q data=%q", mime, data)
	}
}

func TestParseImageResponseNoImages(t *testing.T) {
	body := []byte(`{"choices":[{"message":{"content":"no image here"}}]}`)
	if _, _, err := parseImageResponse(body); err == nil {
		t.Fatal("expected error when no image data present")
	}
}
