package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"
)

func fill(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func createTestJPEG(w, h int) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, fill(w, h, color.RGBA{255, 0, 0, 255}), &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTestPNG(w, h int) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, fill(w, h, color.RGBA{0, 0, 255, 255}))
	return buf.Bytes()
}

func createTestGIF(w, h int) []byte {
	var buf bytes.Buffer
	gif.Encode(&buf, fill(w, h, color.RGBA{0, 255, 0, 255}), nil)
	return buf.Bytes()
}

func TestProcessJPEG(t *testing.T) {
	result, err := Process(bytes.NewReader(createTestJPEG(100, 100)))
	if err != nil {
		t.Fatalf("Process JPEG: %v", err)
	}
	if result.MIME != "image/jpeg" || result.Ext != ".jpg" {
		t.Errorf("expected image/jpeg .jpg, got %s %s", result.MIME, result.Ext)
	}
	if len(result.Data) == 0 {
		t.Error("expected non-empty data")
	}
}

func TestProcessPNGReencoded(t *testing.T) {
	result, err := Process(bytes.NewReader(createTestPNG(100, 100)))
	if err != nil {
		t.Fatalf("Process PNG: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("expected PNG to be re-encoded as JPEG, got %s", result.MIME)
	}
}

func TestProcessGIFPassthrough(t *testing.T) {
	data := createTestGIF(40, 30)
	result, err := Process(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Process GIF: %v", err)
	}
	if result.MIME != "image/gif" || result.Ext != ".gif" {
		t.Errorf("expected image/gif .gif, got %s %s", result.MIME, result.Ext)
	}
	if !bytes.Equal(result.Data, data) {
		t.Error("GIF data should be stored unchanged")
	}
}

func TestProcessDownscale(t *testing.T) {
	result, err := Process(bytes.NewReader(createTestJPEG(2000, 1000)))
	if err != nil {
		t.Fatalf("Process large image: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != MaxDimension || bounds.Dy() != MaxDimension/2 {
		t.Errorf("expected %dx%d, got %dx%d", MaxDimension, MaxDimension/2, bounds.Dx(), bounds.Dy())
	}
}

func TestProcessSmallImageNotUpscaled(t *testing.T) {
	result, err := Process(bytes.NewReader(createTestJPEG(50, 50)))
	if err != nil {
		t.Fatalf("Process small image: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 50 || bounds.Dy() != 50 {
		t.Errorf("small image should not be resized: got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestProcessTooLarge(t *testing.T) {
	data := append(createTestJPEG(10, 10), make([]byte, MaxBytes)...)
	_, err := Process(bytes.NewReader(data))
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}

func TestProcessUnsupportedFormat(t *testing.T) {
	for name, data := range map[string][]byte{
		"text": []byte("not an image"),
		"pdf":  []byte("%PDF-1.4\n%..."),
		"bmp":  append([]byte("BM"), make([]byte, 64)...),
	} {
		_, err := Process(bytes.NewReader(data))
		if !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("%s: expected ErrUnsupportedFormat, got %v", name, err)
		}
	}
}

func TestProcessWebPSniffed(t *testing.T) {
	// A WebP header with no image data is accepted by the allow-list but
	// fails to decode.
	_, err := Process(bytes.NewReader([]byte("RIFF\x00\x00\x00\x00WEBPVP8 \x00\x00\x00\x00")))
	if err == nil {
		t.Fatal("expected decode error for truncated WebP")
	}
	if errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("WebP should pass the allow-list, got %v", err)
	}
}

// pngHeader returns the signature and IHDR chunk of an 8-bit grayscale PNG.
// That is all DecodeConfig reads.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth; color type, compression, filter and interlace stay 0

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func gifHeader(w, h uint16) []byte {
	var buf bytes.Buffer
	buf.WriteString("GIF89a")
	binary.Write(&buf, binary.LittleEndian, w)
	binary.Write(&buf, binary.LittleEndian, h)
	buf.Write([]byte{0, 0, 0})
	return buf.Bytes()
}

func TestProcessTooManyPixels(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"png 12000x12000", pngHeader(12000, 12000)},
		{"png wide strip", pngHeader(1_000_000, 41)},
		{"gif 20000x20000", gifHeader(20000, 20000)},
	}

	for _, tt := range tests {
		_, err := Process(bytes.NewReader(tt.data))
		if !errors.Is(err, ErrTooManyPixels) {
			t.Errorf("%s: expected ErrTooManyPixels, got %v", tt.name, err)
		}
	}
}
