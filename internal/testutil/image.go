package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// WritePNG writes a width x height PNG to path. The pixels vary so two
// images with different dimensions never share content bytes.
func WritePNG(t *testing.T, path string, width, height int) {
	t.Helper()
	writeImage(t, path, width, height, func(f *os.File, img image.Image) error {
		return png.Encode(f, img)
	})
}

// WriteJPEG writes a width x height JPEG to path.
func WriteJPEG(t *testing.T, path string, width, height int) {
	t.Helper()
	writeImage(t, path, width, height, func(f *os.File, img image.Image) error {
		return jpeg.Encode(f, img, nil)
	})
}

// WriteJPEGWithExif writes a width x height JPEG carrying an EXIF block
// whose DateTimeOriginal is the given capture time.
func WriteJPEGWithExif(t *testing.T, path string, width, height int, taken time.Time) {
	t.Helper()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(width, height), nil); err != nil {
		t.Fatalf("encoding fixture %s: %v", path, err)
	}
	data := buf.Bytes()

	// Splice the APP1 segment directly after the SOI marker.
	segment := exifSegment(taken.Format("2006:01:02 15:04:05"))
	out := make([]byte, 0, len(data)+len(segment))
	out = append(out, data[:2]...)
	out = append(out, segment...)
	out = append(out, data[2:]...)
	WriteFile(t, path, out)
}

// exifSegment builds a minimal JPEG APP1 segment: a little-endian TIFF
// structure with IFD0 pointing at an Exif sub-IFD that holds a single
// DateTimeOriginal tag.
func exifSegment(datetime string) []byte {
	const (
		tagExifIFDPointer   = 0x8769
		tagDateTimeOriginal = 0x9003
		typeASCII           = 2
		typeLong            = 4
		ifdSize             = 2 + 12 + 4 // entry count, one entry, next-IFD offset
	)
	value := append([]byte(datetime), 0)

	var tiff bytes.Buffer
	tiff.WriteString("II")
	binary.Write(&tiff, binary.LittleEndian, uint16(0x2A))
	binary.Write(&tiff, binary.LittleEndian, uint32(8)) // IFD0 offset

	exifIFDOffset := uint32(8 + ifdSize)
	binary.Write(&tiff, binary.LittleEndian, uint16(1))
	writeIFDEntry(&tiff, tagExifIFDPointer, typeLong, 1, exifIFDOffset)
	binary.Write(&tiff, binary.LittleEndian, uint32(0))

	binary.Write(&tiff, binary.LittleEndian, uint16(1))
	writeIFDEntry(&tiff, tagDateTimeOriginal, typeASCII, uint32(len(value)), exifIFDOffset+ifdSize)
	binary.Write(&tiff, binary.LittleEndian, uint32(0))
	tiff.Write(value)

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	segment := []byte{0xFF, 0xE1, byte((len(payload) + 2) >> 8), byte(len(payload) + 2)}
	return append(segment, payload...)
}

func writeIFDEntry(w *bytes.Buffer, tag, typ uint16, count, value uint32) {
	binary.Write(w, binary.LittleEndian, tag)
	binary.Write(w, binary.LittleEndian, typ)
	binary.Write(w, binary.LittleEndian, count)
	binary.Write(w, binary.LittleEndian, value)
}

func testImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: uint8((x + y) % 256), A: 255})
		}
	}
	return img
}

func writeImage(t *testing.T, path string, width, height int, encode func(*os.File, image.Image) error) {
	t.Helper()

	img := testImage(width, height)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating fixture directory: %v", err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating fixture %s: %v", path, err)
	}
	defer f.Close()

	if err := encode(f, img); err != nil {
		t.Fatalf("encoding fixture %s: %v", path, err)
	}
}

// WriteFile writes raw bytes to path, creating parent directories.
func WriteFile(t *testing.T, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating fixture directory: %v", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("writing fixture %s: %v", path, err)
	}
}
