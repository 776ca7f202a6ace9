package discover

import (
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"parc-go/internal/archive"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// formatExtensions maps a decoded image format name to its valid
// extensions. The first entry is the canonical one used when correcting.
var formatExtensions = map[string][]string{
	"jpeg": {".jpg", ".jpeg"},
	"png":  {".png"},
	"gif":  {".gif"},
	"tiff": {".tif", ".tiff"},
	"bmp":  {".bmp"},
	"webp": {".webp"},
}

// contentTypeExtensions maps sniffed content types to an extension, for
// files image decoding cannot identify (videos, HEIC containers).
var contentTypeExtensions = map[string]string{
	"video/mp4":  ".mp4",
	"video/avi":  ".avi",
	"video/webm": ".mkv",
}

// NormalizeExtension verifies that a file's extension matches its actual
// content type and corrects it when it does not.
//
// A decodable image whose extension is not valid for its format is renamed
// in place to the format's canonical extension; when the rename fails (for
// example a lock on the source), the file is copied under the corrected
// name and the original left untouched. A file that cannot be identified
// keeps its path unchanged with no extension claim.
func NormalizeExtension(path string, logger archive.Logger) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	format, err := detectImageFormat(path)
	if err == nil {
		valid := formatExtensions[format]
		for _, v := range valid {
			if ext == v {
				return path, nil
			}
		}
		return renameWithExtension(path, valid[0], logger)
	}

	if ext != "" {
		// Not a decodable image but it carries an extension claim (a
		// video, or a format we cannot read). Leave it alone.
		return path, nil
	}

	// Extensionless and undecodable: probe the content for a known type.
	probed, ok := probeExtension(path)
	if !ok {
		return path, nil
	}
	return renameWithExtension(path, probed, logger)
}

// detectImageFormat reads just enough of the file to identify a supported
// image format.
func detectImageFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	_, format, err := image.DecodeConfig(f)
	if err != nil {
		return "", err
	}
	return format, nil
}

// probeExtension sniffs the leading bytes of an extensionless file against
// known container signatures. Returns the extension and true on a match.
func probeExtension(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", false
	}
	head = head[:n]

	if ext, ok := sniffFtyp(head); ok {
		return ext, true
	}
	if ext, ok := contentTypeExtensions[http.DetectContentType(head)]; ok {
		return ext, true
	}
	return "", false
}

// sniffFtyp inspects an ISO base media file (ftyp box) for HEIC and
// QuickTime brands, which http.DetectContentType does not distinguish.
func sniffFtyp(head []byte) (string, bool) {
	if len(head) < 12 || string(head[4:8]) != "ftyp" {
		return "", false
	}
	switch brand := string(head[8:12]); brand {
	case "heic", "heix", "hevc", "mif1", "msf1":
		return ".heic", true
	case "qt  ":
		return ".mov", true
	default:
		if strings.HasPrefix(brand, "mp4") || brand == "isom" || brand == "iso2" {
			return ".mp4", true
		}
	}
	return "", false
}

// renameWithExtension renames path so it ends in ext, falling back to a
// byte-exact copy when the rename fails. The returned path is the one to
// use downstream.
func renameWithExtension(path, ext string, logger archive.Logger) (string, error) {
	oldExt := filepath.Ext(path)
	newPath := strings.TrimSuffix(path, oldExt) + ext
	if newPath == path {
		return path, nil
	}
	if _, err := os.Stat(newPath); err == nil {
		// Corrected name is already taken; keep the original rather than
		// clobbering an unrelated file.
		logger.Warn("corrected name already exists", "path", path, "target", newPath)
		return path, nil
	}

	if err := os.Rename(path, newPath); err == nil {
		return newPath, nil
	} else {
		logger.Warn("rename failed, copying instead", "path", path, "error", err)
	}

	if err := copyFile(path, newPath); err != nil {
		return path, fmt.Errorf("copy fallback for %s: %w", path, err)
	}
	return newPath, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
