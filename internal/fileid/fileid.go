// Package fileid derives deterministic names for rendered artifacts, temp files, and exports.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/hyperjump/pagebind/internal/models"
)

// RenderKey returns a stable key for a document rendered with the given header/footer.
// Same inputs always yield the same key.
func RenderKey(documentID string, hf models.HeaderFooter) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%t", documentID, hf.HeaderLeft, hf.HeaderRight, hf.Footer, hf.PageNumbers)
	return hex.EncodeToString(h.Sum(nil))
}

// RenderedPath is the blob key of a cached rendered document.
func RenderedPath(documentID string, hf models.HeaderFooter) string {
	return path.Join("cache", "rendered", documentID, RenderKey(documentID, hf)+".pdf")
}

// ContentHash returns the hex sha256 of data.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// TempName builds a collision-resistant file name from the current time and a content hash.
func TempName(prefix, contentHash string, now time.Time) string {
	if len(contentHash) > 16 {
		contentHash = contentHash[:16]
	}
	return fmt.Sprintf("%s_%d_%s.pdf", prefix, now.UnixNano(), contentHash)
}

// SafeName reduces a bundle name to letters, digits, dashes, and underscores.
func SafeName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.TrimRight(b.String(), "_")
	if out == "" {
		return "bundle"
	}
	return out
}

// ExportPath is the blob key of an exported bundle.
func ExportPath(bundleID, bundleName string, now time.Time) string {
	name := fmt.Sprintf("%s_%s.pdf", SafeName(bundleName), now.UTC().Format("20060102T150405Z"))
	return path.Join("exports", bundleID, name)
}
