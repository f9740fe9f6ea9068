package fileid

import (
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/pagebind/internal/models"
)

func TestRenderKey(t *testing.T) {
	hf := models.HeaderFooter{HeaderLeft: "Case 1", PageNumbers: true}
	k1 := RenderKey("doc1", hf)
	k2 := RenderKey("doc1", hf)
	if k1 != k2 {
		t.Errorf("same inputs should give same key: %q vs %q", k1, k2)
	}
	if len(k1) != 64 {
		t.Errorf("expected hex sha256, got %q", k1)
	}
	if RenderKey("doc2", hf) == k1 {
		t.Error("different documents should give different keys")
	}
	hf.PageNumbers = false
	if RenderKey("doc1", hf) == k1 {
		t.Error("different header/footer should give different keys")
	}
}

func TestRenderKey_fieldBoundaries(t *testing.T) {
	a := RenderKey("doc", models.HeaderFooter{HeaderLeft: "ab", HeaderRight: "c"})
	b := RenderKey("doc", models.HeaderFooter{HeaderLeft: "a", HeaderRight: "bc"})
	if a == b {
		t.Error("shifting text between fields should change the key")
	}
}

func TestRenderedPath(t *testing.T) {
	p := RenderedPath("doc1", models.HeaderFooter{})
	if !strings.HasPrefix(p, "cache/rendered/doc1/") || !strings.HasSuffix(p, ".pdf") {
		t.Errorf("unexpected path %q", p)
	}
}

func TestTempName(t *testing.T) {
	now := time.Unix(100, 5)
	hash := ContentHash([]byte("x"))
	n1 := TempName("repair", hash, now)
	n2 := TempName("repair", hash, now.Add(time.Nanosecond))
	if n1 == n2 {
		t.Error("different times should give different names")
	}
	if !strings.HasPrefix(n1, "repair_") || !strings.Contains(n1, hash[:16]) {
		t.Errorf("unexpected name %q", n1)
	}
	if TempName("repair", ContentHash([]byte("y")), now) == n1 {
		t.Error("different content should give different names")
	}
}

func TestSafeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Trial Bundle", "Trial_Bundle"},
		{"  a / b : c  ", "a_b_c"},
		{"Smith v. Jones (2024)", "Smith_v_Jones_2024"},
		{"x-y", "x-y"},
		{"", "bundle"},
		{"///", "bundle"},
		{"Café", "Caf"},
	}
	for _, tt := range tests {
		if got := SafeName(tt.in); got != tt.want {
			t.Errorf("SafeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExportPath(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	got := ExportPath("b1", "Trial Bundle", now)
	want := "exports/b1/Trial_Bundle_20240309T140506Z.pdf"
	if got != want {
		t.Errorf("ExportPath = %q, want %q", got, want)
	}
}
