package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if got := Truncate("hello world", 8); got != "hello..." {
		t.Errorf("got %s", got)
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("hello", 2); got != ".." {
		t.Errorf("tiny budget: got %q", got)
	}
	if got := Truncate("Zeugenaussage Müller", 10); got != "Zeugena..." {
		t.Errorf("runes: got %q", got)
	}
}
