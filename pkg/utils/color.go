package utils

import (
	"strconv"
	"strings"
)

// RGB is a color with 0-255 channels.
type RGB struct {
	R, G, B int
}

// Common colors used as parse fallbacks.
var (
	Yellow = RGB{255, 255, 0}
	Black  = RGB{0, 0, 0}
	White  = RGB{255, 255, 255}
)

// ParseColor parses "#rrggbb", "rrggbb", "#rgb" and "rgb(r, g, b)" strings.
// Anything else, including out-of-range channels, yields fallback.
func ParseColor(s string, fallback RGB) RGB {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return fallback
	}
	if strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")") {
		return parseRGBFunc(s[4:len(s)-1], fallback)
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return fallback
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return fallback
	}
	return RGB{R: int(v >> 16 & 0xff), G: int(v >> 8 & 0xff), B: int(v & 0xff)}
}

func parseRGBFunc(body string, fallback RGB) RGB {
	parts := strings.Split(body, ",")
	if len(parts) != 3 {
		return fallback
	}
	var ch [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return fallback
		}
		ch[i] = n
	}
	return RGB{R: ch[0], G: ch[1], B: ch[2]}
}
