// Package progress holds the percentage arithmetic shared by the upload
// controller and its views.
package progress

import (
	"math"
	"strconv"
	"strings"
)

const (
	StatusInitial = "Processing: 0%"
	StatusDone    = "Processing: 100%"
	FillInitial   = "0%"
	FillDone      = "100%"
	ErrorPrefix   = "Error: "
)

// EffectiveThreads parses the raw thread-count field. Decimal numbers and
// unsigned 0x, 0o and 0b integers are accepted. Empty, unparsable, zero and
// negative values all count as a single thread.
func EffectiveThreads(raw string) float64 {
	n, err := parseNumber(strings.TrimSpace(raw))
	if err != nil || math.IsNaN(n) || n <= 0 {
		return 1
	}
	return n
}

func parseNumber(s string) (float64, error) {
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(s[2:], base, 64)
			if err != nil {
				return 0, err
			}
			return float64(n), nil
		}
	}
	return strconv.ParseFloat(s, 64)
}

// Percent returns completed/threads as a percentage. threads <= 0 is
// treated as 1.
func Percent(completed, threads float64) float64 {
	if threads <= 0 {
		threads = 1
	}
	return completed / threads * 100
}

// Round rounds half up, so 12.5 becomes 13 and -0.5 becomes 0.
func Round(percent float64) float64 {
	return math.Floor(percent + 0.5)
}

func StatusText(percent float64) string {
	return "Processing: " + formatNumber(Round(percent)) + "%"
}

// FillWidth renders the unrounded percentage as a CSS-style width.
func FillWidth(percent float64) string {
	return formatNumber(percent) + "%"
}

// formatNumber prints v the way a browser stringifies a number: plain
// digits, switching to exponent form at 1e21 and below 1e-6.
func formatNumber(v float64) string {
	switch {
	case v == 0:
		return "0"
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	if abs := math.Abs(v); abs < 1e21 && abs >= 1e-6 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	mant, exp, _ := strings.Cut(strconv.FormatFloat(v, 'e', -1, 64), "e")
	return mant + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0")
}

// Fraction clamps percent into [0, 1] for bar renderers.
func Fraction(percent float64) float64 {
	f := percent / 100
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// ParseFill is the inverse of FillWidth; it returns 0 for malformed input.
func ParseFill(fill string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSuffix(fill, "%"), 64)
	if err != nil {
		return 0
	}
	return v
}
