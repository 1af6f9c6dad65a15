package nlquery

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kensaku-io/kensaku/internal/models"
)

var (
	sizeMinRe = regexp.MustCompile(`\b(?:larger than|bigger than|greater than|more than|at least|over)\s+(\d+(?:\.\d+)?)\s*(kb|mb|gb|tb|bytes|byte|b|k|m|g)\b`)
	sizeMaxRe = regexp.MustCompile(`\b(?:smaller than|less than|at most|under)\s+(\d+(?:\.\d+)?)\s*(kb|mb|gb|tb|bytes|byte|b|k|m|g)\b`)
)

// extractSizeRange finds size expressions in text, returning the range and
// the text with matched spans removed. Both bounds may appear in one phrase.
func extractSizeRange(text string) (*models.SizeRange, string) {
	var sr *models.SizeRange

	if m := sizeMinRe.FindStringSubmatchIndex(text); m != nil {
		n := parseSizeBytes(text[m[2]:m[3]], text[m[4]:m[5]])
		if n > 0 {
			sr = &models.SizeRange{Min: n}
			text = maskSpan(text, m[0], m[1])
		}
	}
	if m := sizeMaxRe.FindStringSubmatchIndex(text); m != nil {
		n := parseSizeBytes(text[m[2]:m[3]], text[m[4]:m[5]])
		if n > 0 {
			if sr == nil {
				sr = &models.SizeRange{}
			}
			sr.Max = n
			text = maskSpan(text, m[0], m[1])
		}
	}
	return sr, text
}

// parseSizeBytes converts a number and unit into bytes. Returns 0 on a
// malformed number, which callers treat as no match.
func parseSizeBytes(num, unit string) int64 {
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || f < 0 {
		return 0
	}
	switch strings.ToLower(unit) {
	case "k", "kb":
		f *= 1 << 10
	case "m", "mb":
		f *= 1 << 20
	case "g", "gb":
		f *= 1 << 30
	case "tb":
		f *= 1 << 40
	}
	return int64(f)
}
