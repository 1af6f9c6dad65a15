package nlquery

import (
	"regexp"
	"time"

	"github.com/kensaku-io/kensaku/internal/models"
)

// relativeDate maps a surface phrase to a lookback window in days. Ordered so
// longer phrases are tried before their prefixes.
type relativeDate struct {
	phrase string
	days   int
}

var relativeDates = []relativeDate{
	{"last month", 60},
	{"this month", 30},
	{"last week", 14},
	{"this week", 7},
	{"last year", 730},
	{"this year", 365},
	{"yesterday", 1},
	{"today", 0},
	{"上月", 60},
	{"本月", 30},
	{"上週", 14},
	{"本週", 7},
	{"去年", 730},
	{"今年", 365},
	{"昨天", 1},
	{"今天", 0},
}

var explicitDateRe = regexp.MustCompile(`\b(\d{4})[-/](\d{1,2})[-/](\d{1,2})\b`)

// extractDateRange finds the first date expression in text, returning the
// range and the text with the matched span removed. Relative phrases win over
// explicit dates when both appear.
func extractDateRange(text string, now time.Time) (*models.DateRange, string) {
	for _, rd := range relativeDates {
		if idx := indexWord(text, rd.phrase); idx >= 0 {
			remaining := maskSpan(text, idx, idx+len(rd.phrase))
			start := now.AddDate(0, 0, -rd.days)
			if rd.days == 0 {
				start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			}
			return &models.DateRange{From: start, To: now}, remaining
		}
	}

	if m := explicitDateRe.FindStringSubmatchIndex(text); m != nil {
		y := atoiSafe(text[m[2]:m[3]])
		mo := atoiSafe(text[m[4]:m[5]])
		d := atoiSafe(text[m[6]:m[7]])
		if mo >= 1 && mo <= 12 && d >= 1 && d <= 31 {
			day := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, now.Location())
			remaining := maskSpan(text, m[0], m[1])
			return &models.DateRange{From: day, To: day.AddDate(0, 0, 1)}, remaining
		}
	}

	return nil, text
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
