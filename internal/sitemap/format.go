package sitemap

import (
	"strconv"
	"time"
)

// W3C datetime with an explicit offset, e.g. 2024-03-01T10:20:30+02:00.
const timestampLayout = "2006-01-02T15:04:05-07:00"

// FormatTimestamp renders t in the W3C datetime subset of ISO 8601 used by
// lastmod and video:publication_date.
func FormatTimestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
