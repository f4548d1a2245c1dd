package countdown

import (
	"strconv"
	"strings"
)

// TimePlaceholder is substituted with the formatted remaining time in every template.
const TimePlaceholder = "{time}"

// FormatDuration renders whole seconds as "1h 2m 3s". Leading zero units are dropped,
// minutes are kept once hours are present, and seconds are always shown.
func FormatDuration(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	var b strings.Builder
	if hours > 0 {
		b.WriteString(strconv.Itoa(hours))
		b.WriteString("h ")
	}
	if minutes > 0 || hours > 0 {
		b.WriteString(strconv.Itoa(minutes))
		b.WriteString("m ")
	}
	b.WriteString(strconv.Itoa(seconds))
	b.WriteString("s")
	return b.String()
}

// Render replaces every {time} placeholder in template with the formatted duration.
func Render(template string, remaining int) string {
	if !strings.Contains(template, TimePlaceholder) {
		return template
	}
	return strings.ReplaceAll(template, TimePlaceholder, FormatDuration(remaining))
}
