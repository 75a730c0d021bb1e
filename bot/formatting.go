package bot

import (
	"fmt"
	"strings"
	"time"
)

// Embed colors
const (
	ColorPrimary = 0x5865F2 // weekly summary
	ColorSuccess = 0x57F287 // point awards
	ColorWarning = 0xFEE75C // quota exhausted
	ColorInfo    = 0x3498DB // daily summary
)

// FormatPoints formats a point total with thousand separators
func FormatPoints(points int64) string {
	sign := ""
	if points < 0 {
		sign = "-"
		points = -points
	}
	str := fmt.Sprintf("%d", points)

	n := len(str)
	if n <= 3 {
		return sign + str
	}

	var result strings.Builder
	result.WriteString(sign)
	for i, digit := range str {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(digit)
	}
	return result.String()
}

// FormatDiscordTimestamp renders t as a Discord timestamp tag so each reader
// sees it in their own zone. "R" gives relative time, "f" date and time.
func FormatDiscordTimestamp(t time.Time, format string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), format)
}

// medal returns the rank marker used in standings lists
func medal(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d.", rank)
	}
}

func truncateName(name string, max int) string {
	runes := []rune(name)
	if len(runes) <= max {
		return name
	}
	return string(runes[:max-3]) + "..."
}
