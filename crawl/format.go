package crawl

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// labelWidth is the display width of task labels.
const labelWidth = 40

// TruncateURL shortens a URL for display, keeping the end which is more informative.
func TruncateURL(url string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if maxLen < 4 {
		// Too short for "..." prefix, just return dots
		return url[:min(len(url), maxLen)]
	}
	if len(url) <= maxLen {
		return url
	}
	return "..." + url[len(url)-maxLen+3:]
}

// FormatBytes formats bytes in human-readable form.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// AdjustTitle fits s into width characters, cutting it with a "..." suffix
// when it does not fit.
func AdjustTitle(s string, width int) string {
	const placeholder = "..."
	r := []rune(s)
	if len(r) < width {
		return s
	}
	if width <= len(placeholder) {
		return string(r[:max(width, 0)])
	}
	return string(r[:width-len(placeholder)]) + placeholder
}

// Label derives a short display label for a task from its URL: the last
// path segment, or the host when the path is empty.
func Label(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return AdjustTitle(rawURL, labelWidth)
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		name = u.Host
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = rawURL
	}
	return AdjustTitle(name, labelWidth)
}
