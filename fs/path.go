// Package fs provides file-system storage for downloaded media.
package fs

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fwojciec/fetchq"
)

// DefaultMaxFileNameLength is the default limit for file names in bytes.
const DefaultMaxFileNameLength = 95

// URLToName derives a file name from the last path segment of a URL.
// Characters that are unsafe in file names are replaced with "_".
// Example: https://cdn.example.com/a/b/My%20Photo.JPG?x=1 → My Photo.JPG
func URLToName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fetchq.Errorf(fetchq.EINVALID, "invalid URL %q: %v", rawURL, err)
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		name = "index"
	}
	return SanitizeName(name), nil
}

// SanitizeName replaces characters that are not allowed in file names on
// common file systems.
func SanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(`<>:"/\|?*`, r), unicode.IsControl(r):
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, " .")
	if name == "" {
		return "_"
	}
	return name
}

// TruncateName shortens name to at most maxLen bytes, keeping the extension.
// A maxLen of zero or less leaves the name unchanged.
func TruncateName(name string, maxLen int) string {
	if maxLen <= 0 || len(name) <= maxLen {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) >= maxLen {
		ext = ""
	}
	stem := name[:len(name)-len(filepath.Ext(name))]
	limit := maxLen - len(ext)
	for len(stem) > limit {
		_, size := utf8.DecodeLastRuneInString(stem)
		stem = stem[:len(stem)-size]
	}
	return stem + ext
}

// DestinationPath returns <baseDir>/<domain>/<name> for a downloadable URL.
func DestinationPath(baseDir string, domain fetchq.DomainKey, rawURL string, maxNameLen int) string {
	name, err := URLToName(rawURL)
	if err != nil {
		name = "_"
	}
	return filepath.Join(baseDir, SanitizeName(domain.String()), TruncateName(name, maxNameLen))
}
