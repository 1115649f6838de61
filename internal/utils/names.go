package utils

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und)

// StaffNameFromFile derives a staff display name from a reference photo
// filename: the part before the first underscore when one exists, otherwise
// the whole base name, title-cased. "budi_santoso.jpg" -> "Budi".
func StaffNameFromFile(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if idx := strings.Index(base, "_"); idx >= 0 {
		base = base[:idx]
	}
	return titleCaser.String(base)
}
