package constants

import (
	"bytes"
	"strings"
)

// PDFMagic is the header every PDF file starts with.
const PDFMagic = "%PDF-"

// Content types served by the upload endpoint.
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeJSON = "application/json"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// AllowedExtensions holds the file extensions accepted for upload.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether ext (with or without the dot) may be uploaded.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// LooksLikePDF reports whether b starts with the PDF header, ignoring
// leading whitespace some producers emit.
func LooksLikePDF(b []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(b, " \t\r\n\x00"), []byte(PDFMagic))
}
