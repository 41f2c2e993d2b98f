package constants

import "strings"

// FileKind classifies inputs picked up by the locator.
type FileKind string

const (
	FileKindOrder   FileKind = "ORDER" // sales order PDF
	FileKindEmail   FileKind = "EMAIL" // shipment notification body
	FileKindUnknown FileKind = "UNKNOWN"
)

// OrderExtensions holds the extensions accepted as order documents.
var OrderExtensions = map[string]struct{}{
	"pdf": {},
}

// EmailExtensions holds the extensions accepted as email bodies.
var EmailExtensions = map[string]struct{}{
	"eml": {},
	"txt": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// KindForExt maps a file extension to the input kind it carries.
func KindForExt(ext string) FileKind {
	e := NormalizeExt(ext)
	if _, ok := OrderExtensions[e]; ok {
		return FileKindOrder
	}
	if _, ok := EmailExtensions[e]; ok {
		return FileKindEmail
	}
	return FileKindUnknown
}
