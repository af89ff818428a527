package formats

import (
	"path/filepath"
	"strings"
)

type Kind int

const (
	KindOther Kind = iota
	KindPdf
	KindDocx
	KindImage
)

func (k Kind) String() string {
	switch k {
	case KindPdf:
		return "pdf"
	case KindDocx:
		return "docx"
	case KindImage:
		return "image"
	}
	return "other"
}

// OCR and image-to-PDF accept these extensions.
var imageExtensions = []string{"jpg", "jpeg", "png", "bmp", "tif", "tiff"}

var mimeToExt = map[string]string{
	"application/pdf": "pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/bmp":  "bmp",
	"image/tiff": "tiff",
}

func Ext(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(strings.TrimSpace(fileName)), "."))
}

// Classify prefers the file extension and falls back to the MIME type when the
// name has none.
func Classify(fileName, mimeType string) Kind {
	ext := Ext(fileName)
	if ext == "" {
		ext = mimeToExt[strings.ToLower(strings.TrimSpace(mimeType))]
	}

	switch {
	case ext == "pdf":
		return KindPdf
	case ext == "docx":
		return KindDocx
	case contains(imageExtensions, ext):
		return KindImage
	}
	return KindOther
}

func IsImageMime(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// ExtForMime returns the canonical extension for a MIME type, or "".
func ExtForMime(mimeType string) string {
	return mimeToExt[strings.ToLower(strings.TrimSpace(mimeType))]
}

// ResultName swaps the extension of originalName for targetExt.
func ResultName(originalName string, targetExt string) string {
	targetExt = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(targetExt), "."))
	if targetExt == "" {
		targetExt = "bin"
	}

	originalName = strings.TrimSpace(originalName)
	if originalName == "" {
		return "converted." + targetExt
	}

	base := filepath.Base(originalName)
	if filepath.Ext(base) == "" {
		return base + "." + targetExt
	}
	return strings.TrimSuffix(base, filepath.Ext(base)) + "." + targetExt
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
