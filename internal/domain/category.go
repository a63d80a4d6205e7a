package domain

import (
	"fmt"
	"strings"
)

// Category classifies an order asset. Image and CadDrawing are
// mandatory for a staged submission, TextDocument is optional.
type Category string

const (
	// CategoryImage holds reference photos and renders.
	CategoryImage Category = "image"
	// CategoryCadDrawing holds CAD drawing files.
	CategoryCadDrawing Category = "cad"
	// CategoryTextDocument holds free-form requirement documents.
	CategoryTextDocument Category = "text"
)

// Categories returns all categories in their canonical order.
func Categories() []Category {
	return []Category{CategoryImage, CategoryCadDrawing, CategoryTextDocument}
}

// ParseCategory maps a category name (canonical or backend field form)
// to a Category.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "image", "images":
		return CategoryImage, nil
	case "cad", "cad_files", "cad_drawings":
		return CategoryCadDrawing, nil
	case "text", "text_files", "text_documents":
		return CategoryTextDocument, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

// Required reports whether at least one staged file of this category
// must be present before a submission.
func (c Category) Required() bool {
	return c == CategoryImage || c == CategoryCadDrawing
}

// FieldName returns the multipart field name the backend expects for
// files of this category.
func (c Category) FieldName() string {
	switch c {
	case CategoryImage:
		return "images"
	case CategoryCadDrawing:
		return "cad_files"
	case CategoryTextDocument:
		return "text_files"
	default:
		return string(c)
	}
}

// acceptedExts holds the accepted file extensions per category,
// lowercase, without the leading dot.
var acceptedExts = map[Category][]string{
	CategoryImage:        {"jpg", "jpeg", "png", "webp", "bmp"},
	CategoryCadDrawing:   {"dwg", "dxf", "step", "stp", "igs", "iges"},
	CategoryTextDocument: {"txt", "pdf", "doc", "docx"},
}

// Accepts reports whether a filename's extension belongs to this
// category's accepted set.
func (c Category) Accepts(filename string) bool {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 || idx == len(filename)-1 {
		return false
	}
	ext := strings.ToLower(filename[idx+1:])
	for _, e := range acceptedExts[c] {
		if e == ext {
			return true
		}
	}
	return false
}
