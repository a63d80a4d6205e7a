package domain

// StagedFile is a not-yet-persisted upload: the original filename plus
// the raw bytes selected in the console.
type StagedFile struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// StagedSet holds per-category staged selections for one order. A nil
// map entry and an empty list are equivalent: nothing staged.
type StagedSet map[Category][]StagedFile

// Select replaces the staged list for cat with exactly the given
// files. Repeating a selection for the same category discards the
// prior selection for that category only; other categories are
// untouched.
func (s StagedSet) Select(cat Category, files []StagedFile) {
	s[cat] = append([]StagedFile(nil), files...)
}

// RemoveAt removes one staged entry by position, preserving the
// relative order of its siblings. Out-of-range indexes are a no-op.
func (s StagedSet) RemoveAt(cat Category, index int) {
	list := s[cat]
	if index < 0 || index >= len(list) {
		return
	}
	s[cat] = append(list[:index:index], list[index+1:]...)
}

// Count returns how many files are staged for cat.
func (s StagedSet) Count(cat Category) int {
	return len(s[cat])
}

// MissingRequired returns the first mandatory category with nothing
// staged, in submission-check order (CAD drawings before images), and
// whether one was found.
func (s StagedSet) MissingRequired() (Category, bool) {
	for _, cat := range []Category{CategoryCadDrawing, CategoryImage} {
		if len(s[cat]) == 0 {
			return cat, true
		}
	}
	return "", false
}
