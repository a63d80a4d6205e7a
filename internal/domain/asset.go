package domain

// WorkItemAssets is one underlying backend record holding a subset of
// an order's persisted assets as per-category path arrays.
type WorkItemAssets struct {
	Images        []string
	CadDrawings   []string
	TextDocuments []string
}

// AssetSet is an order's persisted assets, one server-relative path
// list per category, addressed by positional index only. The set is
// replaced wholesale after every mutation — index addressing makes
// partial local patching unsafe when server-side ordering is not
// guaranteed stable across a delete.
type AssetSet map[Category][]string

// EmptyAssetSet returns a set with an empty list per category.
func EmptyAssetSet() AssetSet {
	return AssetSet{
		CategoryImage:        {},
		CategoryCadDrawing:   {},
		CategoryTextDocument: {},
	}
}

// FlattenAssets concatenates every work item's per-category arrays
// into a single list per category, preserving record order.
func FlattenAssets(items []WorkItemAssets) AssetSet {
	set := EmptyAssetSet()
	for _, it := range items {
		set[CategoryImage] = append(set[CategoryImage], it.Images...)
		set[CategoryCadDrawing] = append(set[CategoryCadDrawing], it.CadDrawings...)
		set[CategoryTextDocument] = append(set[CategoryTextDocument], it.TextDocuments...)
	}
	return set
}

// At returns the path at a positional index within a category.
func (s AssetSet) At(cat Category, index int) (string, bool) {
	list := s[cat]
	if index < 0 || index >= len(list) {
		return "", false
	}
	return list[index], true
}

// Count returns the number of persisted paths in a category.
func (s AssetSet) Count(cat Category) int {
	return len(s[cat])
}
