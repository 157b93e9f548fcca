// Package content defines the structural vocabulary of the page tree and
// the key-path selector syntax used to address nodes inside it.
package content

// Node type tags carried by every element of a structural array.
const (
	TypeSection = "section"
	TypeRow     = "row"
	TypeColumn  = "column"
)

// Block kinds allowed inside a column's content array.
var blockTypes = map[string]struct{}{
	"heading": {},
	"text":    {},
	"image":   {},
	"button":  {},
	"embed":   {},
	"quote":   {},
	"divider": {},
	"spacer":  {},
}

// StructuralArrays maps the four structurally-typed array fields to the
// node type their elements must carry. Content blocks are the exception:
// any known block kind is acceptable there.
var StructuralArrays = map[string]string{
	"children": TypeSection,
	"rows":     TypeRow,
	"columns":  TypeColumn,
	"content":  "block",
}

// IsBlockType reports whether t is a known content block kind.
func IsBlockType(t string) bool {
	_, ok := blockTypes[t]
	return ok
}

// KnownNodeType reports whether t is valid for an element of the named
// structural array.
func KnownNodeType(array, t string) bool {
	expected, ok := StructuralArrays[array]
	if !ok {
		return false
	}
	if expected == "block" {
		return IsBlockType(t)
	}
	return t == expected
}

// ExpectedTypeLabel names the type expected for elements of a structural
// array, for use in validation messages.
func ExpectedTypeLabel(array string) string {
	expected := StructuralArrays[array]
	if expected == "block" {
		return "a known block kind (heading, text, image, ...)"
	}
	return `"` + expected + `"`
}
