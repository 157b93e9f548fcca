package extract

import "regexp"

// Best-effort JSON repair for the two malformations LLMs produce most:
// trailing commas before a closing bracket and unquoted object keys. The
// repair is a narrow, isolated fallback. A block that still fails to parse
// after repair is dropped by the caller, never partially trusted.

var (
	trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)
	bareKeyPattern       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
)

// RepairJSON applies the repair heuristics and returns the rewritten text.
// It does not validate the result; callers re-run the parser on it.
func RepairJSON(raw string) string {
	repaired := trailingCommaPattern.ReplaceAllString(raw, "$1")
	repaired = bareKeyPattern.ReplaceAllString(repaired, `$1"$2":`)
	return repaired
}
