package mdl

import (
	"sort"
	"strings"
)

// Render re-emits the model as MDL text: preamble, equation blocks in
// declaration order, the control block, the sketch header, variable records
// sorted by id, residual records in original relative order, and the
// footer. Lines that were never modified are emitted verbatim, so a Model
// with zero edits renders byte-identical to its source.
func Render(m *Model) string {
	var lines []string
	lines = append(lines, m.Preamble...)
	for _, blk := range m.Equations {
		lines = append(lines, blk.Lines()...)
	}
	lines = append(lines, m.Control...)
	lines = append(lines, m.SketchHeader...)

	ids := make([]int, 0, len(m.Nodes))
	for id := range m.Nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		lines = append(lines, m.Nodes[id].Raw)
	}

	for _, r := range m.Residual {
		lines = append(lines, r.Raw)
	}
	lines = append(lines, m.Footer...)
	return strings.Join(lines, "\n")
}
