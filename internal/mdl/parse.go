package mdl

import (
	"errors"
	"strconv"
	"strings"
)

// ErrNoSketchSection is returned when the sketch marker is absent. Without
// the sketch section the model's topology cannot be resolved, so this is
// the one fatal parse condition.
var ErrNoSketchSection = errors.New("mdl: no sketch section found")

const (
	sketchMarker    = `\\\---///`
	sketchEndMarker = `///---\\\`
	controlMarker   = "***"
	continuation    = `\`
	blockTerminator = "|"
)

// Parse reads MDL text into a Model. Per-line problems are collected as
// diagnostics on the returned Model; only a missing sketch marker fails the
// whole parse.
func Parse(text string) (*Model, error) {
	lines := strings.Split(text, "\n")

	sketchStart := -1
	for i, line := range lines {
		if strings.Contains(line, sketchMarker) {
			sketchStart = i
			break
		}
	}
	if sketchStart < 0 {
		return nil, ErrNoSketchSection
	}

	m := &Model{
		EqIndex: make(map[string]*EquationBlock),
		Nodes:   make(map[int]*NodeRecord),
	}
	parseEquationSection(m, lines[:sketchStart])
	parseSketchSection(m, lines[sketchStart:], sketchStart)
	return m, nil
}

// parseEquationSection consumes the pre-sketch lines: a preamble, ordered
// equation blocks, and the verbatim control-parameter block.
func parseEquationSection(m *Model, lines []string) {
	i := 0

	// Preamble: everything before the first equation line ({UTF-8} marker,
	// leading blanks).
	for i < len(lines) {
		line := lines[i]
		if isControlStart(line) || isEquationStart(line) {
			break
		}
		m.Preamble = append(m.Preamble, line)
		i++
	}

	for i < len(lines) {
		line := lines[i]

		if isControlStart(line) {
			m.Control = append(m.Control, lines[i:]...)
			return
		}

		if !isEquationStart(line) {
			// Unclaimed line between blocks: keep it with the previous
			// block so regeneration stays byte-exact.
			if strings.TrimSpace(line) != "" {
				m.warn("equation_unrecognized", "line is neither an equation start nor blank: "+strings.TrimSpace(line), i+1)
			}
			if n := len(m.Equations); n > 0 {
				blk := m.Equations[n-1]
				blk.Trailing = append(blk.Trailing, line)
			} else {
				m.Preamble = append(m.Preamble, line)
			}
			i++
			continue
		}

		blk := &EquationBlock{Name: equationName(line)}
		blk.EqLines = append(blk.EqLines, line)
		i++
		for hasContinuation(blk.EqLines[len(blk.EqLines)-1]) && i < len(lines) {
			blk.EqLines = append(blk.EqLines, lines[i])
			i++
		}

		if i < len(lines) {
			blk.UnitsLine = lines[i]
			i++
		} else {
			m.warn("equation_truncated", "equation block for "+blk.Name+" is missing its units line", 0)
		}
		if i < len(lines) {
			blk.DocLine = lines[i]
			i++
			if !strings.HasSuffix(strings.TrimRight(blk.DocLine, " \t"), blockTerminator) {
				m.warn("equation_terminator", "documentation line for "+blk.Name+" does not end with "+blockTerminator, i)
			}
		} else {
			m.warn("equation_truncated", "equation block for "+blk.Name+" is missing its documentation line", 0)
		}

		// Blank separators belong to the block they follow.
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" && !isControlStart(lines[i]) {
			blk.Trailing = append(blk.Trailing, lines[i])
			i++
		}

		if _, dup := m.EqIndex[blk.Name]; dup {
			m.warn("equation_duplicate", "duplicate equation for variable "+blk.Name, 0)
		}
		m.Equations = append(m.Equations, blk)
		m.EqIndex[blk.Name] = blk
	}
}

func isControlStart(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), controlMarker)
}

// isEquationStart reports whether the line opens an equation block: it must
// contain an unquoted '=' with a non-empty left-hand side.
func isEquationStart(line string) bool {
	idx := unquotedIndex(line, '=')
	if idx < 0 {
		return false
	}
	return strings.TrimSpace(line[:idx]) != ""
}

// equationName extracts the variable name left of the first unquoted '=',
// stripping one layer of quotes if present.
func equationName(line string) string {
	idx := unquotedIndex(line, '=')
	name := strings.TrimSpace(line[:idx])
	return Unquote(name)
}

// Unquote strips one layer of surrounding double quotes and resolves the
// doubled-quote escape. Unquoted input is returned as is.
func Unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
	}
	return s
}

// unquotedIndex returns the index of the first occurrence of ch outside a
// double-quoted span, or -1.
func unquotedIndex(s string, ch byte) int {
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '"':
			inQuotes = !inQuotes
		case s[i] == ch && !inQuotes:
			return i
		}
	}
	return -1
}

func hasContinuation(line string) bool {
	return strings.HasSuffix(strings.TrimRight(line, " \t"), continuation)
}

// parseSketchSection consumes the sketch marker line and everything after
// it: the header prologue, variable records, residual records, and the
// verbatim footer. offset is the 0-based index of the marker line in the
// whole file, used for diagnostics.
func parseSketchSection(m *Model, lines []string, offset int) {
	end := len(lines)
	for i, line := range lines {
		if i > 0 && strings.Contains(line, sketchEndMarker) {
			end = i
			break
		}
	}

	start := end
	for i, line := range lines {
		if i >= end {
			break
		}
		if isRecordLine(line) {
			start = i
			break
		}
	}
	m.SketchHeader = append(m.SketchHeader, lines[:start]...)

	for i := start; i < end; i++ {
		parseSketchLine(m, lines[i], offset+i+1)
	}

	m.Footer = append(m.Footer, lines[end:]...)
}

func isRecordLine(line string) bool {
	return strings.HasPrefix(line, "10,") ||
		strings.HasPrefix(line, "11,") ||
		strings.HasPrefix(line, "12,") ||
		strings.HasPrefix(line, "1,")
}

func parseSketchLine(m *Model, line string, lineNo int) {
	switch {
	case strings.HasPrefix(line, "10,"):
		if n := parseNodeRecord(m, line, lineNo); n != nil {
			if _, dup := m.Nodes[n.ID]; dup {
				m.warn("node_duplicate_id", "duplicate sketch id "+strconv.Itoa(n.ID), lineNo)
			}
			for id, other := range m.Nodes {
				if id != n.ID && other.Name == n.Name {
					m.warn("node_duplicate_name", "duplicate variable name "+n.Name, lineNo)
					break
				}
			}
			m.Nodes[n.ID] = n
			m.noteID(n.ID)
			return
		}
		// Malformed variable record: preserved verbatim, skipped for
		// structure.
		m.Residual = append(m.Residual, &ResidualLine{Raw: line})
	case strings.HasPrefix(line, "11,"):
		m.Residual = append(m.Residual, parseValveLine(m, line, lineNo))
	case strings.HasPrefix(line, "12,"):
		m.Residual = append(m.Residual, parseCloudLine(m, line, lineNo))
	case strings.HasPrefix(line, "1,"):
		m.Residual = append(m.Residual, parseEdgeLine(m, line, lineNo))
	default:
		m.Residual = append(m.Residual, &ResidualLine{Raw: line})
	}
}

func parseNodeRecord(m *Model, line string, lineNo int) *NodeRecord {
	fields := SplitFields(line)
	if len(fields) < 8 {
		m.warn("node_malformed", "variable record has too few fields", lineNo)
		return nil
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		m.warn("node_malformed", "variable record has non-integer id "+fields[1], lineNo)
		return nil
	}
	n := &NodeRecord{ID: id, Name: fields[2], Raw: line}
	n.Pos.X, n.Pos.Y = atoiDefault(fields[3]), atoiDefault(fields[4])
	n.Size.W, n.Size.H = atoiDefault(fields[5]), atoiDefault(fields[6])
	return n
}

func parseValveLine(m *Model, line string, lineNo int) *ResidualLine {
	fields := SplitFields(line)
	if len(fields) < 5 {
		m.warn("valve_malformed", "valve record has too few fields", lineNo)
		return &ResidualLine{Raw: line}
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		m.warn("valve_malformed", "valve record has non-integer id "+fields[1], lineNo)
		return &ResidualLine{Raw: line}
	}
	m.noteID(id)
	v := &ValveRecord{ID: id}
	v.Pos.X, v.Pos.Y = atoiDefault(fields[3]), atoiDefault(fields[4])
	return &ResidualLine{Raw: line, Kind: ResidualValve, Valve: v}
}

func parseCloudLine(m *Model, line string, lineNo int) *ResidualLine {
	fields := SplitFields(line)
	if len(fields) < 5 {
		m.warn("cloud_malformed", "cloud record has too few fields", lineNo)
		return &ResidualLine{Raw: line}
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		m.warn("cloud_malformed", "cloud record has non-integer id "+fields[1], lineNo)
		return &ResidualLine{Raw: line}
	}
	m.noteID(id)
	c := &CloudRecord{ID: id, Code: atoiDefault(fields[2])}
	c.Pos.X, c.Pos.Y = atoiDefault(fields[3]), atoiDefault(fields[4])
	if c.Code != cloudStyleCode {
		// Annotation box sharing the type-12 code: keep the line but do
		// not index it as a cloud.
		return &ResidualLine{Raw: line}
	}
	return &ResidualLine{Raw: line, Kind: ResidualCloud, Cloud: c}
}

func parseEdgeLine(m *Model, line string, lineNo int) *ResidualLine {
	fields := SplitFields(line)
	if len(fields) < 4 {
		m.warn("edge_malformed", "arrow record has too few fields", lineNo)
		return &ResidualLine{Raw: line}
	}
	recID, err1 := strconv.Atoi(fields[1])
	fromID, err2 := strconv.Atoi(fields[2])
	toID, err3 := strconv.Atoi(fields[3])
	if err1 != nil || err2 != nil || err3 != nil {
		m.warn("edge_malformed", "arrow record has non-integer ids", lineNo)
		return &ResidualLine{Raw: line}
	}
	m.noteID(recID)
	e := &EdgeRecord{RecordID: recID, FromID: fromID, ToID: toID, Raw: line}
	if len(fields) > 6 {
		e.Disc = fields[6]
	}
	return &ResidualLine{Raw: line, Kind: ResidualEdge, Edge: e}
}

func (m *Model) noteID(id int) {
	if id > m.MaxID {
		m.MaxID = id
	}
}

func atoiDefault(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
