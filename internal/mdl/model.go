package mdl

import "fmt"

// Severity grades a parse-time diagnostic.
type Severity string

const (
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// Diagnostic is a non-fatal finding collected while parsing or resolving a
// model. Per-line problems never abort the parse; they accumulate here.
type Diagnostic struct {
	Rule     string   `json:"rule"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Line     int      `json:"line,omitempty"` // 1-based line in the source text, 0 if not line-anchored
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d)", d.Rule, d.Message, d.Line)
	}
	return fmt.Sprintf("%s: %s", d.Rule, d.Message)
}

// Pos is a sketch coordinate pair.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a sketch extent pair.
type Size struct {
	W int `json:"width"`
	H int `json:"height"`
}

// EquationBlock is one variable declaration from the equation section:
// the equation line (possibly continued over several physical lines with a
// trailing backslash), the units line, and the documentation/terminator
// line. Lines are kept verbatim so untouched blocks re-render byte-exact.
type EquationBlock struct {
	Name string

	// EqLines holds the equation line and any continuation lines, verbatim
	// (continuation backslashes included).
	EqLines   []string
	UnitsLine string
	DocLine   string

	// Trailing carries the blank (or otherwise unclaimed) lines that
	// followed this block in the source, verbatim.
	Trailing []string

	// Synthesized marks blocks created by the editor rather than parsed
	// from source.
	Synthesized bool
}

// Lines returns the block's physical lines in source order.
func (b *EquationBlock) Lines() []string {
	out := make([]string, 0, len(b.EqLines)+2+len(b.Trailing))
	out = append(out, b.EqLines...)
	out = append(out, b.UnitsLine, b.DocLine)
	out = append(out, b.Trailing...)
	return out
}

// NodeRecord is a sketch variable record (type code 10): a named node with a
// position and size. The raw line is retained for exact regeneration when
// the record is not modified.
type NodeRecord struct {
	ID   int
	Name string
	Pos  Pos
	Size Size

	Raw         string
	Synthesized bool
}

// ValveRecord is a flow-valve record (type code 11). Only the id and
// position are decoded; the full line lives in the residual list.
type ValveRecord struct {
	ID  int
	Pos Pos
}

// CloudRecord is a source/sink record (type code 12). Records whose style
// code is not the cloud code are annotation boxes and are not indexed as
// clouds, though their lines are preserved.
type CloudRecord struct {
	ID   int
	Code int
	Pos  Pos
}

// cloudStyleCode distinguishes real clouds from annotation boxes that share
// the type-12 record code.
const cloudStyleCode = 48

// EdgeRecord is an arrow record (type code 1). FromID/ToID name sketch ids;
// Disc is the polarity discriminator field (field index 6), empty when the
// record is too short to carry one. The raw line is retained verbatim.
type EdgeRecord struct {
	RecordID int
	FromID   int
	ToID     int
	Disc     string

	Raw         string
	Synthesized bool
}

// ResidualKind tags a residual sketch line.
type ResidualKind int

const (
	ResidualOther ResidualKind = iota
	ResidualEdge
	ResidualValve
	ResidualCloud
)

// ResidualLine is a sketch line that is not a variable record: arrows,
// valves, clouds, and anything unrecognized. Residual lines keep their
// original relative order through edits and regeneration.
type ResidualLine struct {
	Raw  string
	Kind ResidualKind

	Edge  *EdgeRecord
	Valve *ValveRecord
	Cloud *CloudRecord
}

// Model is the parsed form of one MDL file. Every source line is owned by
// exactly one section, verbatim, so rendering an unmodified Model
// reproduces the input byte for byte.
type Model struct {
	// Preamble holds the lines before the first equation (the {UTF-8}
	// marker and any leading blanks).
	Preamble []string

	// Equations in declaration order, with a name index over the same
	// blocks.
	Equations []*EquationBlock
	EqIndex   map[string]*EquationBlock

	// Control is the verbatim control-parameter block: from its marker
	// line to the end of the pre-sketch region.
	Control []string

	// SketchHeader is the sketch marker line plus the view/style prologue,
	// up to the first record line.
	SketchHeader []string

	// Nodes maps sketch id to variable record.
	Nodes map[int]*NodeRecord

	// Residual holds all non-variable sketch lines in source order.
	Residual []*ResidualLine

	// Footer is everything from the sketch end marker onward, verbatim.
	Footer []string

	// Diags are the non-fatal findings accumulated during parsing.
	Diags []Diagnostic

	// MaxID is the highest sketch id seen across nodes, valves, clouds and
	// edge records. The editor allocates fresh ids above it.
	MaxID int
}

// NameToID resolves a variable name to its sketch id. Duplicate names are
// malformed input; the smallest matching id wins so lookups stay
// deterministic across runs.
func (m *Model) NameToID(name string) (int, bool) {
	best := -1
	for id, n := range m.Nodes {
		if n.Name == name && (best < 0 || id < best) {
			best = id
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// IDToName resolves a sketch id to its variable name.
func (m *Model) IDToName(id int) (string, bool) {
	n, ok := m.Nodes[id]
	if !ok {
		return "", false
	}
	return n.Name, true
}

// Valves returns the decoded valve records in residual order.
func (m *Model) Valves() []*ValveRecord {
	var out []*ValveRecord
	for _, r := range m.Residual {
		if r.Kind == ResidualValve {
			out = append(out, r.Valve)
		}
	}
	return out
}

// Clouds returns the decoded cloud records in residual order.
func (m *Model) Clouds() []*CloudRecord {
	var out []*CloudRecord
	for _, r := range m.Residual {
		if r.Kind == ResidualCloud {
			out = append(out, r.Cloud)
		}
	}
	return out
}

// Edges returns the decoded arrow records in residual order.
func (m *Model) Edges() []*EdgeRecord {
	var out []*EdgeRecord
	for _, r := range m.Residual {
		if r.Kind == ResidualEdge {
			out = append(out, r.Edge)
		}
	}
	return out
}

func (m *Model) warn(rule, msg string, line int) {
	m.Diags = append(m.Diags, Diagnostic{Rule: rule, Severity: SeverityWarning, Message: msg, Line: line})
}
