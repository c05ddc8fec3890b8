// Package topology classifies parsed model nodes as Stock, Flow, or
// Auxiliary purely from connection structure, and separates arrow records
// into plumbing (material flow through valves and clouds) versus signed
// causal connections.
package topology

import (
	"fmt"

	"github.com/abakhtiari/loopscope/internal/mdl"
)

// Kind is the structural classification of a variable.
type Kind string

const (
	KindStock     Kind = "Stock"
	KindFlow      Kind = "Flow"
	KindAuxiliary Kind = "Auxiliary"
)

// Polarity is the sign carried by a causal connection.
type Polarity string

const (
	Positive Polarity = "positive"
	Negative Polarity = "negative"
)

// PolarityTable maps the arrow record's discriminator field to a polarity.
// The encoding is a fixed convention of the source format, not a documented
// one, so the table is configuration: values outside both sets resolve to
// positive with a diagnostic rather than silently.
type PolarityTable struct {
	Negative map[string]bool
	Positive map[string]bool
}

// DefaultPolarityTable is the convention observed in the wild: discriminator
// 43 marks a negative arrow; absent or zero means positive.
func DefaultPolarityTable() PolarityTable {
	return PolarityTable{
		Negative: map[string]bool{"43": true},
		Positive: map[string]bool{"": true, "0": true},
	}
}

// Classify resolves a discriminator value. ok is false when the value is in
// neither set; the result is still Positive, and the caller should record a
// diagnostic.
func (t PolarityTable) Classify(disc string) (p Polarity, ok bool) {
	switch {
	case t.Negative[disc]:
		return Negative, true
	case t.Positive[disc]:
		return Positive, true
	default:
		return Positive, false
	}
}

// Marker returns the discriminator value to write for a polarity. For
// negative it picks the table's sole canonical marker when there is exactly
// one; otherwise it falls back to the default convention.
func (t PolarityTable) Marker(p Polarity) string {
	if p == Negative {
		if len(t.Negative) == 1 {
			for v := range t.Negative {
				return v
			}
		}
		return "43"
	}
	return "0"
}

// Connection is a resolved causal edge between two named variables. Seq is
// the edge's position in the residual record list; it orders parallel edges
// deterministically.
type Connection struct {
	From     string
	To       string
	Polarity Polarity
	Edge     *mdl.EdgeRecord
	Seq      int
}

// TypedModel is the result of resolution: the underlying model, a kind per
// variable id, causal connections, plumbing edge records, and any
// diagnostics raised while resolving. It is recomputed from the model's
// current record set, never cached across edits.
type TypedModel struct {
	Model    *mdl.Model
	Kinds    map[int]Kind
	Causal   []Connection
	Plumbing []*mdl.EdgeRecord
	Diags    []mdl.Diagnostic
}

// Kind returns the classification for a variable name.
func (tm *TypedModel) Kind(name string) (Kind, bool) {
	id, ok := tm.Model.NameToID(name)
	if !ok {
		return "", false
	}
	k, ok := tm.Kinds[id]
	return k, ok
}

// Resolve classifies every variable and splits arrow records into plumbing
// and causal sets.
//
// The rules are structural only:
//   - an arrow from a valve to a non-valve marks the target as a Stock;
//     valve-to-valve arrows are plumbing between rates and mark nothing;
//   - a variable whose id is also a valve id and whose name has an equation
//     block is a Flow;
//   - everything else is Auxiliary;
//   - arrows touching a valve or cloud are plumbing; all remaining arrows
//     are causal and carry a polarity from the discriminator table.
func Resolve(m *mdl.Model, table PolarityTable) *TypedModel {
	tm := &TypedModel{
		Model: m,
		Kinds: make(map[int]Kind, len(m.Nodes)),
	}

	valveIDs := make(map[int]bool)
	for _, v := range m.Valves() {
		valveIDs[v.ID] = true
	}
	cloudIDs := make(map[int]bool)
	for _, c := range m.Clouds() {
		cloudIDs[c.ID] = true
	}

	// Pass 1: stocks are the named targets of valve-originated arrows.
	// Arrows between pure valves mark nothing. A named variable that is
	// itself a valve id yet receives material is a conflict, not a plain
	// stock.
	stocks := make(map[int]bool)
	conflicts := make(map[int]bool)
	for _, e := range m.Edges() {
		if !valveIDs[e.FromID] {
			continue
		}
		if _, isVar := m.Nodes[e.ToID]; !isVar {
			continue
		}
		if valveIDs[e.ToID] {
			conflicts[e.ToID] = true
			continue
		}
		stocks[e.ToID] = true
	}

	// Pass 2: kinds per variable. A well-formed diagram never has an id
	// that is both a valve and a stock target; if one appears, the stock
	// rule wins (the node is receiving material) and we warn.
	for id, n := range m.Nodes {
		switch {
		case conflicts[id]:
			tm.Kinds[id] = KindStock
			tm.warn("valve_stock_conflict",
				fmt.Sprintf("id %d is both a valve and a stock target; classifying as Stock", id))
		case stocks[id]:
			tm.Kinds[id] = KindStock
		case valveIDs[id]:
			if _, hasEq := m.EqIndex[n.Name]; hasEq {
				tm.Kinds[id] = KindFlow
			} else {
				tm.Kinds[id] = KindAuxiliary
			}
		default:
			tm.Kinds[id] = KindAuxiliary
		}
	}

	// Pass 3: split arrows into plumbing and causal.
	for seq, r := range m.Residual {
		if r.Kind != mdl.ResidualEdge {
			continue
		}
		e := r.Edge
		if valveIDs[e.FromID] || valveIDs[e.ToID] || cloudIDs[e.FromID] || cloudIDs[e.ToID] {
			tm.Plumbing = append(tm.Plumbing, e)
			continue
		}
		fromName, okFrom := m.IDToName(e.FromID)
		toName, okTo := m.IDToName(e.ToID)
		if !okFrom || !okTo {
			tm.warn("edge_endpoint_unknown",
				fmt.Sprintf("arrow %d references unknown id %d or %d", e.RecordID, e.FromID, e.ToID))
			continue
		}
		p, known := table.Classify(e.Disc)
		if !known {
			tm.warn("polarity_unrecognized",
				fmt.Sprintf("arrow %d has unrecognized discriminator %q; treating as positive", e.RecordID, e.Disc))
		}
		tm.Causal = append(tm.Causal, Connection{
			From:     fromName,
			To:       toName,
			Polarity: p,
			Edge:     e,
			Seq:      seq,
		})
	}

	return tm
}

func (tm *TypedModel) warn(rule, msg string) {
	tm.Diags = append(tm.Diags, mdl.Diagnostic{Rule: rule, Severity: mdl.SeverityWarning, Message: msg})
}
