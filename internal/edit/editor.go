package edit

import (
	"fmt"
	"strconv"

	"github.com/oklog/ulid/v2"

	"github.com/abakhtiari/loopscope/internal/mdl"
	"github.com/abakhtiari/loopscope/internal/topology"
)

// Entry is one line of the changes log: what an operation did, or why it
// was skipped. A skipped operation never aborts the batch.
type Entry struct {
	Operation string `json:"operation"`
	Target    string `json:"target"`
	Applied   bool   `json:"applied"`
	Detail    string `json:"detail,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

// Result is the outcome of one batch: an id for correlating logs and
// artifacts, the per-operation changes log, and counts.
type Result struct {
	BatchID string  `json:"batch_id"`
	Changes []Entry `json:"changes"`
	Applied int     `json:"applied"`
	Skipped int     `json:"skipped"`
}

// Editor applies operation batches to a model in place. The polarity table
// supplies the discriminator to write for each relationship.
type Editor struct {
	Table topology.PolarityTable
}

// NewEditor returns an editor using the given polarity table.
func NewEditor(table topology.PolarityTable) *Editor {
	return &Editor{Table: table}
}

// Apply runs every operation of the batch in order. Operations that cannot
// apply (unknown variable, duplicate name, missing payload) are recorded as
// skipped and the batch continues.
func (ed *Editor) Apply(m *mdl.Model, batch *Batch) *Result {
	res := &Result{BatchID: ulid.Make().String()}
	for _, op := range batch.Operations {
		e := ed.applyOne(m, op)
		e.Comment = op.MDLComment
		if e.Applied {
			res.Applied++
		} else {
			res.Skipped++
		}
		res.Changes = append(res.Changes, e)
	}
	return res
}

func (ed *Editor) applyOne(m *mdl.Model, op Operation) Entry {
	switch op.Operation {
	case OpAddVariable:
		return ed.addVariable(m, op)
	case OpRemoveVariable:
		return ed.removeVariable(m, op)
	case OpAddConnection:
		return ed.addConnection(m, op)
	case OpRemoveConnection:
		return ed.removeConnection(m, op)
	case OpModifyConnection:
		return ed.modifyConnection(m, op)
	default:
		return Entry{Operation: op.Operation, Detail: "unknown operation"}
	}
}

// Sketch defaults for synthesized variable records.
const (
	defaultVarX = 500
	defaultVarY = 500
	defaultVarW = 40
	defaultVarH = 20
)

func typeCode(t string) int {
	switch t {
	case "Stock":
		return 3
	case "Flow":
		return 40
	default:
		return 0
	}
}

func (ed *Editor) addVariable(m *mdl.Model, op Operation) Entry {
	e := Entry{Operation: OpAddVariable}
	if op.Variable == nil {
		e.Detail = "missing variable payload"
		return e
	}
	v := op.Variable
	e.Target = v.Name
	if _, exists := m.NameToID(v.Name); exists {
		e.Detail = "variable already exists"
		return e
	}

	x, y := defaultVarX, defaultVarY
	if v.Position != nil {
		x, y = v.Position.X, v.Position.Y
	}
	w, h := defaultVarW, defaultVarH
	if v.Size != nil {
		w, h = v.Size.Width, v.Size.Height
	}

	id := m.MaxID + 1
	m.MaxID = id
	raw := fmt.Sprintf("10,%d,%s,%d,%d,%d,%d,%d,3,0,0,-1,0,0,0,0,0,0,0,0,0",
		id, mdl.QuoteField(v.Name), x, y, w, h, typeCode(v.Type))
	m.Nodes[id] = &mdl.NodeRecord{
		ID:          id,
		Name:        v.Name,
		Pos:         mdl.Pos{X: x, Y: y},
		Size:        mdl.Size{W: w, H: h},
		Raw:         raw,
		Synthesized: true,
	}

	// A variable needs an equation block or the file will not load; new
	// variables get the editable placeholder form.
	if _, has := m.EqIndex[v.Name]; !has {
		doc := "\t~\t\t|"
		if op.MDLComment != "" {
			doc = "\t~\t" + op.MDLComment + "\t|"
		}
		blk := &mdl.EquationBlock{
			Name:        v.Name,
			EqLines:     []string{mdl.QuoteField(v.Name) + "  = A FUNCTION OF( )"},
			UnitsLine:   "\t~\t",
			DocLine:     doc,
			Trailing:    []string{""},
			Synthesized: true,
		}
		m.Equations = append(m.Equations, blk)
		m.EqIndex[v.Name] = blk
	}

	e.Applied = true
	e.Detail = "added as id " + strconv.Itoa(id)
	return e
}

func (ed *Editor) removeVariable(m *mdl.Model, op Operation) Entry {
	e := Entry{Operation: OpRemoveVariable}
	if op.Variable == nil {
		e.Detail = "missing variable payload"
		return e
	}
	name := op.Variable.Name
	e.Target = name
	id, ok := m.NameToID(name)
	if !ok {
		e.Detail = "variable not found"
		return e
	}

	delete(m.Nodes, id)

	if blk, has := m.EqIndex[name]; has {
		delete(m.EqIndex, name)
		for i, b := range m.Equations {
			if b == blk {
				m.Equations = append(m.Equations[:i], m.Equations[i+1:]...)
				break
			}
		}
	}

	// Arrows referencing the removed id dangle; cascade them out.
	removed := 0
	kept := m.Residual[:0]
	for _, r := range m.Residual {
		if r.Kind == mdl.ResidualEdge && (r.Edge.FromID == id || r.Edge.ToID == id) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.Residual = kept

	e.Applied = true
	e.Detail = fmt.Sprintf("removed id %d and %d connection(s)", id, removed)
	return e
}

func (ed *Editor) addConnection(m *mdl.Model, op Operation) Entry {
	e := Entry{Operation: OpAddConnection}
	if op.Connection == nil {
		e.Detail = "missing connection payload"
		return e
	}
	c := op.Connection
	e.Target = c.From + " -> " + c.To

	fromID, okFrom := m.NameToID(c.From)
	toID, okTo := m.NameToID(c.To)
	if !okFrom || !okTo {
		e.Detail = "endpoint variable not found"
		return e
	}

	p := topology.Positive
	if c.Relationship == string(topology.Negative) {
		p = topology.Negative
	}
	disc := ed.Table.Marker(p)
	flag := 0
	if p == topology.Negative {
		flag = 1
	}

	recID := m.MaxID + 1
	m.MaxID = recID
	raw := fmt.Sprintf("1,%d,%d,%d,0,0,%s,22,0,192,%d,-1--1--1,,1|(0,0)|",
		recID, fromID, toID, disc, flag)
	m.Residual = append(m.Residual, &mdl.ResidualLine{
		Raw:  raw,
		Kind: mdl.ResidualEdge,
		Edge: &mdl.EdgeRecord{
			RecordID:    recID,
			FromID:      fromID,
			ToID:        toID,
			Disc:        disc,
			Raw:         raw,
			Synthesized: true,
		},
	})

	e.Applied = true
	e.Detail = fmt.Sprintf("added %s arrow as record %d", p, recID)
	return e
}

func (ed *Editor) removeConnection(m *mdl.Model, op Operation) Entry {
	e := Entry{Operation: OpRemoveConnection}
	if op.Connection == nil {
		e.Detail = "missing connection payload"
		return e
	}
	c := op.Connection
	e.Target = c.From + " -> " + c.To

	fromID, okFrom := m.NameToID(c.From)
	toID, okTo := m.NameToID(c.To)
	if !okFrom || !okTo {
		e.Detail = "endpoint variable not found"
		return e
	}

	// Parallel arrows between the same pair are all removed.
	removed := 0
	kept := m.Residual[:0]
	for _, r := range m.Residual {
		if r.Kind == mdl.ResidualEdge && r.Edge.FromID == fromID && r.Edge.ToID == toID {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.Residual = kept

	if removed == 0 {
		e.Detail = "no such connection"
		return e
	}
	e.Applied = true
	e.Detail = fmt.Sprintf("removed %d arrow(s)", removed)
	return e
}

// modifyConnection rewrites the polarity fields of every arrow between the
// named endpoints in place, leaving the rest of each record untouched.
func (ed *Editor) modifyConnection(m *mdl.Model, op Operation) Entry {
	e := Entry{Operation: OpModifyConnection}
	if op.Connection == nil {
		e.Detail = "missing connection payload"
		return e
	}
	c := op.Connection
	e.Target = c.From + " -> " + c.To
	if c.Relationship == "" {
		e.Detail = "missing relationship"
		return e
	}

	fromID, okFrom := m.NameToID(c.From)
	toID, okTo := m.NameToID(c.To)
	if !okFrom || !okTo {
		e.Detail = "endpoint variable not found"
		return e
	}

	p := topology.Positive
	if c.Relationship == string(topology.Negative) {
		p = topology.Negative
	}
	disc := ed.Table.Marker(p)
	flag := "0"
	if p == topology.Negative {
		flag = "1"
	}

	modified := 0
	for _, r := range m.Residual {
		if r.Kind != mdl.ResidualEdge || r.Edge.FromID != fromID || r.Edge.ToID != toID {
			continue
		}
		fields := mdl.SplitFields(r.Raw)
		if len(fields) <= 6 {
			e.Detail = "arrow record too short to carry a polarity"
			continue
		}
		fields[6] = disc
		if len(fields) > 10 {
			fields[10] = flag
		}
		r.Raw = mdl.JoinFields(fields)
		r.Edge.Raw = r.Raw
		r.Edge.Disc = disc
		modified++
	}

	if modified == 0 {
		if e.Detail == "" {
			e.Detail = "no such connection"
		}
		return e
	}
	e.Applied = true
	e.Detail = fmt.Sprintf("set %d arrow(s) to %s", modified, p)
	return e
}
