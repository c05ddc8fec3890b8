package edit

import (
	"strings"
	"testing"

	"github.com/abakhtiari/loopscope/internal/mdl"
	"github.com/abakhtiari/loopscope/internal/topology"
)

var modelLines = []string{
	"{UTF-8}",
	"Births  = A FUNCTION OF( Population)",
	"\t~\t",
	"\t~\t\t|",
	"",
	"Population  = A FUNCTION OF( Births)",
	"\t~\t",
	"\t~\t\t|",
	"",
	`\\\---///`,
	"10,1,Population,500,300,40,20,3,3,0,0,-1,0,0,0,0,0,0,0,0,0",
	"10,2,Births,300,300,40,20,40,3,0,0,-1,0,0,0,0,0,0,0,0,0",
	"1,3,2,1,0,0,0,22,0,192,0,-1--1--1,,1|(0,0)|",
	"1,4,1,2,0,0,43,22,0,192,1,-1--1--1,,1|(0,0)|",
	`///---\\\`,
	":L<%^E!@",
}

func parseModel(t *testing.T) *mdl.Model {
	t.Helper()
	m, err := mdl.Parse(strings.Join(modelLines, "\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return m
}

func newTestEditor() *Editor {
	return NewEditor(topology.DefaultPolarityTable())
}

func TestDecodeBatchRejectsUnknownOperation(t *testing.T) {
	_, err := DecodeBatch([]byte(`{"operations":[{"operation":"explode"}]}`))
	if err == nil {
		t.Fatal("unknown operation accepted")
	}
}

func TestDecodeBatchRejectsBadRelationship(t *testing.T) {
	_, err := DecodeBatch([]byte(`{"operations":[{"operation":"add_connection","connection":{"from":"A","to":"B","relationship":"sideways"}}]}`))
	if err == nil {
		t.Fatal("bad relationship accepted")
	}
}

func TestAddVariable(t *testing.T) {
	m := parseModel(t)
	batch, err := DecodeBatch([]byte(`{"operations":[{"operation":"add_variable","variable":{"name":"Deaths","type":"Flow","position":{"x":700,"y":300}},"mdl_comment":"mortality outflow"}]}`))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	res := newTestEditor().Apply(m, batch)
	if res.Applied != 1 || res.Skipped != 0 {
		t.Fatalf("result = %+v", res)
	}
	if res.BatchID == "" {
		t.Fatal("empty batch id")
	}

	id, ok := m.NameToID("Deaths")
	if !ok {
		t.Fatal("Deaths not added")
	}
	if id != 5 {
		t.Fatalf("id = %d, want 5", id)
	}
	n := m.Nodes[id]
	if n.Pos.X != 700 || !n.Synthesized {
		t.Fatalf("node = %+v", n)
	}
	if !strings.Contains(n.Raw, ",40,") {
		t.Fatalf("flow type code missing from record: %q", n.Raw)
	}
	blk, ok := m.EqIndex["Deaths"]
	if !ok {
		t.Fatal("no equation block for Deaths")
	}
	if !strings.Contains(blk.EqLines[0], "A FUNCTION OF( )") {
		t.Fatalf("equation line = %q", blk.EqLines[0])
	}
	if !strings.Contains(blk.DocLine, "mortality outflow") {
		t.Fatalf("doc line = %q", blk.DocLine)
	}

	if err := mdl.SelfCheck(m); err != nil {
		t.Fatalf("SelfCheck after add: %v", err)
	}
}

func TestAddVariableDuplicateSkips(t *testing.T) {
	m := parseModel(t)
	batch, err := DecodeBatch([]byte(`{"operations":[{"operation":"add_variable","variable":{"name":"Population"}}]}`))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	res := newTestEditor().Apply(m, batch)
	if res.Applied != 0 || res.Skipped != 1 {
		t.Fatalf("result = %+v", res)
	}
	if len(m.Nodes) != 2 {
		t.Fatalf("node count changed: %d", len(m.Nodes))
	}
}

func TestAddThenRemoveIsInverse(t *testing.T) {
	m := parseModel(t)
	nodes, eqs, edges := len(m.Nodes), len(m.Equations), len(m.Edges())

	batch, err := DecodeBatch([]byte(`{"operations":[
		{"operation":"add_variable","variable":{"name":"Deaths","type":"Auxiliary"}},
		{"operation":"add_connection","connection":{"from":"Deaths","to":"Population","relationship":"negative"}}
	]}`))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if res := newTestEditor().Apply(m, batch); res.Applied != 2 {
		t.Fatalf("result = %+v", res)
	}

	batch, err = DecodeBatch([]byte(`{"operations":[{"operation":"remove_variable","variable":{"name":"Deaths"}}]}`))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if res := newTestEditor().Apply(m, batch); res.Applied != 1 {
		t.Fatalf("result = %+v", res)
	}

	if len(m.Nodes) != nodes || len(m.Equations) != eqs || len(m.Edges()) != edges {
		t.Fatalf("counts after inverse = %d nodes, %d equations, %d edges; want %d, %d, %d",
			len(m.Nodes), len(m.Equations), len(m.Edges()), nodes, eqs, edges)
	}
}

func TestRemoveVariableCascades(t *testing.T) {
	m := parseModel(t)
	batch, err := DecodeBatch([]byte(`{"operations":[{"operation":"remove_variable","variable":{"name":"Births"}}]}`))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	res := newTestEditor().Apply(m, batch)
	if res.Applied != 1 {
		t.Fatalf("result = %+v", res)
	}
	if _, ok := m.NameToID("Births"); ok {
		t.Fatal("Births still present")
	}
	if _, ok := m.EqIndex["Births"]; ok {
		t.Fatal("Births equation still present")
	}
	// Both arrows touched id 2 and must be gone.
	if got := len(m.Edges()); got != 0 {
		t.Fatalf("%d edges left, want 0", got)
	}
	out := mdl.Render(m)
	if strings.Contains(out, "Births") {
		t.Fatalf("Births survives in output:\n%s", out)
	}
}

func TestAddRemoveConnection(t *testing.T) {
	m := parseModel(t)
	batch, err := DecodeBatch([]byte(`{"operations":[
		{"operation":"add_connection","connection":{"from":"Population","to":"Population","relationship":"negative"}}
	]}`))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	res := newTestEditor().Apply(m, batch)
	if res.Applied != 1 {
		t.Fatalf("result = %+v", res)
	}
	edges := m.Edges()
	if len(edges) != 3 {
		t.Fatalf("%d edges, want 3", len(edges))
	}
	added := edges[2]
	if added.RecordID != 5 || added.FromID != 1 || added.ToID != 1 || added.Disc != "43" {
		t.Fatalf("added edge = %+v", added)
	}
	if !strings.HasPrefix(added.Raw, "1,5,1,1,0,0,43,22,0,192,1,") {
		t.Fatalf("added raw = %q", added.Raw)
	}

	batch, err = DecodeBatch([]byte(`{"operations":[
		{"operation":"remove_connection","connection":{"from":"Population","to":"Population"}}
	]}`))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	res = newTestEditor().Apply(m, batch)
	if res.Applied != 1 {
		t.Fatalf("result = %+v", res)
	}
	if got := len(m.Edges()); got != 2 {
		t.Fatalf("%d edges after remove, want 2", got)
	}
}

func TestModifyConnection(t *testing.T) {
	m := parseModel(t)
	batch, err := DecodeBatch([]byte(`{"operations":[
		{"operation":"modify_connection","connection":{"from":"Births","to":"Population","relationship":"negative"}}
	]}`))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	res := newTestEditor().Apply(m, batch)
	if res.Applied != 1 {
		t.Fatalf("result = %+v", res)
	}
	e := m.Edges()[0]
	if e.Disc != "43" {
		t.Fatalf("discriminator = %q", e.Disc)
	}
	if e.Raw != "1,3,2,1,0,0,43,22,0,192,1,-1--1--1,,1|(0,0)|" {
		t.Fatalf("raw = %q", e.Raw)
	}
}

func TestUnknownEndpointSkipsWithoutAborting(t *testing.T) {
	m := parseModel(t)
	batch, err := DecodeBatch([]byte(`{"operations":[
		{"operation":"add_connection","connection":{"from":"Ghost","to":"Population","relationship":"positive"}},
		{"operation":"add_connection","connection":{"from":"Births","to":"Population","relationship":"positive"}}
	]}`))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	res := newTestEditor().Apply(m, batch)
	if res.Skipped != 1 || res.Applied != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.Changes[0].Applied || res.Changes[0].Detail == "" {
		t.Fatalf("changes[0] = %+v", res.Changes[0])
	}
}

func TestZeroOperationsLeaveTextUntouched(t *testing.T) {
	text := strings.Join(modelLines, "\n")
	m, err := mdl.Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	res := newTestEditor().Apply(m, &Batch{})
	if res.Applied != 0 || res.Skipped != 0 {
		t.Fatalf("result = %+v", res)
	}
	if got := mdl.Render(m); got != text {
		t.Fatalf("zero-op batch changed the text:\n got %q\nwant %q", got, text)
	}
}

func TestAddVariableQuotesName(t *testing.T) {
	m := parseModel(t)
	batch, err := DecodeBatch([]byte(`{"operations":[{"operation":"add_variable","variable":{"name":"Quality, Perceived"}}]}`))
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	res := newTestEditor().Apply(m, batch)
	if res.Applied != 1 {
		t.Fatalf("result = %+v", res)
	}
	id, _ := m.NameToID("Quality, Perceived")
	if !strings.Contains(m.Nodes[id].Raw, `"Quality, Perceived"`) {
		t.Fatalf("raw = %q", m.Nodes[id].Raw)
	}
	if err := mdl.SelfCheck(m); err != nil {
		t.Fatalf("SelfCheck: %v", err)
	}
}
