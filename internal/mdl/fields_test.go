package mdl

import (
	"reflect"
	"testing"
)

func TestSplitFieldsQuotedComma(t *testing.T) {
	got := SplitFields(`10,5,"Quality, Perceived",500,300,40,20,3`)
	want := []string{"10", "5", "Quality, Perceived", "500", "300", "40", "20", "3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SplitFields = %q, want %q", got, want)
	}
}

func TestSplitFieldsEscapedQuote(t *testing.T) {
	got := SplitFields(`10,5,"Say ""go""",1,2`)
	if got[2] != `Say "go"` {
		t.Fatalf("field 2 = %q, want %q", got[2], `Say "go"`)
	}
}

func TestSplitFieldsNeverFails(t *testing.T) {
	got := SplitFields(`"unterminated,still one field`)
	if len(got) != 1 {
		t.Fatalf("got %d fields, want 1: %q", len(got), got)
	}
}

func TestJoinFieldsRoundTrip(t *testing.T) {
	lines := []string{
		`10,1,Population,500,300,40,20,3,3,0,0,-1,0,0,0,0,0,0,0,0,0`,
		`10,5,"Quality, Perceived",500,300,40,20,3`,
		`1,3,2,1,0,0,43,22,0,192,1,-1--1--1,,1|(0,0)|`,
	}
	for _, line := range lines {
		if got := JoinFields(SplitFields(line)); got != line {
			t.Fatalf("round trip changed line:\n got %q\nwant %q", got, line)
		}
	}
}

func TestQuoteField(t *testing.T) {
	if got := QuoteField("Population"); got != "Population" {
		t.Fatalf("plain field quoted: %q", got)
	}
	if got := QuoteField("Quality, Perceived"); got != `"Quality, Perceived"` {
		t.Fatalf("comma field = %q", got)
	}
	if got := QuoteField(`a"b`); got != `"a""b"` {
		t.Fatalf("quote field = %q", got)
	}
}
