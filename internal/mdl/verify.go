package mdl

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/zeebo/blake3"
)

// TextKey returns the BLAKE3 fingerprint of raw model text. It keys the
// analysis cache and identifies model revisions in reports.
func TextKey(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Fingerprint hashes everything a render emits per section: node records,
// equation blocks line by line, the sketch header, and every residual
// record. Two models with the same fingerprint regenerate the same
// sections, so a drifted render cannot slip past SelfCheck.
func Fingerprint(m *Model) string {
	h := blake3.New()
	write := func(s string) {
		h.Write([]byte(s))
		h.Write([]byte{0})
	}

	ids := make([]int, 0, len(m.Nodes))
	for id := range m.Nodes {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		n := m.Nodes[id]
		write("n" + strconv.Itoa(id))
		write(n.Name)
		write(n.Raw)
	}
	for _, blk := range m.Equations {
		write("e" + blk.Name)
		for _, line := range blk.Lines() {
			write(line)
		}
	}
	for _, line := range m.SketchHeader {
		write("h" + line)
	}
	for _, r := range m.Residual {
		write("r" + r.Raw)
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}

// SelfCheck renders the model, re-parses the output, and compares
// structural fingerprints. Callers run it after an edit batch to detect
// render drift instead of assuming the output is faithful.
func SelfCheck(m *Model) error {
	rendered := Render(m)
	back, err := Parse(rendered)
	if err != nil {
		return fmt.Errorf("mdl: rendered output does not re-parse: %w", err)
	}
	if got, want := Fingerprint(back), Fingerprint(m); got != want {
		return fmt.Errorf("mdl: rendered output re-parses to a different structure (fingerprint %s, want %s)", got[:12], want[:12])
	}
	return nil
}

// VerifyRoundTrip parses text and renders it back, reporting an error if
// the output is not byte-identical. This is the zero-edit round-trip
// contract for well-formed files.
func VerifyRoundTrip(text string) error {
	m, err := Parse(text)
	if err != nil {
		return err
	}
	if rendered := Render(m); rendered != text {
		return fmt.Errorf("mdl: round trip altered the text (input %s, output %s)", TextKey(text)[:12], TextKey(rendered)[:12])
	}
	return nil
}
