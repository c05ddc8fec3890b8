package mdl

import "strings"

// SplitFields tokenizes one line of MDL text into its comma-separated fields.
// Double-quoted spans are atomic: commas inside quotes do not split, and a
// doubled quote ("") inside a quoted span is an escaped literal quote. The
// surrounding quote delimiters are stripped from the returned fields.
//
// SplitFields never fails; a malformed line simply yields fewer fields than
// the caller expects, and record parsers must check the count before
// indexing.
func SplitFields(line string) []string {
	var fields []string
	var b strings.Builder
	inQuotes := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				// Escaped quote inside a quoted span.
				b.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			fields = append(fields, b.String())
			b.Reset()
		default:
			b.WriteByte(ch)
		}
	}
	fields = append(fields, b.String())
	return fields
}

// JoinFields is the inverse of SplitFields for regenerated lines: fields
// containing a comma or a quote are wrapped in quotes with internal quotes
// doubled. Fields that need no quoting are emitted verbatim, so a line whose
// fields were plain round-trips unchanged.
func JoinFields(fields []string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(QuoteField(f))
	}
	return b.String()
}

// QuoteField quotes a single field if its content requires it.
func QuoteField(f string) string {
	if !strings.ContainsAny(f, `,"`) {
		return f
	}
	return `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
}
