package ui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// IndentJSON pretty-prints a JSON document with two-space indentation.
// Invalid JSON is returned unchanged.
func IndentJSON(doc []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, doc, "", "  "); err != nil {
		return string(doc)
	}
	return buf.String()
}

// WriteDocumentDiff writes a line diff between two JSON documents, both pretty-printed first.
// Removed lines are prefixed with "-", added lines with "+", unchanged lines with a space.
func WriteDocumentDiff(w io.Writer, title string, from, to []byte, noColor bool) {
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	bold := color.New(color.Bold)
	if noColor {
		red.DisableColor()
		green.DisableColor()
		bold.DisableColor()
	}

	bold.Fprintf(w, "--- %s (stored)\n", title)
	bold.Fprintf(w, "+++ %s (canonical)\n", title)

	dmp := diffpatch.New()
	fromChars, toChars, lines := dmp.DiffLinesToChars(IndentJSON(from)+"\n", IndentJSON(to)+"\n")
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(fromChars, toChars, false), lines)

	for _, d := range diffs {
		for _, line := range splitLines(d.Text) {
			switch d.Type {
			case diffpatch.DiffDelete:
				red.Fprintf(w, "-%s\n", line)
			case diffpatch.DiffInsert:
				green.Fprintf(w, "+%s\n", line)
			default:
				fmt.Fprintf(w, " %s\n", line)
			}
		}
	}
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
