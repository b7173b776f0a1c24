package clifmt

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

const (
	defaultTableWidth    = 100
	defaultMinLastColumn = 24
)

// TableOptions describes a left aligned table whose last column wraps to the
// terminal width.
type TableOptions struct {
	Title     string
	Headers   []string
	Rows      [][]string
	EmptyText string
	// Highlight, when set, paints the first cell of a row green or red.
	Highlight func(row []string) (ok bool, apply bool)
	Width     int
}

func PrintTable(out io.Writer, opts TableOptions) {
	if out == nil {
		out = os.Stdout
	}

	if title := strings.TrimSpace(opts.Title); title != "" {
		fmt.Fprintln(out, Headerf("%s (%d)", title, len(opts.Rows)))
	}
	if len(opts.Rows) == 0 {
		empty := strings.TrimSpace(opts.EmptyText)
		if empty == "" {
			empty = "No entries."
		}
		fmt.Fprintln(out, Warn(empty))
		return
	}

	cols := len(opts.Headers)
	for _, row := range opts.Rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return
	}

	widths := make([]int, cols)
	for i := 0; i < cols-1; i++ {
		widths[i] = utf8.RuneCountInString(cell(opts.Headers, i))
		for _, row := range opts.Rows {
			if w := utf8.RuneCountInString(cell(row, i)); w > widths[i] {
				widths[i] = w
			}
		}
	}
	widths[cols-1] = lastColumnWidth(out, widths[:cols-1], opts.Width)

	header := make([]string, cols)
	rule := make([]string, cols)
	for i := range header {
		header[i] = Key(padRightRunes(cell(opts.Headers, i), widths[i]))
		rule[i] = Dim(strings.Repeat("-", widths[i]))
	}
	fmt.Fprintln(out, strings.TrimRight(strings.Join(header, "  "), " "))
	fmt.Fprintln(out, strings.Join(rule, "  "))

	for _, row := range opts.Rows {
		lines := wrapTextRunes(cell(row, cols-1), widths[cols-1])
		parts := make([]string, cols)
		for i := 0; i < cols-1; i++ {
			text := padRightRunes(cell(row, i), widths[i])
			if i == 0 && opts.Highlight != nil {
				if ok, apply := opts.Highlight(row); apply {
					if ok {
						text = Success(text)
					} else {
						text = Failure(text)
					}
				}
			}
			parts[i] = text
		}
		parts[cols-1] = lines[0]
		fmt.Fprintln(out, strings.TrimRight(strings.Join(parts, "  "), " "))

		indent := 0
		for _, w := range widths[:cols-1] {
			indent += w + 2
		}
		for _, line := range lines[1:] {
			fmt.Fprintf(out, "%s%s\n", strings.Repeat(" ", indent), line)
		}
	}
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func lastColumnWidth(out io.Writer, leading []int, width int) int {
	if width <= 0 {
		width = defaultTableWidth
		if file, ok := out.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
			if w, _, err := term.GetSize(int(file.Fd())); err == nil && w > 0 {
				width = w
			}
		}
	}
	for _, w := range leading {
		width -= w + 2
	}
	if width < defaultMinLastColumn {
		width = defaultMinLastColumn
	}
	return width
}

func padRightRunes(s string, width int) string {
	missing := width - utf8.RuneCountInString(s)
	if missing <= 0 {
		return s
	}
	return s + strings.Repeat(" ", missing)
}

func wrapTextRunes(text string, width int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{""}
	}
	if width <= 0 {
		return []string{text}
	}

	words := strings.Fields(text)
	lines := make([]string, 0, len(words))
	current := ""
	flush := func() {
		if current != "" {
			lines = append(lines, current)
			current = ""
		}
	}

	for _, word := range words {
		for utf8.RuneCountInString(word) > width {
			flush()
			runes := []rune(word)
			lines = append(lines, string(runes[:width]))
			word = string(runes[width:])
		}
		switch {
		case word == "":
		case current == "":
			current = word
		case utf8.RuneCountInString(current)+1+utf8.RuneCountInString(word) <= width:
			current += " " + word
		default:
			flush()
			current = word
		}
	}
	flush()

	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
