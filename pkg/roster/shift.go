package roster

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/bsecurity/rosterwatch/internal/utils"
)

// DayKind classifies what a day cell's content means.
type DayKind int

const (
	// NotRostered means the cell is empty or holds the placeholder entity.
	NotRostered DayKind = iota
	// NotFinalized means the roster is published but still provisional.
	NotFinalized
	// Rostered means the cell holds one or more shift lines.
	Rostered
)

// ShiftRecord is one parsed shift line: a single-character shift-type code,
// start and end times as HHMM integers, and the rostered hours.
type ShiftRecord struct {
	Type  string
	Start int
	End   int
	Hours int
}

// DayOutcome is the classification result for one target date.
type DayOutcome struct {
	Kind       DayKind
	Date       TargetDate
	CellText   string
	Shifts     []ShiftRecord
	TotalHours int
}

// Classify inspects a day cell's content and returns its outcome. Cells that
// are non-empty but yield no parsable shift lines still classify as Rostered,
// just with an empty record list; only individual malformed lines are dropped.
func Classify(cellContent string, date TargetDate) DayOutcome {
	text := normalizeCellText(cellContent)
	out := DayOutcome{Date: date, CellText: text}

	switch {
	case text == "" || text == "&nbsp;":
		out.Kind = NotRostered
	case strings.Contains(strings.ToLower(text), "not finalised"):
		out.Kind = NotFinalized
	default:
		out.Kind = Rostered
		for _, line := range splitLines(text) {
			rec, err := parseShiftLine(line)
			if err != nil {
				utils.Log.Warnf("Could not parse shift line %q for %s: %v", line, date.ISO(), err)
				continue
			}
			out.Shifts = append(out.Shifts, rec)
			out.TotalHours += rec.Hours
		}
	}

	return out
}

// parseShiftLine parses one "D0600-1400 (8)" style line. A record is only
// produced when the code, both times and the hours all parse; anything less
// is an error so partial records never escape.
func parseShiftLine(line string) (ShiftRecord, error) {
	line = strings.TrimSpace(line)
	if len(line) < 2 {
		return ShiftRecord{}, fmt.Errorf("line too short")
	}

	code := line[:1]
	rest := strings.TrimSpace(line[1:])

	timesPart, hoursPart, found := strings.Cut(rest, "(")
	if !found {
		return ShiftRecord{}, fmt.Errorf("missing hours group")
	}

	startStr, endStr, found := strings.Cut(strings.TrimSpace(timesPart), "-")
	if !found {
		return ShiftRecord{}, fmt.Errorf("missing time range separator")
	}

	start, err := parseClock(startStr)
	if err != nil {
		return ShiftRecord{}, fmt.Errorf("bad start time: %w", err)
	}
	end, err := parseClock(endStr)
	if err != nil {
		return ShiftRecord{}, fmt.Errorf("bad end time: %w", err)
	}
	hours, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(hoursPart), ")")))
	if err != nil {
		return ShiftRecord{}, fmt.Errorf("bad hours: %w", err)
	}

	return ShiftRecord{Type: code, Start: start, End: end, Hours: hours}, nil
}

// parseClock converts an HHMM string to its integer form with leading zeros
// stripped; an all-zero or empty string is midnight.
func parseClock(s string) (int, error) {
	s = strings.TrimLeft(strings.TrimSpace(s), "0")
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

// normalizeCellText turns a cell's content into plain trimmed text with real
// line breaks. Depending on how the portal rendered the day the content can
// arrive with its <br/> markup intact, so any markup is flattened first.
func normalizeCellText(content string) string {
	if strings.Contains(content, "<") {
		content = renderText(content)
	}
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.TrimSpace(strings.Trim(content, "  \n\t"))
}

// renderText walks the parsed markup collecting text nodes, turning <br>
// elements into newlines.
func renderText(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return markup
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		if n.Type == html.ElementNode && n.Data == "br" {
			b.WriteString("\n")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return b.String()
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
