// Package board parses and updates the markdown task board: the single
// source of truth for task status, priority, dependencies, and scope.
package board

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/harrison/wiggum/internal/models"
)

// md is the goldmark parser the board is read with. A task item's leading
// glyph is one of: "[ ]" pending, "[x]"/"[X]" done, "[~]" in-progress, "[!]" failed,
// "[b]" blocked, "[?]" pending-approval.
var md = goldmark.New()

const (
	glyphPending  = " "
	glyphDone     = "x"
	glyphDoneAlt  = "X"
	glyphWIP      = "~"
	glyphFailed   = "!"
	glyphBlocked  = "b"
	glyphApproval = "?"
)

func statusForGlyph(g string) string {
	switch g {
	case glyphDone, glyphDoneAlt:
		return models.StatusDone
	case glyphWIP:
		return models.StatusInProgress
	case glyphFailed:
		return models.StatusFailed
	case glyphBlocked:
		return models.StatusBlocked
	case glyphApproval:
		return models.StatusPendingApproval
	default:
		return models.StatusPending
	}
}

func glyphForStatus(status string) string {
	switch status {
	case models.StatusDone:
		return glyphDone
	case models.StatusInProgress:
		return glyphWIP
	case models.StatusFailed:
		return glyphFailed
	case models.StatusBlocked:
		return glyphBlocked
	case models.StatusPendingApproval:
		return glyphApproval
	default:
		return glyphPending
	}
}

// headPattern recognizes the head line of a task item:
// "- [ ] [AUTH-12] Add login endpoint"
// Parsing walks goldmark's AST for list items, then applies this regex
// to the item's first raw line to pull out the glyph, ID, and title.
var headPattern = regexp.MustCompile(`^\[([ xX~!b?])\]\s+\[([A-Z]{2,8}-[0-9]{1,4})\]\s*(.*)$`)

// fieldPattern recognizes a "Key: value" metadata line nested under a task.
var fieldPattern = regexp.MustCompile(`^([A-Za-z ]+):\s*(.*)$`)

// ParseMarkdown parses raw board content into ordered tasks. Field lines
// nested under a task item (Priority, Description, Dependencies, Scope)
// are read from the list item's continuation text.
func ParseMarkdown(source []byte) ([]models.Task, error) {
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var tasks []models.Task
	var walkErr error

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		item, ok := n.(*ast.ListItem)
		if !ok {
			return ast.WalkContinue, nil
		}

		lines := itemLines(item, source)
		if len(lines) == 0 {
			return ast.WalkContinue, nil
		}

		m := headPattern.FindStringSubmatch(strings.TrimSpace(lines[0]))
		if m == nil {
			return ast.WalkContinue, nil
		}

		task := models.Task{
			ID:          m[2],
			Status:      statusForGlyph(m[1]),
			Description: strings.TrimSpace(m[3]),
			Priority:    models.PriorityMedium,
		}

		for _, line := range lines[1:] {
			fm := fieldPattern.FindStringSubmatch(strings.TrimSpace(line))
			if fm == nil {
				continue
			}
			key := strings.ToLower(strings.TrimSpace(fm[1]))
			val := strings.TrimSpace(fm[2])
			switch key {
			case "priority":
				task.Priority = models.ParsePriority(strings.ToUpper(val))
			case "description":
				if task.Description == "" {
					task.Description = val
				}
			case "dependencies":
				task.Dependencies = splitCSV(val)
			case "scope":
				task.Scope = splitCSV(val)
			case "acceptance criteria":
				task.AcceptanceCriteria = splitCSV(val)
			}
		}

		if err := task.Validate(); err != nil {
			walkErr = fmt.Errorf("board item %q: %w", lines[0], err)
			return ast.WalkStop, nil
		}

		tasks = append(tasks, task)
		return ast.WalkContinue, nil
	})

	if walkErr != nil {
		return nil, walkErr
	}
	return tasks, nil
}

// itemLines extracts the raw text lines belonging to a list item,
// including nested continuation lines, from the original source bytes.
func itemLines(item *ast.ListItem, source []byte) []string {
	var out []string
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		lines := c.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			out = append(out, string(seg.Value(source)))
		}
	}
	// A raw line segment keeps its line ending; split on literal newlines
	// so each returned entry is a single line.
	var flat []string
	for _, line := range out {
		flat = append(flat, strings.Split(line, "\n")...)
	}
	return flat
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RenderMarkdown serializes tasks back to board markdown, preserving the
// field order the parser understands. Used by SetStatus to rewrite the
// board after a status transition.
func RenderMarkdown(tasks []models.Task) []byte {
	var b bytes.Buffer
	for _, t := range tasks {
		fmt.Fprintf(&b, "- [%s] [%s] %s\n", glyphForStatus(t.Status), t.ID, t.Description)
		fmt.Fprintf(&b, "  Priority: %s\n", t.Priority.String())
		if len(t.Dependencies) > 0 {
			fmt.Fprintf(&b, "  Dependencies: %s\n", strings.Join(t.Dependencies, ", "))
		}
		if len(t.Scope) > 0 {
			fmt.Fprintf(&b, "  Scope: %s\n", strings.Join(t.Scope, ", "))
		}
		if len(t.AcceptanceCriteria) > 0 {
			fmt.Fprintf(&b, "  Acceptance Criteria: %s\n", strings.Join(t.AcceptanceCriteria, ", "))
		}
		b.WriteString("\n")
	}
	return b.Bytes()
}
