package report

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"
)

// Renderer turns a laid-out Document into file bytes.
type Renderer interface {
	Render(ctx context.Context, doc *Document) ([]byte, error)
	// Extension is the file extension the output should be saved with.
	Extension() string
}

// TextRenderer writes a Document as plain text, one line per element.
type TextRenderer struct {
	// Columns is the width of rules. Defaults to 72.
	Columns int
}

func (r TextRenderer) Extension() string { return ".txt" }

// Render never fails.
func (r TextRenderer) Render(_ context.Context, doc *Document) ([]byte, error) {
	cols := r.Columns
	if cols <= 0 {
		cols = 72
	}
	labelWidth := int(ValueColumn / 10)

	var buf bytes.Buffer
	for i, page := range doc.Pages {
		if i > 0 {
			buf.WriteString("\n")
		}
		fmt.Fprintf(&buf, "--- Page %d of %d ---\n", i+1, len(doc.Pages))
		for _, el := range page.Elements {
			indent := strings.Repeat(" ", int(math.Round((el.X-doc.Margin)/5)))
			switch el.Kind {
			case KindRule:
				buf.WriteString(strings.Repeat("-", cols))
			case KindRow:
				fmt.Fprintf(&buf, "%s%-*s %s", indent, labelWidth, el.Text, el.Value)
			default:
				text := el.Text
				if el.Bold && el.Section != SectionScore && el.Size >= 12 {
					text = strings.ToUpper(text)
				}
				buf.WriteString(indent + text)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes(), nil
}
