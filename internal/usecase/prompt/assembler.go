// Package prompt turns a ranked selection into the text sent to the
// generative model.
package prompt

import (
	_ "embed"
	"strconv"
	"strings"

	"github.com/kailas-cloud/shortlist/internal/usecase/rank"
)

//go:embed preamble.md
var defaultPreamble string

// Assembler renders a deterministic prompt. It never shortens document text:
// bounding the prompt is Budget's job and happens before Assemble.
type Assembler struct {
	preamble string
}

// NewAssembler creates an Assembler. An empty preamble selects the built-in one.
func NewAssembler(preamble string) *Assembler {
	if strings.TrimSpace(preamble) == "" {
		preamble = defaultPreamble
	}
	return &Assembler{preamble: strings.TrimSpace(preamble)}
}

// Assemble renders: preamble, the query, the requested count, then every
// selected document labeled by its 1-based rank position.
func (a *Assembler) Assemble(selected []rank.Candidate, query string, count int) string {
	var b strings.Builder

	b.WriteString(a.preamble)
	b.WriteString("\n\nQuery:\n")
	b.WriteString(query)
	b.WriteString("\n\nRequested candidates: ")
	b.WriteString(strconv.Itoa(count))
	b.WriteString("\n")

	for i, c := range selected {
		b.WriteString("\nDocument ")
		b.WriteString(strconv.Itoa(i + 1))
		if name := c.Record.Name(); name != "" {
			b.WriteString(" (")
			b.WriteString(name)
			b.WriteString(")")
		}
		b.WriteString(":\n")
		b.WriteString(c.Record.Text())
		b.WriteString("\n")
	}

	return b.String()
}
