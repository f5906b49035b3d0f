package cmd

import (
	"fmt"
	"io"
	"strings"
)

// streamPrinter writes a streamed reply incrementally. Every update carries
// the whole reply so far; only the new suffix is written.
type streamPrinter struct {
	out     io.Writer
	printed string
}

func newStreamPrinter(out io.Writer) *streamPrinter {
	return &streamPrinter{out: out}
}

func (p *streamPrinter) update(text string, done bool) {
	switch {
	case strings.HasPrefix(text, p.printed):
		fmt.Fprint(p.out, text[len(p.printed):])
	default:
		// the worker rewrote earlier text
		fmt.Fprint(p.out, "\n"+text)
	}
	p.printed = text
}

// end terminates the reply line if anything was written.
func (p *streamPrinter) end() {
	if p.printed != "" {
		fmt.Fprintln(p.out)
	}
	p.printed = ""
}
