package format

import "strings"

// Printer builds formatted source one line at a time. Lines are indented
// by the current block depth when their first text is written.
type Printer struct {
	buf    strings.Builder
	depth  int
	column int
}

func NewPrinter() *Printer {
	return &Printer{}
}

func (p *Printer) String() string { return p.buf.String() }

func (p *Printer) Reset() { *p = Printer{} }

// text appends s to the current line.
func (p *Printer) text(s string) {
	if s == "" {
		return
	}
	if p.column == 0 {
		pad := strings.Repeat(IndentString, p.depth)
		p.buf.WriteString(pad)
		p.column = len(pad)
	}
	p.buf.WriteString(s)
	p.column += len(s)
}

// line ends the current line with s.
func (p *Printer) line(s string) {
	p.text(s)
	p.buf.WriteByte('\n')
	p.column = 0
}

// block prints the lines written by fn one level deeper.
func (p *Printer) block(fn func()) {
	p.depth++
	fn()
	p.depth--
}

// fits reports whether s can go on the current line without passing width.
func (p *Printer) fits(s string, width int) bool {
	col := p.column
	if col == 0 {
		col = p.depth * IndentWidth
	}
	return !strings.Contains(s, "\n") && col+len(s) <= width
}
