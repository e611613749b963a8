package format

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/sambeau/seqmacro/pkg/macro/ast"
	"github.com/sambeau/seqmacro/pkg/macro/value"
)

// DocumentVersion is written into every export.
const DocumentVersion = 1

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Document is the exported form of a script: what each macro selects, what
// it calls and its canonical source.
type Document struct {
	Version int        `yaml:"version"`
	Macros  []MacroDoc `yaml:"macros"`
}

type MacroDoc struct {
	Name      string       `yaml:"name"`
	Title     string       `yaml:"title,omitempty"`
	Params    []string     `yaml:"params,omitempty,flow"`
	Keywords  []string     `yaml:"keywords,omitempty,flow"`
	Vars      []VarDoc     `yaml:"vars,omitempty"`
	ForEach   *TargetDoc   `yaml:"for_each,omitempty"`
	Where     string       `yaml:"where,omitempty"`
	Do        []string     `yaml:"do"`
	Functions FunctionsDoc `yaml:"functions"`
	Threads   int          `yaml:"threads,omitempty"`
	Parallel  bool         `yaml:"parallel,omitempty"`
	Source    string       `yaml:"source"`
}

type VarDoc struct {
	Name    string `yaml:"name"`
	Default any    `yaml:"default,omitempty"`
	Ask     bool   `yaml:"ask,omitempty"`
	Choices []any  `yaml:"choices,omitempty,flow"`
}

type TargetDoc struct {
	Selector string  `yaml:"selector,omitempty"`
	From     string  `yaml:"from,omitempty"`
	Range    []int64 `yaml:"range,omitempty,flow"`
	Choice   []any   `yaml:"choice,omitempty,flow"`
}

type FunctionsDoc struct {
	Where []string `yaml:"where,omitempty,flow"`
	Do    []string `yaml:"do,omitempty,flow"`
}

// NewDocument describes every macro of s.
func NewDocument(s *ast.Script) *Document {
	doc := &Document{Version: DocumentVersion}
	for _, m := range s.Macros {
		doc.Macros = append(doc.Macros, macroDoc(m))
	}
	return doc
}

func macroDoc(m *ast.Macro) MacroDoc {
	md := MacroDoc{
		Name:     m.Name,
		Title:    m.Title,
		Params:   m.Params,
		Keywords: m.Keywords,
		Where:    Expression(m.Where),
		Do:       make([]string, len(m.Do)),
		Functions: FunctionsDoc{
			Where: m.WhereFunctions(),
			Do:    m.DoFunctions(),
		},
		Threads:  m.Threads,
		Parallel: m.Parallel,
		Source:   Macro(m),
	}
	for i, st := range m.Do {
		md.Do[i] = Statement(st)
	}
	for _, v := range m.Vars {
		vd := VarDoc{Name: v.Name, Default: v.Default.Interface(), Ask: v.Ask}
		for _, c := range v.Choices {
			vd.Choices = append(vd.Choices, c.Interface())
		}
		md.Vars = append(md.Vars, vd)
	}

	t := m.ForEach
	if t.Selector != "" || t.NamedAnnot != "" || t.Range != nil || len(t.Choice) > 0 {
		td := &TargetDoc{Selector: t.Selector, From: t.NamedAnnot, Choice: interfaces(t.Choice)}
		if t.Range != nil {
			td.Range = []int64{t.Range.Start, t.Range.Stop}
		}
		md.ForEach = td
	}
	return md
}

func interfaces(vals []value.Value) []any {
	if len(vals) == 0 {
		return nil
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v.Interface()
	}
	return out
}

// Export writes s as a YAML document, zstd-compressed when compress is set.
func Export(w io.Writer, s *ast.Script, compress bool) error {
	if !compress {
		return encodeYAML(w, NewDocument(s))
	}
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return err
	}
	if err := encodeYAML(zw, NewDocument(s)); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func encodeYAML(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

// ReadDocument reads an export, compressed or not.
func ReadDocument(r io.Reader) (*Document, error) {
	br := bufio.NewReader(r)
	var src io.Reader = br
	if magic, _ := br.Peek(len(zstdMagic)); bytes.Equal(magic, zstdMagic) {
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		src = zr
	}

	var doc Document
	if err := yaml.NewDecoder(src).Decode(&doc); err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	if doc.Version != DocumentVersion {
		return nil, fmt.Errorf("unsupported export version %d", doc.Version)
	}
	return &doc, nil
}
