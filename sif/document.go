// Package sif builds Elmer solver input files.
//
// A file is a list of sections, each rendered as
//
//	! optional comment
//	Name
//	  Key = Value
//	End
//
// Sections are separated by one blank line; a negative Gap joins a section
// directly to the previous End.
package sif

import (
	"math"
	"strconv"
	"strings"
)

type Entry struct {
	Key   string
	Value string
	// Assign renders "Key = Value"; otherwise "Key Value".
	Assign bool
}

const defaultIndent = "  "

type Section struct {
	Comment string
	// extra blank lines before the section, used to group related sections
	Gap     int
	Name    string
	Entries []Entry
	// entry indentation, two spaces when empty
	Indent string
}

type Document struct {
	Sections []Section
}

func NewSection(name string) *Section {
	return &Section{Name: name}
}

// Set appends a "Key = Value" line.
func (s *Section) Set(key, value string) *Section {
	s.Entries = append(s.Entries, Entry{Key: key, Value: value, Assign: true})
	return s
}

// Directive appends a "Key Value" line.
func (s *Section) Directive(key, value string) *Section {
	s.Entries = append(s.Entries, Entry{Key: key, Value: value})
	return s
}

func (s *Section) WithComment(comment string, gap int) *Section {
	s.Comment = comment
	s.Gap = gap
	return s
}

// Join renders the section right after the previous one, without a blank line.
func (s *Section) Join() *Section {
	s.Gap = -1
	return s
}

func (s *Section) WithIndent(indent string) *Section {
	s.Indent = indent
	return s
}

func (d *Document) Add(s *Section) {
	d.Sections = append(d.Sections, *s)
}

// Render serialises the document. It is the only place that knows the layout.
func (d Document) Render() string {
	var b strings.Builder
	for i, s := range d.Sections {
		if i > 0 && s.Gap >= 0 {
			b.WriteString("\n")
		}
		if s.Gap > 0 {
			b.WriteString(strings.Repeat("\n", s.Gap))
		}
		if s.Comment != "" {
			b.WriteString("! ")
			b.WriteString(s.Comment)
			b.WriteString("\n")
		}
		b.WriteString(s.Name)
		b.WriteString("\n")
		indent := s.Indent
		if indent == "" {
			indent = defaultIndent
		}
		for _, e := range s.Entries {
			b.WriteString(indent)
			b.WriteString(e.Key)
			if e.Assign {
				b.WriteString(" = ")
			} else {
				b.WriteString(" ")
			}
			b.WriteString(e.Value)
			b.WriteString("\n")
		}
		b.WriteString("End\n")
	}
	return b.String()
}

// Find returns the first section with the given name.
func (d Document) Find(name string) (Section, bool) {
	for _, s := range d.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// Value looks up a key inside a section.
func (s Section) Value(key string) (string, bool) {
	for _, e := range s.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return "", false
}

// FormatReal renders a float the way the solver files have always carried
// them: shortest form, integral values keep a trailing ".0", and very large or
// very small magnitudes switch to exponent notation.
func FormatReal(v float64) string {
	a := math.Abs(v)
	if v != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".NI") {
		s += ".0"
	}
	return s
}

func quote(s string) string {
	return `"` + s + `"`
}
