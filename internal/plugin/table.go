package plugin

import (
	"strconv"
	"strings"

	"github.com/roach88/rootsolve/internal/variant"
)

// cellWidth is the text width of one documentation grid column.
const cellWidth = 15

// RenderDoc renders a plugin's documentation: the description paragraph
// followed by its option table.
func RenderDoc(doc string, table OptionTable) string {
	var b strings.Builder
	b.WriteString(wrapParagraph(doc, 72))
	b.WriteString("\n\n>List of available options\n\n")
	b.WriteString(RenderTable(table))
	return b.String()
}

// RenderTable renders the option table as a fixed-width grid with columns
// Id, Type, Default and Description, rows in table order.
func RenderTable(table OptionTable) string {
	var b strings.Builder
	rule := gridRule('-')
	b.WriteString(rule)
	writeRow(&b, []string{center("Id"), center("Type"), center("Default"), center("Description")})
	b.WriteString(gridRule('='))
	for _, o := range table {
		cols := [][]string{
			wrap(o.Name, cellWidth),
			wrap(o.Type.String(), cellWidth),
			wrap(plainValue(o.Default), cellWidth),
			wrap(o.Description, cellWidth),
		}
		lines := 0
		for _, c := range cols {
			lines = max(lines, len(c))
		}
		for i := 0; i < lines; i++ {
			row := make([]string, len(cols))
			for j, c := range cols {
				if i < len(c) {
					row[j] = c[i]
				}
			}
			writeRow(&b, row)
		}
		b.WriteString(rule)
	}
	return b.String()
}

func gridRule(fill byte) string {
	seg := strings.Repeat(string(fill), cellWidth+2)
	return "+" + strings.Repeat(seg+"+", 4) + "\n"
}

func writeRow(b *strings.Builder, cells []string) {
	b.WriteByte('|')
	for _, c := range cells {
		b.WriteByte(' ')
		b.WriteString(c)
		b.WriteString(strings.Repeat(" ", cellWidth-len(c)))
		b.WriteString(" |")
	}
	b.WriteByte('\n')
}

func center(s string) string {
	pad := cellWidth - len(s)
	left := pad / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", pad-left)
}

// wrap breaks text into lines of at most width bytes, splitting on spaces
// and hard-splitting words that are longer than a line.
func wrap(text string, width int) []string {
	var lines []string
	var cur string
	for _, word := range strings.Fields(text) {
		for len(word) > width {
			if cur != "" {
				lines = append(lines, cur)
				cur = ""
			}
			lines = append(lines, word[:width])
			word = word[width:]
		}
		switch {
		case cur == "":
			cur = word
		case len(cur)+1+len(word) <= width:
			cur += " " + word
		default:
			lines = append(lines, cur)
			cur = word
		}
	}
	if cur != "" || len(lines) == 0 {
		lines = append(lines, cur)
	}
	return lines
}

func wrapParagraph(text string, width int) string {
	return strings.Join(wrap(text, width), "\n")
}

// plainValue renders a default without the type tag used by Value.String.
func plainValue(v variant.Value) string {
	switch v.Type() {
	case variant.TypeNull:
		return ""
	case variant.TypeBool:
		b, _ := v.AsBool()
		return strconv.FormatBool(b)
	case variant.TypeInt:
		n, _ := v.AsInt()
		return strconv.Itoa(n)
	case variant.TypeDouble:
		d, _ := v.AsDouble()
		return strconv.FormatFloat(d, 'g', -1, 64)
	case variant.TypeString:
		s, _ := v.AsString()
		return s
	}
	s := v.String()
	// strip "<type>(" ... ")"
	if i := strings.IndexByte(s, '('); i >= 0 && strings.HasSuffix(s, ")") {
		return s[i+1 : len(s)-1]
	}
	return s
}
