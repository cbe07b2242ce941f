// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

// Package docxmath renders Office Math Markup (OMML) from DOCX documents as
// LaTeX source.
package docxmath

import (
	"fmt"
	"strings"

	"github.com/nicholasgasior/markitdown-web/internal/ooxml"
)

// Namespace is the OMML namespace used by m:oMath elements.
const Namespace = "http://schemas.openxmlformats.org/officeDocument/2006/math"

const (
	rowBreak = `\\`
	colSep   = "&"
)

// ToLaTeX renders an m:oMath or m:oMathPara element. Equations inside a
// paragraph are separated by line breaks.
func ToLaTeX(n *ooxml.Node) string {
	if n.Name() == "oMathPara" {
		var eqs []string
		for _, m := range n.Children("oMath") {
			if s := strings.TrimSpace(children(m)); s != "" {
				eqs = append(eqs, s)
			}
		}
		return strings.Join(eqs, " "+rowBreak+" ")
	}
	return strings.TrimSpace(children(n))
}

func children(n *ooxml.Node) string {
	var b strings.Builder
	for i := range n.Nodes {
		b.WriteString(element(&n.Nodes[i]))
	}
	return b.String()
}

// arg renders the named child, or "" when it is absent.
func arg(n *ooxml.Node, local string) string {
	if c := n.Child(local); c != nil {
		return strings.TrimSpace(children(c))
	}
	return ""
}

// prop reads <m:xPr><m:key m:val="..."/></m:xPr>. ok reports whether the
// property element exists, since an empty value is meaningful for delimiters.
func prop(n *ooxml.Node, pr, key string) (val string, ok bool) {
	p := n.Child(pr)
	if p == nil {
		return "", false
	}
	c := p.Child(key)
	if c == nil {
		return "", false
	}
	return c.Attr("val"), true
}

func element(n *ooxml.Node) string {
	switch n.Name() {
	case "r":
		return run(n)
	case "acc":
		return accent(n)
	case "bar":
		if pos, _ := prop(n, "barPr", "pos"); pos == "bot" {
			return fmt.Sprintf(`\underline{%s}`, arg(n, "e"))
		}
		return fmt.Sprintf(`\overline{%s}`, arg(n, "e"))
	case "d":
		return delimiter(n)
	case "f":
		return fraction(n)
	case "func":
		return function(n)
	case "groupChr":
		return group(n)
	case "rad":
		if deg := arg(n, "deg"); deg != "" {
			return fmt.Sprintf(`\sqrt[%s]{%s}`, deg, arg(n, "e"))
		}
		return fmt.Sprintf(`\sqrt{%s}`, arg(n, "e"))
	case "eqArr":
		return `\begin{array}{c}` + rows(n, "e") + `\end{array}`
	case "m":
		var rs []string
		for _, mr := range n.Children("mr") {
			rs = append(rs, cells(mr))
		}
		return `\begin{matrix}` + strings.Join(rs, rowBreak) + `\end{matrix}`
	case "limLow":
		return lowerLimit(n)
	case "limUpp":
		return fmt.Sprintf(`\overset{%s}{%s}`, arg(n, "lim"), arg(n, "e"))
	case "nary":
		return nary(n)
	case "sSub":
		return fmt.Sprintf("%s_{%s}", arg(n, "e"), arg(n, "sub"))
	case "sSup":
		return fmt.Sprintf("%s^{%s}", arg(n, "e"), arg(n, "sup"))
	case "sSubSup":
		return fmt.Sprintf("%s_{%s}^{%s}", arg(n, "e"), arg(n, "sub"), arg(n, "sup"))
	case "sPre":
		return fmt.Sprintf("{}_{%s}^{%s}%s", arg(n, "sub"), arg(n, "sup"), arg(n, "e"))
	case "oMath", "box", "borderBox", "phant", "e", "num", "den", "deg", "lim", "sub", "sup", "fName":
		return children(n)
	}
	return ""
}

func rows(n *ooxml.Node, local string) string {
	var rs []string
	for _, e := range n.Children(local) {
		rs = append(rs, strings.TrimSpace(children(e)))
	}
	return strings.Join(rs, rowBreak)
}

func cells(mr *ooxml.Node) string {
	var cs []string
	for _, e := range mr.Children("e") {
		cs = append(cs, strings.TrimSpace(children(e)))
	}
	return strings.Join(cs, colSep)
}

// run renders the text of an m:r, mapping math alphanumerics and symbols to
// their LaTeX spelling.
func run(n *ooxml.Node) string {
	var b strings.Builder
	for _, t := range n.Children("t") {
		for _, r := range t.Text {
			b.WriteString(symbol(r))
		}
	}
	return b.String()
}

func accent(n *ooxml.Node) string {
	cmd := `\hat`
	if chr, ok := prop(n, "accPr", "chr"); ok {
		if c, known := accents[chr]; known {
			cmd = c
		}
	}
	return fmt.Sprintf("%s{%s}", cmd, arg(n, "e"))
}

func group(n *ooxml.Node) string {
	cmd := `\underbrace`
	if chr, ok := prop(n, "groupChrPr", "chr"); ok {
		if c, known := accents[chr]; known {
			cmd = c
		}
	}
	return fmt.Sprintf("%s{%s}", cmd, arg(n, "e"))
}

func delimiter(n *ooxml.Node) string {
	beg, end, sep := "(", ")", "|"
	if v, ok := prop(n, "dPr", "begChr"); ok {
		beg = v
	}
	if v, ok := prop(n, "dPr", "endChr"); ok {
		end = v
	}
	if v, ok := prop(n, "dPr", "sepChr"); ok {
		sep = v
	}
	var parts []string
	for _, e := range n.Children("e") {
		parts = append(parts, strings.TrimSpace(children(e)))
	}
	return `\left` + fence(beg) + strings.Join(parts, fence(sep)) + `\right` + fence(end)
}

// fence escapes a delimiter character; an empty one becomes the invisible ".".
func fence(s string) string {
	switch s {
	case "":
		return "."
	case "{", "}":
		return `\` + s
	}
	return strings.TrimSpace(Escape(s))
}

func fraction(n *ooxml.Node) string {
	num, den := arg(n, "num"), arg(n, "den")
	typ, _ := prop(n, "fPr", "type")
	switch typ {
	case "skw":
		return fmt.Sprintf("^{%s}/_{%s}", num, den)
	case "noBar":
		return fmt.Sprintf(`\genfrac{}{}{0pt}{}{%s}{%s}`, num, den)
	case "lin":
		return fmt.Sprintf("{%s}/{%s}", num, den)
	}
	return fmt.Sprintf(`\frac{%s}{%s}`, num, den)
}

func function(n *ooxml.Node) string {
	name := arg(n, "fName")
	if cmd, ok := functions[name]; ok {
		name = cmd
	}
	return fmt.Sprintf("%s{%s}", name, arg(n, "e"))
}

func lowerLimit(n *ooxml.Node) string {
	base := arg(n, "e")
	lim := strings.ReplaceAll(arg(n, "lim"), `\rightarrow`, `\to`)
	if cmd, ok := limitFunctions[base]; ok {
		return fmt.Sprintf("%s_{%s}", cmd, lim)
	}
	return fmt.Sprintf("%s_{%s}", base, lim)
}

func nary(n *ooxml.Node) string {
	op := `\int`
	if chr, ok := prop(n, "naryPr", "chr"); ok {
		if c, known := bigOperators[chr]; known {
			op = c
		} else {
			op = chr
		}
	}
	var b strings.Builder
	b.WriteString(op)
	if sub := arg(n, "sub"); sub != "" {
		fmt.Fprintf(&b, "_{%s}", sub)
	}
	if sup := arg(n, "sup"); sup != "" {
		fmt.Fprintf(&b, "^{%s}", sup)
	}
	fmt.Fprintf(&b, "{%s}", arg(n, "e"))
	return b.String()
}
