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

package docxmath

import "strings"

// greek holds the lowercase Greek names in Unicode order, shared by the
// plain block (U+03B1) and the math italic block (U+1D6FC).
var greek = []string{
	"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta",
	"iota", "kappa", "lambda", "mu", "nu", "xi", "o", "pi", "rho",
	"varsigma", "sigma", "tau", "upsilon", "varphi", "chi", "psi", "omega",
}

// Math italic symbols that follow the Greek letters at U+1D715.
var italicGreekTail = []string{"partial", "epsilon", "vartheta", "varkappa", "phi", "varrho", "varpi"}

var symbols = map[rune]string{
	'∞': `\infty`,
	'±': `\pm`,
	'∓': `\mp`,
	'×': `\times`,
	'·': `\cdot`,
	'÷': `\div`,
	'∂': `\partial`,
	'∇': `\nabla`,
	'∀': `\forall`,
	'∃': `\exists`,
	'≈': `\approx`,
	'≡': `\equiv`,
	'≠': `\ne`,
	'≤': `\leq`,
	'≥': `\geq`,
	'≪': `\ll`,
	'≫': `\gg`,
	'∈': `\in`,
	'∉': `\notin`,
	'∋': `\ni`,
	'⊂': `\subset`,
	'⊆': `\subseteq`,
	'∪': `\cup`,
	'∩': `\cap`,
	'→': `\rightarrow`,
	'←': `\leftarrow`,
	'↔': `\leftrightarrow`,
	'⇒': `\Rightarrow`,
	'⇔': `\Leftrightarrow`,
	'↑': `\uparrow`,
	'↓': `\downarrow`,
	'⋮': `\vdots`,
	'⋯': `\cdots`,
	'⋱': `\ddots`,
	'…': `\ldots`,
	'Δ': `\Delta`,
	'Σ': `\Sigma`,
	'Ω': `\Omega`,
	'Π': `\Pi`,
	'Φ': `\Phi`,
	'Γ': `\Gamma`,
	'Λ': `\Lambda`,
	'Θ': `\Theta`,
}

// accents maps combining marks and grouping characters to LaTeX commands.
var accents = map[string]string{
	"\u0300": `\grave`,
	"\u0301": `\acute`,
	"\u0302": `\hat`,
	"\u0303": `\tilde`,
	"\u0304": `\bar`,
	"\u0305": `\overline`,
	"\u0306": `\breve`,
	"\u0307": `\dot`,
	"\u0308": `\ddot`,
	"\u030c": `\check`,
	"\u0331": `\underline`,
	"\u20d6": `\overleftarrow`,
	"\u20d7": `\vec`,
	"\u20db": `\dddot`,
	"\u20e1": `\overleftrightarrow`,
	"\u23b4": `\overbracket`,
	"\u23b5": `\underbracket`,
	"\u23dc": `\overparen`,
	"\u23dd": `\underparen`,
	"\u23de": `\overbrace`,
	"\u23df": `\underbrace`,
}

var bigOperators = map[string]string{
	"∑": `\sum`,
	"∏": `\prod`,
	"∐": `\coprod`,
	"∫": `\int`,
	"∬": `\iint`,
	"∭": `\iiint`,
	"∮": `\oint`,
	"⋀": `\bigwedge`,
	"⋁": `\bigvee`,
	"⋂": `\bigcap`,
	"⋃": `\bigcup`,
	"⨀": `\bigodot`,
	"⨁": `\bigoplus`,
	"⨂": `\bigotimes`,
}

var functions = map[string]string{
	"sin": `\sin`, "cos": `\cos`, "tan": `\tan`, "cot": `\cot`,
	"sec": `\sec`, "csc": `\csc`,
	"arcsin": `\arcsin`, "arccos": `\arccos`, "arctan": `\arctan`,
	"sinh": `\sinh`, "cosh": `\cosh`, "tanh": `\tanh`, "coth": `\coth`,
	"log": `\log`, "ln": `\ln`, "exp": `\exp`,
	"lim": `\lim`, "max": `\max`, "min": `\min`,
}

var limitFunctions = map[string]string{
	"lim": `\lim`, "max": `\max`, "min": `\min`,
	`\lim`: `\lim`, `\max`: `\max`, `\min`: `\min`,
}

// symbol returns the LaTeX spelling of one rune from a math run. Commands
// carry a trailing space so the next letter does not extend them.
func symbol(r rune) string {
	switch {
	case r >= 0x1D434 && r <= 0x1D44D:
		return string('A' + (r - 0x1D434))
	case r >= 0x1D44E && r <= 0x1D467:
		return string('a' + (r - 0x1D44E))
	case r == 0x210E:
		return "h"
	case r >= 0x03B1 && r <= 0x03C9:
		return `\` + greek[r-0x03B1] + " "
	case r >= 0x1D6FC && r <= 0x1D714:
		return `\` + greek[r-0x1D6FC] + " "
	case r >= 0x1D715 && r <= 0x1D71B:
		return `\` + italicGreekTail[r-0x1D715] + " "
	}
	if s, ok := symbols[r]; ok {
		return s + " "
	}
	switch r {
	case '{', '}', '_', '^', '#', '&', '$', '%':
		return `\` + string(r)
	case '~':
		return `\sim `
	case '\\':
		return `\backslash `
	}
	return string(r)
}

// Escape renders plain text with LaTeX special characters escaped.
func Escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		b.WriteString(symbol(r))
	}
	return b.String()
}
