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

package markitdown

import (
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// charsetAliases covers names chardet and Windows tools emit that the WHATWG
// index does not know.
var charsetAliases = map[string]string{
	"cp932":    "shift_jis",
	"sjis":     "shift_jis",
	"gb-18030": "gb18030",
	"cp936":    "gbk",
	"cp949":    "euc-kr",
	"cp950":    "big5",
	"ascii":    "utf-8",
	"us-ascii": "utf-8",
}

// lookupEncoding resolves a charset label, or returns nil when it is unknown.
func lookupEncoding(charset string) encoding.Encoding {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "" {
		return nil
	}
	if alias, ok := charsetAliases[name]; ok {
		name = alias
	}
	switch name {
	case "utf-16le":
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	case "utf-16be":
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil
	}
	return enc
}

// decodeText converts data to UTF-8. A declared charset wins when it decodes
// cleanly; otherwise valid UTF-8 is kept and anything else is detected.
func decodeText(data []byte, charset string) string {
	if enc := lookupEncoding(charset); enc != nil {
		if decoded, err := enc.NewDecoder().Bytes(data); err == nil {
			return string(decoded)
		}
	}
	data = trimUTF8BOM(data)
	if utf8.Valid(data) {
		return string(data)
	}
	return detectAndDecode(data)
}

func trimUTF8BOM(data []byte) []byte {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return data[3:]
	}
	return data
}

// detectAndDecode decodes with every chardet candidate and keeps the one that
// scores best. chardet tends to rank Latin code pages above CJK ones for
// short samples, so the ranking is not taken at face value.
func detectAndDecode(data []byte) string {
	results, err := chardet.NewTextDetector().DetectAll(data)
	if err != nil || len(results) == 0 {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}

	best, bestScore := "", 0
	for _, r := range results {
		enc := lookupEncoding(r.Charset)
		if enc == nil {
			continue
		}
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		text := string(decoded)
		if score := decodeScore(text, r.Confidence); best == "" || score > bestScore {
			best, bestScore = text, score
		}
	}
	if best == "" {
		return strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return best
}

func decodeScore(text string, confidence int) int {
	score := confidence
	for _, r := range text {
		switch {
		case r == utf8.RuneError:
			score -= 10
		case r < 0x20 && r != '\n' && r != '\r' && r != '\t':
			score -= 5
		case r >= 0x3040 && r <= 0x30FF, r >= 0xFF00 && r <= 0xFFEF:
			// kana and fullwidth forms rarely appear by accident
			score += 4
		case r >= 0x4E00 && r <= 0x9FFF:
			score += 2
		case r >= 0x80 && r <= 0xFF:
			// Latin-1 punctuation and symbols are what a wrong single-byte
			// guess produces for multibyte text
			score--
		}
	}
	return score
}
