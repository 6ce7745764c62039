// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package purchase

import (
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Row is one tokenized source line. Err is set when the line could not be
// tokenized; such a row carries no fields.
type Row struct {
	Line   int
	Fields []string
	Err    error
}

// SplitLines splits content on every line boundary: \n, \r\n, \r, \v, \f,
// the file, group and record separators (0x1c-0x1e), NEL, and the Unicode
// line and paragraph separators. A trailing line break does not produce an
// extra empty line.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	var lines []string
	start := 0
	for i, r := range content {
		if !isLineBreak(r) {
			continue
		}
		if r == '\n' && i > 0 && content[i-1] == '\r' {
			start = i + 1
			continue
		}
		lines = append(lines, content[start:i])
		start = i + utf8.RuneLen(r)
	}
	if start < len(content) {
		lines = append(lines, content[start:])
	}
	return lines
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', 0x1c, 0x1d, 0x1e, 0x85, 0x2028, 0x2029:
		return true
	}
	return false
}

// SplitRows tokenizes every line of content on its own, so a malformed
// line never affects its neighbours.
func SplitRows(content string) []Row {
	lines := SplitLines(content)
	rows := make([]Row, 0, len(lines))
	for i, line := range lines {
		fields, err := tokenize(line)
		rows = append(rows, Row{Line: i + 1, Fields: fields, Err: err})
	}
	return rows
}

func tokenize(line string) ([]string, error) {
	if line == "" {
		return []string{}, nil
	}
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	fields, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to tokenize line: %w", err)
	}
	return fields, nil
}
