/*
   Copyright The containerd Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package lex tokenizes a snapsd configuration file into a config.Tree.
// The grammar is intentionally small: one setting per line, "#" starts a
// line comment, a "backup" line opens a brace-delimited block of
// endpoint-scoped settings that must close on its own line.
//
//	user backupuser
//	rsyncbin /usr/bin/rsync
//	backup user@host1:/srv/data {
//		root /srv/backup/host1 backupgrp
//		hourly 24
//	}
package lex

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/snapsd/snapsd/internal/config"
)

// Parse reads a configuration file from r and returns its tree form.
func Parse(r io.Reader) (config.Tree, error) {
	lines, err := readLogicalLines(r)
	if err != nil {
		return nil, err
	}
	tree, rest, err := parseEntries(lines)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, errors.Errorf("lex: unexpected %q outside any block", rest[0])
	}
	return tree, nil
}

// readLogicalLines splits r into whitespace-separated fields, one slice
// per non-empty, non-comment source line, honoring double-quoted fields
// that may contain spaces.
func readLogicalLines(r io.Reader) ([][]string, error) {
	var out [][]string
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields, err := splitFields(line)
		if err != nil {
			return nil, errors.Wrapf(err, "lex: line %d", lineNo)
		}
		if len(fields) == 0 {
			continue
		}
		out = append(out, fields)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "lex: read")
	}
	return out, nil
}

func splitFields(line string) ([]string, error) {
	var fields []string
	var cur strings.Builder
	inQuotes := false
	hasToken := false

	flush := func() {
		if hasToken {
			fields = append(fields, cur.String())
			cur.Reset()
			hasToken = false
		}
	}

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			hasToken = true
		case inQuotes:
			cur.WriteRune(r)
		case r == ' ' || r == '\t':
			flush()
		case r == '{' || r == '}':
			flush()
			fields = append(fields, string(r))
		default:
			cur.WriteRune(r)
			hasToken = true
		}
	}
	if inQuotes {
		return nil, errors.New("unterminated quoted string")
	}
	flush()
	return fields, nil
}

// parseEntries consumes top-level entries from lines until it runs out or
// hits a line that is a lone "}", which it leaves unconsumed. rest is
// whatever lines were not consumed.
func parseEntries(lines [][]string) (tree config.Tree, rest [][]string, err error) {
	for len(lines) > 0 {
		fields := lines[0]
		if len(fields) == 1 && fields[0] == "}" {
			return tree, lines, nil
		}

		key := fields[0]
		values := fields[1:]

		entry := config.Entry{Key: key}

		opensBlock := len(values) > 0 && values[len(values)-1] == "{"
		if opensBlock {
			values = values[:len(values)-1]
		}

		switch {
		case key == "backup":
			if len(values) != 1 {
				return nil, nil, errors.Errorf("lex: backup entry requires exactly one value, got %d", len(values))
			}
			entry.Val = values[0]
		case len(values) == 1:
			entry.Val = values[0]
		case len(values) > 1:
			entry.MVal = values
		}

		lines = lines[1:]

		if opensBlock {
			var block config.Tree
			var closed bool
			block, lines, closed, err = parseBlock(lines)
			if err != nil {
				return nil, nil, err
			}
			if !closed {
				return nil, nil, errors.Errorf("lex: unterminated block opened by %q", key)
			}
			entry.Block = block
		}

		tree = append(tree, entry)
	}

	return tree, nil, nil
}

// parseBlock is parseEntries plus an explicit closed flag, since nil vs
// empty rest can't otherwise distinguish "hit EOF" from "hit a closing
// brace that happened to be the last line".
func parseBlock(lines [][]string) (tree config.Tree, rest [][]string, closed bool, err error) {
	for len(lines) > 0 {
		fields := lines[0]
		if len(fields) == 1 && fields[0] == "}" {
			return tree, lines[1:], true, nil
		}

		key := fields[0]
		values := fields[1:]

		entry := config.Entry{Key: key}

		opensBlock := len(values) > 0 && values[len(values)-1] == "{"
		if opensBlock {
			values = values[:len(values)-1]
		}

		switch {
		case key == "backup":
			return nil, nil, false, errors.New("lex: nested backup blocks are not supported")
		case len(values) == 1:
			entry.Val = values[0]
		case len(values) > 1:
			entry.MVal = values
		}

		lines = lines[1:]

		if opensBlock {
			return nil, nil, false, errors.Errorf("lex: endpoint setting %q can not contain a nested block", key)
		}

		tree = append(tree, entry)
	}

	return tree, nil, false, nil
}
