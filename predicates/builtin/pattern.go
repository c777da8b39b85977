package builtin

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

type segmentKind int

const (
	literal segmentKind = iota
	glob
	anySegment
	anySegments
	capture
	captureRest
)

type segment struct {
	kind segmentKind
	text string
	name string
	re   *regexp.Regexp
}

// pattern matches separator delimited strings, paths with '/' and host names
// with '.'. Supported segments:
//
//	literal   exact match
//	*         any single segment
//	**        zero or more segments
//	{name}    any single segment, captured
//	{name:re} single segment matching re, captured
//	{*name}   the rest, captured, only as the last segment
//	a*.html   glob within a segment
//
// A pattern contains at most one ** segment. Case folding patterns match
// lower case values: literals and globs are lowered, capture regexps match
// case insensitively, variable names are kept.
type pattern struct {
	raw      string
	sep      byte
	segments []segment
}

type capturedVar struct {
	name, value string
}

func splitSegments(s string, sep byte) []string {
	s = strings.Trim(s, string(sep))
	if s == "" {
		return nil
	}

	return strings.Split(s, string(sep))
}

func compileSegment(s string, foldCase bool) (segment, error) {
	switch {
	case s == "*":
		return segment{kind: anySegment}, nil
	case s == "**":
		return segment{kind: anySegments}, nil
	case strings.HasPrefix(s, "{*") && strings.HasSuffix(s, "}"):
		return segment{kind: captureRest, name: s[2 : len(s)-1]}, nil
	case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
		name := s[1 : len(s)-1]
		seg := segment{kind: capture, name: name}
		if i := strings.IndexByte(name, ':'); i > 0 {
			expr := "^(?:" + name[i+1:] + ")$"
			if foldCase {
				expr = "(?i)" + expr
			}

			re, err := regexp.Compile(expr)
			if err != nil {
				return segment{}, err
			}

			seg.name = name[:i]
			seg.re = re
		}

		if seg.name == "" {
			return segment{}, fmt.Errorf("empty variable name in %q", s)
		}

		return seg, nil
	case strings.ContainsAny(s, "*?["):
		if foldCase {
			s = strings.ToLower(s)
		}

		if _, err := path.Match(s, ""); err != nil {
			return segment{}, err
		}

		return segment{kind: glob, text: s}, nil
	default:
		if foldCase {
			s = strings.ToLower(s)
		}

		return segment{kind: literal, text: s}, nil
	}
}

func compilePattern(raw string, sep byte, foldCase bool) (*pattern, error) {
	p := &pattern{raw: raw, sep: sep}
	parts := splitSegments(raw, sep)
	var anyCount int
	for i, part := range parts {
		seg, err := compileSegment(part, foldCase)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", raw, err)
		}

		if seg.kind == captureRest && i != len(parts)-1 {
			return nil, fmt.Errorf("invalid pattern %q: %s must be the last segment", raw, part)
		}

		if seg.kind == anySegments {
			anyCount++
			if anyCount > 1 {
				return nil, fmt.Errorf("invalid pattern %q: only one ** segment is allowed", raw)
			}
		}

		p.segments = append(p.segments, seg)
	}

	return p, nil
}

func (s segment) matches(value string) (bool, *capturedVar) {
	switch s.kind {
	case literal:
		return s.text == value, nil
	case glob:
		ok, _ := path.Match(s.text, value)
		return ok, nil
	case anySegment:
		return true, nil
	case capture:
		if s.re != nil && !s.re.MatchString(value) {
			return false, nil
		}

		return true, &capturedVar{s.name, value}
	default:
		return false, nil
	}
}

func (p *pattern) matchFrom(segments []segment, values []string, vars []capturedVar) ([]capturedVar, bool) {
	if len(segments) == 0 {
		return vars, len(values) == 0
	}

	s := segments[0]
	switch s.kind {
	case anySegments:
		for i := 0; i <= len(values); i++ {
			if v, ok := p.matchFrom(segments[1:], values[i:], vars); ok {
				return v, true
			}
		}

		return nil, false
	case captureRest:
		rest := string(p.sep) + strings.Join(values, string(p.sep))
		return append(vars, capturedVar{s.name, rest}), true
	}

	if len(values) == 0 {
		return nil, false
	}

	ok, v := s.matches(values[0])
	if !ok {
		return nil, false
	}

	if v != nil {
		vars = append(vars, *v)
	}

	return p.matchFrom(segments[1:], values[1:], vars)
}

// match returns the captured variables when s matches.
func (p *pattern) match(s string) (map[string]string, bool) {
	vars, ok := p.matchFrom(p.segments, splitSegments(s, p.sep), nil)
	if !ok {
		return nil, false
	}

	m := make(map[string]string, len(vars))
	for _, v := range vars {
		m[v.name] = v.value
	}

	return m, true
}

func (p *pattern) String() string { return p.raw }
