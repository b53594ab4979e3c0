package ldaptest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
)

// filter supports &, |, !, equality and presence, which is all the engine emits.
type filter struct {
	op       byte // '&', '|', '!', '=' or '*'
	attr     string
	value    string
	children []*filter
}

func parseFilter(s string) (*filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = "(objectClass=*)"
	}
	f, rest, err := parseNode(s)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(rest) != "" {
		return nil, fmt.Errorf("trailing data in filter %q", s)
	}
	return f, nil
}

func parseNode(s string) (*filter, string, error) {
	if len(s) < 2 || s[0] != '(' {
		return nil, "", fmt.Errorf("filter must start with '(': %q", s)
	}
	s = s[1:]
	switch s[0] {
	case '&', '|', '!':
		f := &filter{op: s[0]}
		s = s[1:]
		for len(s) > 0 && s[0] == '(' {
			child, rest, err := parseNode(s)
			if err != nil {
				return nil, "", err
			}
			f.children = append(f.children, child)
			s = rest
		}
		if len(s) == 0 || s[0] != ')' {
			return nil, "", fmt.Errorf("unterminated filter group")
		}
		return f, s[1:], nil
	}

	end := strings.IndexByte(s, ')')
	if end < 0 {
		return nil, "", fmt.Errorf("unterminated filter item")
	}
	item := s[:end]
	eq := strings.IndexByte(item, '=')
	if eq <= 0 {
		return nil, "", fmt.Errorf("invalid filter item %q", item)
	}
	f := &filter{op: '=', attr: strings.ToLower(item[:eq]), value: unescapeFilter(item[eq+1:])}
	if item[eq+1:] == "*" {
		f.op = '*'
	}
	return f, s[end+1:], nil
}

func unescapeFilter(v string) string {
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		if v[i] == '\\' && i+2 < len(v) {
			if n, err := strconv.ParseUint(v[i+1:i+3], 16, 8); err == nil {
				b.WriteByte(byte(n))
				i += 2
				continue
			}
		}
		b.WriteByte(v[i])
	}
	return b.String()
}

func (f *filter) match(e *entry) bool {
	switch f.op {
	case '&':
		for _, c := range f.children {
			if !c.match(e) {
				return false
			}
		}
		return true
	case '|':
		for _, c := range f.children {
			if c.match(e) {
				return true
			}
		}
		return false
	case '!':
		return len(f.children) == 1 && !f.children[0].match(e)
	case '*':
		if f.attr == "objectclass" {
			return true
		}
		_, ok := e.attrs[f.attr]
		return ok
	default:
		for _, v := range e.attrs[f.attr] {
			if f.attr == "distinguishedname" || f.attr == "manager" || f.attr == "member" {
				if ldapclient.SameDN(v, f.value) {
					return true
				}
				continue
			}
			if strings.EqualFold(v, f.value) {
				return true
			}
		}
		return false
	}
}
