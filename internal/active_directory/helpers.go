package active_directory

import (
	"slices"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ─── Normalization ───

// DisplayNameFor builds "Given Surname" in title case when no explicit display name is supplied.
func DisplayNameFor(given, surname string) string {
	caser := cases.Title(language.English)
	name := strings.TrimSpace(strings.TrimSpace(given) + " " + strings.TrimSpace(surname))
	return caser.String(strings.ToLower(name))
}

// ─── Optional attribute builder ───

// attrPredicate decides whether a value is well-formed enough to be written.
type attrPredicate func(string) bool

func nonEmpty(v string) bool {
	return strings.TrimSpace(v) != ""
}

// hasMailShape is the precondition for writing the mail attribute.
func hasMailShape(v string) bool {
	v = strings.TrimSpace(v)
	at := strings.Index(v, "@")
	return at > 0 && at < len(v)-1 && !strings.ContainsAny(v, " \t")
}

type attrBuilder struct {
	req *ldap.AddRequest
}

func newAttrBuilder(dn string) *attrBuilder {
	return &attrBuilder{req: ldap.NewAddRequest(dn, nil)}
}

// set always writes the attribute.
func (b *attrBuilder) set(name string, values ...string) *attrBuilder {
	b.req.Attribute(name, values)
	return b
}

// setIf writes the attribute only when ok(value) holds.
func (b *attrBuilder) setIf(name, value string, ok attrPredicate) *attrBuilder {
	if ok(value) {
		b.req.Attribute(name, []string{strings.TrimSpace(value)})
	}
	return b
}

func (b *attrBuilder) request() *ldap.AddRequest {
	return b.req
}

// ─── Grouping Utilities ───

func mapKeysSorted[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// dedupeFold removes empty and case-insensitively repeated names, keeping first occurrence order.
func dedupeFold(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	var out []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, n)
	}
	return out
}
