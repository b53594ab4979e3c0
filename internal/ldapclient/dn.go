package ldapclient

import (
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// SplitDN returns the first RDN of dn and the remaining parent DN.
// Attribute types keep the caller's casing; values are re-escaped.
func SplitDN(dn string) (rdn, parent string) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil || len(parsed.RDNs) == 0 {
		return strings.TrimSpace(dn), ""
	}
	rdns := make([]string, len(parsed.RDNs))
	for i, r := range parsed.RDNs {
		rdns[i] = formatRDN(r)
	}
	return rdns[0], strings.Join(rdns[1:], ",")
}

// RDNValue returns the unescaped value of the first RDN, e.g. "Jane Doe" for "CN=Jane Doe,OU=Staff,...".
func RDNValue(dn string) string {
	if first := firstAttribute(dn); first != nil {
		return first.Value
	}
	return ""
}

// RDNType returns the upper-cased attribute type of the first RDN ("CN", "OU", "DC").
func RDNType(dn string) string {
	if first := firstAttribute(dn); first != nil {
		return strings.ToUpper(first.Type)
	}
	return ""
}

// IsOrganizationalUnit reports whether dn names an OU.
func IsOrganizationalUnit(dn string) bool {
	return RDNType(dn) == "OU"
}

// NormalizeDN folds dn into a canonical key: lower-cased types and values, no padding around separators.
// Unparseable input is trimmed and lower-cased.
func NormalizeDN(dn string) string {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(dn))
	}
	folded := &ldap.DN{RDNs: make([]*ldap.RelativeDN, len(parsed.RDNs))}
	for i, r := range parsed.RDNs {
		rdn := &ldap.RelativeDN{Attributes: make([]*ldap.AttributeTypeAndValue, len(r.Attributes))}
		for j, a := range r.Attributes {
			rdn.Attributes[j] = &ldap.AttributeTypeAndValue{Type: a.Type, Value: strings.ToLower(a.Value)}
		}
		folded.RDNs[i] = rdn
	}
	return folded.String()
}

// SameDN reports whether a and b name the same entry, ignoring case and escaping differences.
func SameDN(a, b string) bool {
	da, errA := ldap.ParseDN(a)
	db, errB := ldap.ParseDN(b)
	if errA != nil || errB != nil {
		return NormalizeDN(a) == NormalizeDN(b)
	}
	return da.EqualFold(db)
}

// EscapeDNValue escapes an attribute value for use inside an RDN (RFC 4514 section 2.4).
func EscapeDNValue(value string) string {
	encoded := (&ldap.AttributeTypeAndValue{Type: "cn", Value: value}).String()
	return strings.TrimPrefix(encoded, "cn=")
}

func formatRDN(r *ldap.RelativeDN) string {
	parts := make([]string, len(r.Attributes))
	for i, a := range r.Attributes {
		parts[i] = a.Type + "=" + EscapeDNValue(a.Value)
	}
	return strings.Join(parts, "+")
}

func firstAttribute(dn string) *ldap.AttributeTypeAndValue {
	parsed, err := ldap.ParseDN(dn)
	if err != nil || len(parsed.RDNs) == 0 || len(parsed.RDNs[0].Attributes) == 0 {
		return nil
	}
	return parsed.RDNs[0].Attributes[0]
}
