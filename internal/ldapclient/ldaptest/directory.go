// Package ldaptest provides an in-memory directory that speaks the ldapclient.Conn interface.
// It understands the small filter grammar the sync engine emits and records every call.
package ldaptest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
)

// SearchCall records one Search issued against the directory.
type SearchCall struct {
	BaseDN string
	Scope  int
	Filter string
}

type entry struct {
	dn    string
	attrs map[string][]string // keyed by lowercase attribute name
	names map[string]string   // lowercase -> original casing
}

// Directory is a thread-safe fake LDAP tree.
type Directory struct {
	mu          sync.Mutex
	entries     map[string]*entry
	credentials map[string]string
	failures    map[string]error
	dialFails   []error

	DialErr  error
	Dials    int
	Binds    []string
	Searches []SearchCall
	Adds     []string
	Modifies []string
	Closed   int
}

// New returns a directory seeded with baseDN and its conventional Users and Builtin containers.
func New(baseDN string) *Directory {
	d := &Directory{
		entries:     make(map[string]*entry),
		credentials: make(map[string]string),
		failures:    make(map[string]error),
	}
	d.Seed(baseDN, map[string][]string{"objectClass": {"top", "domain", "domainDNS"}})
	d.Seed("CN=Users,"+baseDN, map[string][]string{"objectClass": {"top", "container"}, "cn": {"Users"}})
	d.Seed("CN=Builtin,"+baseDN, map[string][]string{"objectClass": {"top", "builtinDomain"}, "cn": {"Builtin"}})
	return d
}

// Seed inserts an entry without recording a call and without checking the parent.
func (d *Directory) Seed(dn string, attrs map[string][]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.put(dn, attrs)
}

// SeedUser inserts a user account with the given attributes plus objectClass and sAMAccountName.
func (d *Directory) SeedUser(dn, sam string, attrs map[string]string) {
	full := map[string][]string{
		"objectClass":    {"top", "person", "organizationalPerson", "user"},
		"sAMAccountName": {sam},
		"cn":             {ldapclient.RDNValue(dn)},
	}
	for k, v := range attrs {
		full[k] = []string{v}
	}
	d.Seed(dn, full)
}

// SeedGroup inserts a security group.
func (d *Directory) SeedGroup(dn string, members ...string) {
	attrs := map[string][]string{
		"objectClass":    {"top", "group"},
		"cn":             {ldapclient.RDNValue(dn)},
		"sAMAccountName": {ldapclient.RDNValue(dn)},
	}
	if len(members) > 0 {
		attrs["member"] = members
	}
	d.Seed(dn, attrs)
}

// SetCredentials makes Bind accept only identity/secret pairs registered here.
func (d *Directory) SetCredentials(identity, secret string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.credentials[strings.ToLower(identity)] = secret
}

// Fail makes every op ("bind", "search", "add", "modify") against dn return err. An empty dn matches all.
func (d *Directory) Fail(op, dn string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures[op+"|"+ldapclient.NormalizeDN(dn)] = err
}

// ClearFailures removes every injected failure.
func (d *Directory) ClearFailures() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = make(map[string]error)
}

// ResultError builds the *ldap.Error a real server would return for code.
func ResultError(code uint16) error {
	return ldap.NewError(code, errors.New(ldap.LDAPResultCodeMap[code]))
}

// TimeoutError mimics the library's request timeout.
func TimeoutError() error {
	return ldap.NewError(ldap.ErrorNetwork, errors.New("ldap: connection timed out"))
}

// Dial satisfies ldapclient.DialFunc.
func (d *Directory) Dial(_ context.Context, _ ldapclient.Config) (ldapclient.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Dials++
	if len(d.dialFails) > 0 {
		err := d.dialFails[0]
		d.dialFails = d.dialFails[1:]
		return nil, err
	}
	if d.DialErr != nil {
		return nil, d.DialErr
	}
	return &conn{d: d}, nil
}

// FailNextDials makes the next len(errs) dials return errs in order.
func (d *Directory) FailNextDials(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialFails = append(d.dialFails, errs...)
}

// Option returns the ldapclient option wiring this directory in as the dialer.
func (d *Directory) Option() ldapclient.Option {
	return ldapclient.WithDialer(d.Dial)
}

// Has reports whether dn exists.
func (d *Directory) Has(dn string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[ldapclient.NormalizeDN(dn)]
	return ok
}

// Attr returns the values of attr on dn.
func (d *Directory) Attr(dn, attr string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[ldapclient.NormalizeDN(dn)]
	if !ok {
		return nil
	}
	return append([]string(nil), e.attrs[strings.ToLower(attr)]...)
}

// MutationCount is the number of Add and Modify calls received.
func (d *Directory) MutationCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Adds) + len(d.Modifies)
}

// SearchBases lists the base DN of every search in call order.
func (d *Directory) SearchBases() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.Searches))
	for _, s := range d.Searches {
		out = append(out, s.BaseDN)
	}
	return out
}

// ResetCalls clears the call log, keeping the tree.
func (d *Directory) ResetCalls() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Binds, d.Searches, d.Adds, d.Modifies = nil, nil, nil, nil
}

func (d *Directory) put(dn string, attrs map[string][]string) *entry {
	e := &entry{dn: dn, attrs: make(map[string][]string), names: make(map[string]string)}
	for k, v := range attrs {
		e.set(k, v)
	}
	e.set("distinguishedName", []string{dn})
	d.entries[ldapclient.NormalizeDN(dn)] = e
	return e
}

func (d *Directory) failure(op, dn string) error {
	if err, ok := d.failures[op+"|"+ldapclient.NormalizeDN(dn)]; ok {
		return err
	}
	if err, ok := d.failures[op+"|"]; ok {
		return err
	}
	return nil
}

func (e *entry) set(name string, vals []string) {
	key := strings.ToLower(name)
	if len(vals) == 0 {
		delete(e.attrs, key)
		delete(e.names, key)
		return
	}
	e.attrs[key] = append([]string(nil), vals...)
	e.names[key] = name
}

func (e *entry) toLDAP(requested []string) *ldap.Entry {
	out := make(map[string][]string)
	if len(requested) == 0 {
		for k, v := range e.attrs {
			out[e.names[k]] = v
		}
	}
	for _, name := range requested {
		if v, ok := e.attrs[strings.ToLower(name)]; ok {
			out[name] = v
		}
	}
	return ldap.NewEntry(e.dn, out)
}

type conn struct {
	d       *Directory
	timeout time.Duration
}

func (c *conn) SetTimeout(t time.Duration) { c.timeout = t }

func (c *conn) Close() error {
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.Closed++
	return nil
}

func (c *conn) Bind(username, password string) error {
	d := c.d
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Binds = append(d.Binds, username)
	if err := d.failure("bind", ""); err != nil {
		return err
	}
	if len(d.credentials) == 0 {
		return nil
	}
	if secret, ok := d.credentials[strings.ToLower(username)]; ok && secret == password {
		return nil
	}
	return ResultError(ldap.LDAPResultInvalidCredentials)
}

func (c *conn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	d := c.d
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Searches = append(d.Searches, SearchCall{BaseDN: req.BaseDN, Scope: req.Scope, Filter: req.Filter})
	if err := d.failure("search", req.BaseDN); err != nil {
		return nil, err
	}

	base := ldapclient.NormalizeDN(req.BaseDN)
	if _, ok := d.entries[base]; !ok {
		return nil, ResultError(ldap.LDAPResultNoSuchObject)
	}
	f, err := parseFilter(req.Filter)
	if err != nil {
		return nil, ldap.NewError(ldap.ErrorFilterCompile, err)
	}

	keys := make([]string, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := &ldap.SearchResult{}
	for _, k := range keys {
		if !inScope(k, base, req.Scope) {
			continue
		}
		e := d.entries[k]
		if !f.match(e) {
			continue
		}
		if req.SizeLimit > 0 && len(result.Entries) >= req.SizeLimit {
			return result, ResultError(ldap.LDAPResultSizeLimitExceeded)
		}
		result.Entries = append(result.Entries, e.toLDAP(req.Attributes))
	}
	return result, nil
}

func (c *conn) Add(req *ldap.AddRequest) error {
	d := c.d
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Adds = append(d.Adds, req.DN)
	if err := d.failure("add", req.DN); err != nil {
		return err
	}
	key := ldapclient.NormalizeDN(req.DN)
	if _, ok := d.entries[key]; ok {
		return ResultError(ldap.LDAPResultEntryAlreadyExists)
	}
	_, parent := ldapclient.SplitDN(req.DN)
	if _, ok := d.entries[ldapclient.NormalizeDN(parent)]; !ok {
		return ResultError(ldap.LDAPResultNoSuchObject)
	}
	attrs := make(map[string][]string, len(req.Attributes))
	for _, a := range req.Attributes {
		attrs[a.Type] = a.Vals
	}
	d.put(req.DN, attrs)
	return nil
}

func (c *conn) Modify(req *ldap.ModifyRequest) error {
	d := c.d
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Modifies = append(d.Modifies, req.DN)
	if err := d.failure("modify", req.DN); err != nil {
		return err
	}
	e, ok := d.entries[ldapclient.NormalizeDN(req.DN)]
	if !ok {
		return ResultError(ldap.LDAPResultNoSuchObject)
	}
	for _, ch := range req.Changes {
		name := ch.Modification.Type
		key := strings.ToLower(name)
		switch ch.Operation {
		case ldap.AddAttribute:
			current := e.attrs[key]
			for _, v := range ch.Modification.Vals {
				if containsFold(current, v, key == "member") {
					return ResultError(ldap.LDAPResultEntryAlreadyExists)
				}
				current = append(current, v)
			}
			e.set(name, current)
		case ldap.ReplaceAttribute:
			e.set(name, ch.Modification.Vals)
		case ldap.DeleteAttribute:
			if _, ok := e.attrs[key]; !ok {
				return ResultError(ldap.LDAPResultNoSuchAttribute)
			}
			e.set(name, nil)
		default:
			return fmt.Errorf("ldaptest: unsupported modify operation %d", ch.Operation)
		}
	}
	return nil
}

func containsFold(vals []string, v string, isDN bool) bool {
	for _, existing := range vals {
		if isDN && ldapclient.SameDN(existing, v) {
			return true
		}
		if !isDN && strings.EqualFold(existing, v) {
			return true
		}
	}
	return false
}

func inScope(dn, base string, scope int) bool {
	switch scope {
	case ldap.ScopeBaseObject:
		return dn == base
	case ldap.ScopeSingleLevel:
		_, parent := ldapclient.SplitDN(dn)
		return ldapclient.NormalizeDN(parent) == base
	default:
		return dn == base || strings.HasSuffix(dn, ","+base)
	}
}
