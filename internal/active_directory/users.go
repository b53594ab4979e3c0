package active_directory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
	"github.com/matthewdavidson09/onboard-sync/tools"
)

// ADUser represents a simplified Active Directory user object
type ADUser struct {
	CN             string
	DN             string
	GUID           string
	DisplayName    string
	GivenName      string
	Surname        string
	Email          string
	EmployeeID     string
	Department     string
	Title          string
	Mobile         string
	ManagerDN      string
	ManagerName    string
	SAMAccountName string
	Enabled        bool
	UACFlags       []string
	MemberOf       []string
}

// DirectoryAttributes is the tracked-field view of one account. It is read fresh every pass.
type DirectoryAttributes struct {
	DN             string
	EmployeeID     string
	DisplayName    string
	Department     string
	Title          string
	ManagerName    string
	MobileNumber   string
	SAMAccountName string
	Enabled        bool
}

var userAttributes = []string{
	"cn", "mail", "department", "distinguishedName", "userAccountControl",
	"objectGUID", "givenName", "sn", "displayName", "employeeID", "title",
	"mobile", "manager", "sAMAccountName", "memberOf",
}

// Snapshot converts the account into the attributes the HR diff compares against.
func (u ADUser) Snapshot() DirectoryAttributes {
	manager := u.ManagerName
	if manager == "" && u.ManagerDN != "" {
		manager = ldapclient.RDNValue(u.ManagerDN)
	}
	return DirectoryAttributes{
		DN:             u.DN,
		EmployeeID:     u.EmployeeID,
		DisplayName:    u.DisplayName,
		Department:     u.Department,
		Title:          u.Title,
		ManagerName:    manager,
		MobileNumber:   u.Mobile,
		SAMAccountName: u.SAMAccountName,
		Enabled:        u.Enabled,
	}
}

// GetUserBySAMAccountName finds the account with the given short name. A missing account is (nil, nil).
func GetUserBySAMAccountName(s *ldapclient.Session, sam string) (*ADUser, error) {
	filter := fmt.Sprintf("(&(objectClass=user)(sAMAccountName=%s))", ldap.EscapeFilter(sam))
	return findUser(s, s.Config().BaseDN, filter)
}

// GetUserByEmployeeID finds the account carrying the HR key in the configured correlation attribute.
// The manager's display name is read from the manager entry so it compares against HR's value.
func GetUserByEmployeeID(s *ldapclient.Session, employeeID string) (*ADUser, error) {
	attr := s.Config().EmployeeIDAttr()
	filter := fmt.Sprintf("(&(objectClass=user)(%s=%s))", ldap.EscapeFilter(attr), ldap.EscapeFilter(employeeID))
	user, err := findUser(s, s.Config().BaseDN, filter)
	if err != nil || user == nil || user.ManagerDN == "" {
		return user, err
	}
	name, err := managerDisplayName(s, user.ManagerDN)
	if err != nil {
		return nil, err
	}
	user.ManagerName = name
	return user, nil
}

// managerDisplayName returns the displayName of the entry at dn, falling back to its CN.
// A manager DN that no longer resolves yields the RDN value.
func managerDisplayName(s *ldapclient.Session, dn string) (string, error) {
	entry, err := s.SearchOne(dn, "(objectClass=*)", []string{"displayName", "cn"})
	if errors.Is(err, ldapclient.ErrNotFound) {
		tools.Log.WithField("manager", dn).Debug("Manager entry not found, using its RDN")
		return ldapclient.RDNValue(dn), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read manager %s: %w", dn, err)
	}
	if name := strings.TrimSpace(entry.GetAttributeValue("displayName")); name != "" {
		return name, nil
	}
	if cn := entry.GetAttributeValue("cn"); cn != "" {
		return cn, nil
	}
	return ldapclient.RDNValue(dn), nil
}

// FindUserDNByName resolves a person's display name (or CN) to a DN, e.g. for the manager attribute.
func FindUserDNByName(s *ldapclient.Session, name string) (string, error) {
	escaped := ldap.EscapeFilter(strings.TrimSpace(name))
	filter := fmt.Sprintf("(&(objectClass=user)(|(displayName=%s)(cn=%s)))", escaped, escaped)
	user, err := findUser(s, s.Config().BaseDN, filter)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", fmt.Errorf("no account named %q: %w", name, ldapclient.ErrNotFound)
	}
	return user.DN, nil
}

func findUser(s *ldapclient.Session, baseDN, filter string) (*ADUser, error) {
	searchReq := ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		2, 0, false,
		filter,
		userAttributes,
		nil,
	)

	entries, err := s.Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("LDAP search failed: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}
	if len(entries) > 1 {
		tools.Log.WithField("filter", filter).Warnf("Multiple accounts matched, using %s", entries[0].DN)
	}
	user := entryToUser(entries[0])
	return &user, nil
}

func entryToUser(entry *ldap.Entry) ADUser {
	dn := entry.GetAttributeValue("distinguishedName")
	if dn == "" {
		dn = entry.DN
	}
	uac := entry.GetAttributeValue("userAccountControl")
	user := ADUser{
		CN:             entry.GetAttributeValue("cn"),
		DN:             dn,
		GUID:           tools.FormatGUID(entry.GetRawAttributeValue("objectGUID")),
		DisplayName:    entry.GetAttributeValue("displayName"),
		GivenName:      entry.GetAttributeValue("givenName"),
		Surname:        entry.GetAttributeValue("sn"),
		Email:          entry.GetAttributeValue("mail"),
		EmployeeID:     entry.GetAttributeValue("employeeID"),
		Department:     entry.GetAttributeValue("department"),
		Title:          entry.GetAttributeValue("title"),
		Mobile:         entry.GetAttributeValue("mobile"),
		ManagerDN:      entry.GetAttributeValue("manager"),
		SAMAccountName: entry.GetAttributeValue("sAMAccountName"),
		Enabled:        uac == "" || tools.IsAccountEnabled(uac),
		MemberOf:       entry.GetAttributeValues("memberOf"),
	}
	if uac != "" {
		user.UACFlags = tools.DecodeUserAccountControlFlags(uac)
	}
	return user
}

// UpdateUserAttributes writes changes to dn. An empty value clears the attribute.
func UpdateUserAttributes(s *ldapclient.Session, dn string, changes map[string]string, current map[string]string) error {
	if len(changes) == 0 {
		return nil
	}
	modReq := ldap.NewModifyRequest(dn, nil)
	for _, attr := range mapKeysSorted(changes) {
		value := changes[attr]
		switch {
		case value != "":
			modReq.Replace(attr, []string{value})
		case current[attr] != "":
			modReq.Delete(attr, []string{})
		}
	}
	if len(modReq.Changes) == 0 {
		return nil
	}

	if err := s.Modify(modReq); err != nil {
		return fmt.Errorf("failed to update %s: %w", dn, err)
	}
	tools.Log.WithField("dn", dn).Infof("Updated %d attribute(s)", len(modReq.Changes))
	return nil
}
