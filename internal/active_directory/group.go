package active_directory

import (
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
	"github.com/matthewdavidson09/onboard-sync/tools"
	"github.com/sirupsen/logrus"
)

type ADGroup struct {
	CN         string
	DN         string
	Members    []string
	ObjectGUID string
}

// GroupSearchBases is the ordered list of places a group is looked for:
// working OU, domain root, the Users container, then Builtin.
func GroupSearchBases(cfg ldapclient.Config) []string {
	candidates := []string{
		cfg.WorkingOU,
		cfg.BaseDN,
		cfg.UsersContainerDN(),
		cfg.BuiltinContainerDN(),
	}
	seen := make(map[string]struct{}, len(candidates))
	var bases []string
	for _, b := range candidates {
		if b == "" {
			continue
		}
		key := ldapclient.NormalizeDN(b)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		bases = append(bases, b)
	}
	return bases
}

func GetGroupByCN(s *ldapclient.Session, cn, baseDN string) (*ADGroup, error) {
	escaped := ldap.EscapeFilter(cn)
	filter := fmt.Sprintf("(&(objectClass=group)(|(cn=%s)(sAMAccountName=%s)))", escaped, escaped)
	attributes := []string{"cn", "distinguishedName", "member", "objectGUID"}

	searchReq := ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		1, 0, false,
		filter,
		attributes,
		nil,
	)

	entries, err := s.Search(searchReq)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	entry := entries[0]
	return &ADGroup{
		CN:         entry.GetAttributeValue("cn"),
		DN:         entry.DN,
		Members:    entry.GetAttributeValues("member"),
		ObjectGUID: tools.FormatGUID(entry.GetRawAttributeValue("objectGUID")),
	}, nil
}

// FindGroup walks GroupSearchBases in order and returns the first match.
func FindGroup(s *ldapclient.Session, groupName string) (*ADGroup, error) {
	bases := GroupSearchBases(s.Config())
	for _, base := range bases {
		group, err := GetGroupByCN(s, groupName, base)
		if err != nil {
			if errors.Is(err, ldapclient.ErrNotFound) {
				tools.Log.WithFields(logrus.Fields{"group": groupName, "base": base}).Debug("Search base does not exist")
				continue
			}
			if ldapclient.IsSessionFatal(err) {
				return nil, err
			}
			tools.Log.WithFields(logrus.Fields{
				"group": groupName,
				"base":  base,
				"error": err,
			}).Warn("Group search failed, trying next base")
			continue
		}
		if group != nil {
			tools.Log.WithFields(logrus.Fields{"group": groupName, "dn": group.DN}).Debug("Group located")
			return group, nil
		}
	}
	return nil, &GroupNotFoundError{GroupName: groupName, Searched: bases}
}

// AddMemberToGroup locates groupName and adds memberDN. An existing membership counts as success.
func AddMemberToGroup(s *ldapclient.Session, memberDN, groupName string) (*ADGroup, error) {
	group, err := FindGroup(s, groupName)
	if err != nil {
		return nil, err
	}

	if err := AddUserToGroup(s, group.DN, memberDN); err != nil {
		if errors.Is(err, ldapclient.ErrAlreadyExists) {
			tools.Log.WithFields(logrus.Fields{"group": groupName, "member": memberDN}).Debug("Already a member")
			return group, nil
		}
		return nil, &GroupMembershipError{GroupName: groupName, Cause: err}
	}

	tools.Log.WithFields(logrus.Fields{"group": groupName, "member": memberDN}).Info("Added member to group")
	return group, nil
}

// AddUserToGroup adds a user (by DN) to the group's "member" attribute.
func AddUserToGroup(s *ldapclient.Session, groupDN, userDN string) error {
	modReq := ldap.NewModifyRequest(groupDN, nil)
	modReq.Add("member", []string{userDN})
	return s.Modify(modReq)
}
