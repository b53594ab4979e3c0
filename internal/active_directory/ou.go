package active_directory

import (
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
	"github.com/matthewdavidson09/onboard-sync/tools"
)

// EnsureContainerExists verifies containerDN and creates it, along with any missing OU ancestors.
// Calling it again on the same path performs a single base search and no writes.
func EnsureContainerExists(s *ldapclient.Session, containerDN string) error {
	_, err := s.SearchOne(containerDN, "(objectClass=*)", []string{"distinguishedName"})
	if err == nil {
		return nil
	}
	if !errors.Is(err, ldapclient.ErrNotFound) {
		return err
	}

	rdn, parent := ldapclient.SplitDN(containerDN)
	if parent == "" {
		return ldapclient.NewValidationError("ensure container", fmt.Sprintf("%q has no parent to create it under", containerDN))
	}

	// DC= and CN= parents are never auto-created; the domain root always exists.
	if ldapclient.IsOrganizationalUnit(parent) {
		if err := EnsureContainerExists(s, parent); err != nil {
			return err
		}
	}

	tools.Log.WithField("dn", containerDN).Info("Container not found, creating")
	return createContainer(s, containerDN, rdn)
}

func createContainer(s *ldapclient.Session, dn, rdn string) error {
	name := ldapclient.RDNValue(dn)
	addReq := ldap.NewAddRequest(dn, nil)
	switch ldapclient.RDNType(rdn) {
	case "OU":
		addReq.Attribute("objectClass", []string{"top", "organizationalUnit"})
		addReq.Attribute("ou", []string{name})
	default:
		addReq.Attribute("objectClass", []string{"top", "container"})
		addReq.Attribute("cn", []string{name})
	}

	err := s.Add(addReq)
	if errors.Is(err, ldapclient.ErrAlreadyExists) {
		tools.Log.WithField("dn", dn).Warn("Container created by another process")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create container %s: %w", dn, err)
	}
	tools.Log.WithField("dn", dn).Info("Container created successfully")
	return nil
}
