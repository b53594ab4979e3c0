package active_directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
	"github.com/matthewdavidson09/onboard-sync/tools"
	"github.com/sirupsen/logrus"
)

// AccountSpec is the desired state of a new hire's directory account.
type AccountSpec struct {
	SAMAccountName string   `json:"accountName" yaml:"accountName"`
	GivenName      string   `json:"givenName" yaml:"givenName"`
	Surname        string   `json:"surname" yaml:"surname"`
	DisplayName    string   `json:"displayName" yaml:"displayName"`
	Email          string   `json:"email" yaml:"email"`
	Password       string   `json:"password" yaml:"password"`
	EmployeeID     string   `json:"employeeId" yaml:"employeeId"`
	Department     string   `json:"department" yaml:"department"`
	Title          string   `json:"title" yaml:"title"`
	Mobile         string   `json:"mobile" yaml:"mobile"`
	Container      string   `json:"container" yaml:"container"`
	Groups         []string `json:"groups" yaml:"groups"`
}

// ProvisioningOutcome reports what ProvisionAccount did. AccountCreated=false means the account
// already existed and only memberships were reconciled. A group missing from GroupsApplied failed.
type ProvisioningOutcome struct {
	AccountCreated        bool              `json:"accountCreated"`
	DistinguishedName     string            `json:"distinguishedName"`
	GroupsApplied         []string          `json:"groupsApplied"`
	GroupErrors           map[string]string `json:"groupErrors,omitempty"`
	UsedFallbackContainer bool              `json:"usedFallbackContainer,omitempty"`
}

// Partial reports whether the account is usable but at least one membership failed.
func (o *ProvisioningOutcome) Partial() bool {
	return len(o.GroupErrors) > 0
}

// Message is the audit text for the outcome.
func (o *ProvisioningOutcome) Message() string {
	var b strings.Builder
	if o.AccountCreated {
		fmt.Fprintf(&b, "Account created at %s", o.DistinguishedName)
		if o.UsedFallbackContainer {
			b.WriteString(" (default container)")
		}
	} else {
		fmt.Fprintf(&b, "Account already existed at %s; memberships reconciled", o.DistinguishedName)
	}
	if len(o.GroupsApplied) > 0 {
		fmt.Fprintf(&b, "; groups: %s", strings.Join(o.GroupsApplied, ", "))
	}
	if len(o.GroupErrors) > 0 {
		fmt.Fprintf(&b, "; failed groups: %s", strings.Join(mapKeysSorted(o.GroupErrors), ", "))
	}
	return b.String()
}

func (a AccountSpec) displayName() string {
	if strings.TrimSpace(a.DisplayName) != "" {
		return strings.TrimSpace(a.DisplayName)
	}
	return DisplayNameFor(a.GivenName, a.Surname)
}

func (a AccountSpec) validate() error {
	var missing []string
	if strings.TrimSpace(a.SAMAccountName) == "" {
		missing = append(missing, "accountName")
	}
	if a.displayName() == "" {
		missing = append(missing, "displayName (or givenName/surname)")
	}
	if len(missing) > 0 {
		return ldapclient.NewValidationError("provision", "missing required field(s): "+strings.Join(missing, ", "))
	}
	return nil
}

// ProvisionAccount creates the account if it does not exist, then applies the baseline group and
// every requested group. It always closes s.
func ProvisionAccount(ctx context.Context, s *ldapclient.Session, spec AccountSpec) (*ProvisioningOutcome, error) {
	defer s.Close()
	cfg := s.Config()
	account := strings.TrimSpace(spec.SAMAccountName)

	if err := spec.validate(); err != nil {
		return nil, &ProvisioningError{Account: account, Stage: StageValidate, Err: err}
	}

	existing, err := GetUserBySAMAccountName(s, account)
	if err != nil {
		return nil, &ProvisioningError{Account: account, Stage: StageExistence, Err: err}
	}

	outcome := &ProvisioningOutcome{GroupsApplied: []string{}}
	if existing != nil {
		tools.Log.WithFields(logrus.Fields{"account": account, "dn": existing.DN}).Info("Account already exists, skipping create")
		outcome.DistinguishedName = existing.DN
	} else {
		dn, fallback, err := createAccount(s, spec)
		if err != nil {
			return nil, err
		}
		outcome.AccountCreated = true
		outcome.DistinguishedName = dn
		outcome.UsedFallbackContainer = fallback
	}

	groups := dedupeFold(append([]string{cfg.BaselineGroupName()}, spec.Groups...))
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			recordGroupError(outcome, group, err)
			continue
		}
		if _, err := AddMemberToGroup(s, outcome.DistinguishedName, group); err != nil {
			tools.Log.WithFields(logrus.Fields{
				"account": account,
				"group":   group,
				"error":   err,
			}).Warn("Group membership failed")
			recordGroupError(outcome, group, err)
			continue
		}
		outcome.GroupsApplied = append(outcome.GroupsApplied, group)
	}

	tools.Log.WithFields(logrus.Fields{
		"account": account,
		"created": outcome.AccountCreated,
		"groups":  len(outcome.GroupsApplied),
		"failed":  len(outcome.GroupErrors),
	}).Info("Provisioning finished")
	return outcome, nil
}

func recordGroupError(o *ProvisioningOutcome, group string, err error) {
	if o.GroupErrors == nil {
		o.GroupErrors = make(map[string]string)
	}
	o.GroupErrors[group] = err.Error()
}

func createAccount(s *ldapclient.Session, spec AccountSpec) (dn string, usedFallback bool, err error) {
	cfg := s.Config()
	account := strings.TrimSpace(spec.SAMAccountName)

	secret, err := ldapclient.EncodeSecret(spec.Password)
	if err != nil {
		return "", false, &ProvisioningError{Account: account, Stage: StageValidate, Err: err}
	}

	container := firstNonEmpty(spec.Container, cfg.WorkingOU, cfg.UsersContainerDN())
	if err := EnsureContainerExists(s, container); err != nil {
		if ldapclient.IsSessionFatal(err) {
			return "", false, &ProvisioningError{Account: account, Stage: StageCreate, Err: err}
		}
		tools.Log.WithFields(logrus.Fields{
			"container": container,
			"error":     err,
		}).Warn("Could not ensure container, falling back to default Users container")
		container = cfg.UsersContainerDN()
		usedFallback = true
	}

	displayName := spec.displayName()
	dn = fmt.Sprintf("CN=%s,%s", ldapclient.EscapeDNValue(displayName), container)

	b := newAttrBuilder(dn).
		set("objectClass", "top", "person", "organizationalPerson", "user").
		set("cn", displayName).
		set("sAMAccountName", account).
		set("displayName", displayName).
		setIf("givenName", spec.GivenName, nonEmpty).
		setIf("sn", spec.Surname, nonEmpty).
		setIf("mail", spec.Email, hasMailShape).
		setIf("employeeID", spec.EmployeeID, nonEmpty).
		setIf("department", spec.Department, nonEmpty).
		setIf("title", spec.Title, nonEmpty).
		setIf("mobile", spec.Mobile, nonEmpty).
		set("userAccountControl", tools.NewAccountUAC()).
		set("unicodePwd", string(secret))
	if domain := cfg.DomainName(); domain != "" {
		b.set("userPrincipalName", account+"@"+domain)
	}

	if cfg.Protocol != ldapclient.ProtocolSecure {
		tools.Log.WithField("account", account).Warn("Setting unicodePwd over a plain connection; most directories reject this")
	}

	if err := s.Add(b.request()); err != nil {
		tools.Log.WithFields(logrus.Fields{
			"dn":    dn,
			"error": err,
		}).Error("Failed to create account")
		return "", false, &ProvisioningError{Account: account, Stage: StageCreate, Err: err}
	}

	tools.Log.WithFields(logrus.Fields{"account": account, "dn": dn}).Info("Account created successfully")
	return dn, usedFallback, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
