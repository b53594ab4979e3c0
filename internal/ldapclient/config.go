package ldapclient

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// Protocol selects the transport used to reach the directory.
type Protocol string

const (
	ProtocolPlain  Protocol = "plain"
	ProtocolSecure Protocol = "secure"
)

// AuthFormat selects how a bind account name is turned into a bind identity.
type AuthFormat string

const (
	AuthFormatPrincipal AuthFormat = "principal"
	AuthFormatDN        AuthFormat = "dn"
)

const (
	DefaultPlainPort        = 389
	DefaultSecurePort       = 636
	DefaultConnectTimeout   = 10 * time.Second
	DefaultOperationTimeout = 30 * time.Second
	DefaultSearchSizeLimit  = 1000
	DefaultBaselineGroup    = "All Staff"
)

// Config describes how to reach and bind to the directory. Sessions consume it per call and never persist it.
type Config struct {
	Server      string     `json:"server"`
	Port        int        `json:"port"`
	Protocol    Protocol   `json:"protocol"`
	BaseDN      string     `json:"baseDn"`
	BindAccount string     `json:"bindAccount"`
	BindSecret  string     `json:"bindSecret"`
	AuthFormat  AuthFormat `json:"authFormat"`

	// Domain overrides the DNS domain derived from BaseDN for principal-style identities.
	Domain string `json:"domain,omitempty"`
	// BindContainer is the sub-container under BaseDN (e.g. "CN=Users") used for DN-style bind identities.
	BindContainer string `json:"bindContainer,omitempty"`

	WorkingOU           string `json:"workingOu,omitempty"`
	UsersContainer      string `json:"usersContainer,omitempty"`
	BuiltinContainer    string `json:"builtinContainer,omitempty"`
	BaselineGroup       string `json:"baselineGroup,omitempty"`
	EmployeeIDAttribute string `json:"employeeIdAttribute,omitempty"`

	ConnectTimeout   time.Duration `json:"connectTimeout,omitempty"`
	OperationTimeout time.Duration `json:"operationTimeout,omitempty"`
}

// EffectivePort returns the configured port or the registered port for the protocol.
func (c Config) EffectivePort() int {
	if c.Port > 0 {
		return c.Port
	}
	if c.Protocol == ProtocolSecure {
		return DefaultSecurePort
	}
	return DefaultPlainPort
}

// URL is the ldap:// or ldaps:// address of the server.
func (c Config) URL() string {
	scheme := "ldap"
	if c.Protocol == ProtocolSecure {
		scheme = "ldaps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, strings.TrimSpace(c.Server), c.EffectivePort())
}

// DomainName returns Domain, or the dotted form of the DC= components of BaseDN.
func (c Config) DomainName() string {
	if c.Domain != "" {
		return c.Domain
	}
	parsed, err := ldap.ParseDN(c.BaseDN)
	if err != nil {
		return ""
	}
	var parts []string
	for _, rdn := range parsed.RDNs {
		for _, a := range rdn.Attributes {
			if strings.EqualFold(a.Type, "DC") {
				parts = append(parts, a.Value)
			}
		}
	}
	return strings.Join(parts, ".")
}

// UsersContainerDN is the conventional default container for new accounts.
func (c Config) UsersContainerDN() string {
	return c.underBase(c.UsersContainer, "CN=Users")
}

// BuiltinContainerDN is the conventional container holding built-in groups.
func (c Config) BuiltinContainerDN() string {
	return c.underBase(c.BuiltinContainer, "CN=Builtin")
}

// EmployeeIDAttr is the attribute correlating directory entries with HR records.
func (c Config) EmployeeIDAttr() string {
	if c.EmployeeIDAttribute == "" {
		return "employeeID"
	}
	return c.EmployeeIDAttribute
}

// BaselineGroupName is the group every provisioned account joins.
func (c Config) BaselineGroupName() string {
	if name := strings.TrimSpace(c.BaselineGroup); name != "" {
		return name
	}
	return DefaultBaselineGroup
}

func (c Config) underBase(value, fallback string) string {
	if value == "" {
		value = fallback
	}
	if c.BaseDN == "" || strings.HasSuffix(strings.ToLower(value), strings.ToLower(c.BaseDN)) {
		return value
	}
	return value + "," + c.BaseDN
}

func (c Config) connectTimeout() time.Duration {
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}
	return DefaultConnectTimeout
}

func (c Config) operationTimeout() time.Duration {
	if c.OperationTimeout > 0 {
		return c.OperationTimeout
	}
	return DefaultOperationTimeout
}

// Validate checks the fields required to open a session.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Server) == "" {
		missing = append(missing, "server")
	}
	if strings.TrimSpace(c.BaseDN) == "" {
		missing = append(missing, "baseDn")
	}
	if strings.TrimSpace(c.BindAccount) == "" {
		missing = append(missing, "bindAccount")
	}
	if len(missing) > 0 {
		return NewValidationError("config", "missing required field(s): "+strings.Join(missing, ", "))
	}
	switch c.Protocol {
	case "", ProtocolPlain, ProtocolSecure:
	default:
		return NewValidationError("config", fmt.Sprintf("unknown protocol %q", c.Protocol))
	}
	switch c.AuthFormat {
	case "", AuthFormatPrincipal, AuthFormatDN:
	default:
		return NewValidationError("config", fmt.Sprintf("unknown auth format %q", c.AuthFormat))
	}
	return nil
}
