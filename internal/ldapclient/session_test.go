package ldapclient_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient/ldaptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_URLAndPorts(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "ldap://dc01.corp.example.com:389", cfg.URL())

	cfg.Protocol = ldapclient.ProtocolSecure
	assert.Equal(t, "ldaps://dc01.corp.example.com:636", cfg.URL())

	cfg.Port = 3269
	assert.Equal(t, "ldaps://dc01.corp.example.com:3269", cfg.URL())
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, testConfig().Validate())

	cfg := testConfig()
	cfg.Server = ""
	cfg.BaseDN = ""
	err := cfg.Validate()
	assert.ErrorIs(t, err, ldapclient.ErrValidation)
	assert.Contains(t, err.Error(), "server")
	assert.Contains(t, err.Error(), "baseDn")

	cfg = testConfig()
	cfg.Protocol = "starttls"
	assert.ErrorIs(t, cfg.Validate(), ldapclient.ErrValidation)
}

func TestConfig_Containers(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "CN=Users,DC=corp,DC=example,DC=com", cfg.UsersContainerDN())
	assert.Equal(t, "CN=Builtin,DC=corp,DC=example,DC=com", cfg.BuiltinContainerDN())
	assert.Equal(t, "employeeID", cfg.EmployeeIDAttr())

	cfg.UsersContainer = "OU=New Hires,DC=corp,DC=example,DC=com"
	assert.Equal(t, "OU=New Hires,DC=corp,DC=example,DC=com", cfg.UsersContainerDN())

	cfg.BaseDN = "OU=Root, DC=corp , dc=example,DC=com"
	assert.Equal(t, "corp.example.com", cfg.DomainName())
}

func TestConfig_BaselineGroupName(t *testing.T) {
	cfg := testConfig()
	cfg.BaselineGroup = ""
	assert.Equal(t, ldapclient.DefaultBaselineGroup, cfg.BaselineGroupName())

	cfg.BaselineGroup = "  "
	assert.Equal(t, ldapclient.DefaultBaselineGroup, cfg.BaselineGroupName())

	cfg.BaselineGroup = " Everyone "
	assert.Equal(t, "Everyone", cfg.BaselineGroupName())
}

func TestConnect_BindsWithFormattedIdentity(t *testing.T) {
	cfg := testConfig()
	dir := ldaptest.New(cfg.BaseDN)
	dir.SetCredentials("svc-sync@corp.example.com", cfg.BindSecret)

	s, err := ldapclient.Connect(context.Background(), cfg, dir.Option())
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"svc-sync@corp.example.com"}, dir.Binds)
}

func TestConnect_InvalidCredentials(t *testing.T) {
	cfg := testConfig()
	dir := ldaptest.New(cfg.BaseDN)
	dir.SetCredentials("svc-sync@corp.example.com", "another-secret")

	_, err := ldapclient.Connect(context.Background(), cfg, dir.Option())
	require.Error(t, err)
	assert.ErrorIs(t, err, ldapclient.ErrAuthentication)

	e := err.(*ldapclient.Error)
	assert.Equal(t, uint16(ldap.LDAPResultInvalidCredentials), e.Code)
	assert.Equal(t, "invalid credentials", e.Text)
	assert.NotContains(t, err.Error(), cfg.BindSecret)
	assert.Equal(t, 1, dir.Closed, "failed bind must close the connection")
}

func TestBind_UnwillingIsAuthentication(t *testing.T) {
	cfg := testConfig()
	dir := ldaptest.New(cfg.BaseDN)
	dir.Fail("bind", "", ldaptest.ResultError(ldap.LDAPResultUnwillingToPerform))

	_, err := ldapclient.Connect(context.Background(), cfg, dir.Option())
	assert.ErrorIs(t, err, ldapclient.ErrAuthentication)
}

func TestOpen_DialFailureIsConnectionError(t *testing.T) {
	cfg := testConfig()
	dir := ldaptest.New(cfg.BaseDN)
	dir.DialErr = ldap.NewError(ldap.ErrorNetwork, assert.AnError)

	_, err := ldapclient.Open(context.Background(), cfg, dir.Option())
	assert.ErrorIs(t, err, ldapclient.ErrConnection)
}

func TestOpen_InvalidConfigNeverDials(t *testing.T) {
	cfg := testConfig()
	cfg.BindAccount = ""
	dir := ldaptest.New(cfg.BaseDN)
	dir.DialErr = assert.AnError

	_, err := ldapclient.Open(context.Background(), cfg, dir.Option())
	assert.ErrorIs(t, err, ldapclient.ErrValidation)
}

func TestSession_ClosesOnContextCancel(t *testing.T) {
	cfg := testConfig()
	dir := ldaptest.New(cfg.BaseDN)
	ctx, cancel := context.WithCancel(context.Background())

	s, err := ldapclient.Open(ctx, cfg, dir.Option())
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, s.Closed, time.Second, 5*time.Millisecond)
	s.Close()
	assert.Equal(t, 1, dir.Closed, "close must be idempotent")
}

func TestSession_SearchSizeLimitReturnsEntries(t *testing.T) {
	cfg := testConfig()
	dir := ldaptest.New(cfg.BaseDN)
	dir.SeedGroup("CN=Engineers,CN=Users," + cfg.BaseDN)
	dir.SeedGroup("CN=Engineers,CN=Builtin," + cfg.BaseDN)
	s, err := ldapclient.Open(context.Background(), cfg, dir.Option())
	require.NoError(t, err)
	defer s.Close()

	req := ldap.NewSearchRequest(cfg.BaseDN, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases,
		1, 0, false, "(cn=Engineers)", []string{"cn"}, nil)
	entries, err := s.Search(req)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	dir.Fail("search", cfg.BaseDN, ldaptest.ResultError(ldap.LDAPResultSizeLimitExceeded))
	_, err = s.Search(req)
	assert.Error(t, err, "sizeLimitExceeded without entries is still a failure")
}

func TestSession_SearchOneNotFound(t *testing.T) {
	cfg := testConfig()
	dir := ldaptest.New(cfg.BaseDN)
	s, err := ldapclient.Open(context.Background(), cfg, dir.Option())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.SearchOne("OU=Missing,"+cfg.BaseDN, "(objectClass=*)", nil)
	assert.ErrorIs(t, err, ldapclient.ErrNotFound)

	entry, err := s.SearchOne("CN=Users,"+cfg.BaseDN, "(objectClass=*)", []string{"cn"})
	require.NoError(t, err)
	assert.Equal(t, "Users", entry.GetAttributeValue("cn"))
}

func TestSplitDN(t *testing.T) {
	rdn, parent := ldapclient.SplitDN(`CN=Doe\, Jane,OU=Staff,DC=corp,DC=com`)
	assert.Equal(t, `CN=Doe\, Jane`, rdn)
	assert.Equal(t, "OU=Staff,DC=corp,DC=com", parent)
	assert.Equal(t, "Doe, Jane", ldapclient.RDNValue(`CN=Doe\, Jane,OU=Staff,DC=corp,DC=com`))
	assert.True(t, ldapclient.IsOrganizationalUnit("ou=Staff,DC=corp,DC=com"))
	assert.False(t, ldapclient.IsOrganizationalUnit("DC=corp,DC=com"))
	assert.Equal(t, "ou=staff,dc=corp,dc=com", ldapclient.NormalizeDN("OU=Staff, DC=corp , DC=Com"))
}

func TestSplitDN_Unparseable(t *testing.T) {
	rdn, parent := ldapclient.SplitDN(" Staff ")
	assert.Equal(t, "Staff", rdn)
	assert.Empty(t, parent)
	assert.Empty(t, ldapclient.RDNValue("Staff"))
	assert.Equal(t, "staff", ldapclient.NormalizeDN(" Staff "))
}

func TestEscapeDNValue(t *testing.T) {
	cases := map[string]string{
		"Jane Doe":  "Jane Doe",
		"Doe, Jane": `Doe\, Jane`,
		"#1 Fan ":   `\#1 Fan\ `,
		"a+b;c":     `a\+b\;c`,
		"Zoë":       `Zo\c3\ab`,
	}
	for in, want := range cases {
		assert.Equal(t, want, ldapclient.EscapeDNValue(in), in)
	}

	dn := "CN=" + ldapclient.EscapeDNValue("Zoë, Smith") + ",OU=Staff,DC=corp,DC=com"
	assert.Equal(t, "Zoë, Smith", ldapclient.RDNValue(dn))
	rdn, _ := ldapclient.SplitDN(dn)
	assert.Equal(t, `CN=Zo\c3\ab\, Smith`, rdn)
}

func TestSameDN(t *testing.T) {
	assert.True(t, ldapclient.SameDN(`CN=Doe\, Jane,OU=Staff,DC=corp,DC=com`, `cn=doe\2c jane, ou=staff,dc=CORP,dc=com`))
	assert.False(t, ldapclient.SameDN("CN=Jane Doe,OU=Staff,DC=corp,DC=com", "CN=Jane Doe,DC=corp,DC=com"))
	assert.Equal(t,
		ldapclient.NormalizeDN(`CN=Doe\, Jane,OU=Staff,DC=corp,DC=com`),
		ldapclient.NormalizeDN(`cn=doe\2c jane,ou=STAFF,dc=corp,dc=com`))
}
