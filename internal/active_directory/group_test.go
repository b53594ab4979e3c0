package active_directory_test

import (
	"errors"
	"testing"

	"github.com/go-ldap/ldap/v3"
	ad "github.com/matthewdavidson09/onboard-sync/internal/active_directory"
	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient/ldaptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const memberDN = "CN=Jane Doe,OU=Staff," + baseDN

func newGroupDirectory() *ldaptest.Directory {
	dir := ldaptest.New(baseDN)
	dir.Seed("OU=Staff,"+baseDN, map[string][]string{"objectClass": {"organizationalUnit"}})
	dir.SeedUser(memberDN, "jdoe", nil)
	return dir
}

func TestGroupSearchBases_Order(t *testing.T) {
	assert.Equal(t, []string{
		"OU=Staff," + baseDN,
		baseDN,
		"CN=Users," + baseDN,
		"CN=Builtin," + baseDN,
	}, ad.GroupSearchBases(testConfig()))

	cfg := testConfig()
	cfg.WorkingOU = ""
	assert.Equal(t, []string{baseDN, "CN=Users," + baseDN, "CN=Builtin," + baseDN}, ad.GroupSearchBases(cfg))
}

func TestAddMemberToGroup_StopsAtFirstBase(t *testing.T) {
	dir := newGroupDirectory()
	dir.SeedGroup("CN=Engineers,OU=Staff," + baseDN)
	s := openSession(t, dir, testConfig())

	group, err := ad.AddMemberToGroup(s, memberDN, "Engineers")
	require.NoError(t, err)

	assert.Equal(t, "CN=Engineers,OU=Staff,"+baseDN, group.DN)
	assert.Equal(t, []string{"OU=Staff," + baseDN}, dir.SearchBases())
	assert.Equal(t, []string{memberDN}, dir.Attr(group.DN, "member"))
}

func TestAddMemberToGroup_SameNameTwiceUnderOneBase(t *testing.T) {
	dir := newGroupDirectory()
	dir.Seed("OU=Team,OU=Staff,"+baseDN, map[string][]string{"objectClass": {"organizationalUnit"}})
	dir.SeedGroup("CN=Engineers,OU=Staff," + baseDN)
	dir.SeedGroup("CN=Engineers,OU=Team,OU=Staff," + baseDN)
	s := openSession(t, dir, testConfig())

	group, err := ad.AddMemberToGroup(s, memberDN, "Engineers")
	require.NoError(t, err)

	assert.Equal(t, "CN=Engineers,OU=Staff,"+baseDN, group.DN)
	assert.Equal(t, []string{"OU=Staff," + baseDN}, dir.SearchBases(), "found at the first base")
}

func TestAddMemberToGroup_FallsBackToBuiltin(t *testing.T) {
	cfg := testConfig()
	cfg.WorkingOU = "OU=Missing," + baseDN
	dir := newGroupDirectory()
	dir.SeedGroup("CN=Remote Desktop Users,CN=Builtin," + baseDN)
	// Builtin is only reachable by its own base once the root and Users searches come back empty.
	dir.Fail("search", baseDN, ldaptest.ResultError(ldap.LDAPResultSizeLimitExceeded))
	s := openSession(t, dir, cfg)

	group, err := ad.AddMemberToGroup(s, memberDN, "Remote Desktop Users")
	require.NoError(t, err)
	assert.Equal(t, "CN=Remote Desktop Users,CN=Builtin,"+baseDN, group.DN)
	assert.Equal(t, []string{
		"OU=Missing," + baseDN,
		baseDN,
		"CN=Users," + baseDN,
		"CN=Builtin," + baseDN,
	}, dir.SearchBases())
}

func TestAddMemberToGroup_NotFoundAfterAllBases(t *testing.T) {
	dir := newGroupDirectory()
	s := openSession(t, dir, testConfig())

	_, err := ad.AddMemberToGroup(s, memberDN, "Ghosts")

	var notFound *ad.GroupNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "Ghosts", notFound.GroupName)
	assert.Equal(t, ad.GroupSearchBases(testConfig()), dir.SearchBases(), "all four bases queried in order")
	assert.Zero(t, dir.MutationCount())
}

func TestAddMemberToGroup_Idempotent(t *testing.T) {
	dir := newGroupDirectory()
	dir.SeedGroup("CN=VPN Users,CN=Users," + baseDN)
	s := openSession(t, dir, testConfig())

	_, err := ad.AddMemberToGroup(s, memberDN, "VPN Users")
	require.NoError(t, err)
	_, err = ad.AddMemberToGroup(s, memberDN, "VPN Users")
	require.NoError(t, err, "existing membership is success")

	assert.Equal(t, []string{memberDN}, dir.Attr("CN=VPN Users,CN=Users,"+baseDN, "member"))
}

func TestAddMemberToGroup_ModifyFailureIsMembershipError(t *testing.T) {
	dir := newGroupDirectory()
	dir.SeedGroup("CN=Finance,OU=Staff," + baseDN)
	dir.Fail("modify", "CN=Finance,OU=Staff,"+baseDN, ldaptest.ResultError(ldap.LDAPResultInsufficientAccessRights))
	s := openSession(t, dir, testConfig())

	_, err := ad.AddMemberToGroup(s, memberDN, "Finance")

	var membership *ad.GroupMembershipError
	require.True(t, errors.As(err, &membership))
	assert.Equal(t, "Finance", membership.GroupName)
	assert.ErrorIs(t, err, ldapclient.ErrPermission)
}

func TestAddMemberToGroup_TimeoutAbortsSearch(t *testing.T) {
	dir := newGroupDirectory()
	dir.Fail("search", "OU=Staff,"+baseDN, ldaptest.TimeoutError())
	s := openSession(t, dir, testConfig())

	_, err := ad.AddMemberToGroup(s, memberDN, "Engineers")
	assert.ErrorIs(t, err, ldapclient.ErrTimeout)
	assert.Len(t, dir.Searches, 1)
}
