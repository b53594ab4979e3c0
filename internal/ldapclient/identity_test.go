package ldapclient_test

import (
	"errors"
	"testing"

	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() ldapclient.Config {
	return ldapclient.Config{
		Server:      "dc01.corp.example.com",
		Protocol:    ldapclient.ProtocolPlain,
		BaseDN:      "DC=corp,DC=example,DC=com",
		BindAccount: "svc-sync",
		BindSecret:  "s3cretpass",
		AuthFormat:  ldapclient.AuthFormatPrincipal,
	}
}

func TestFormatBindIdentity_Principal(t *testing.T) {
	cfg := testConfig()

	assert.Equal(t, "svc-sync@corp.example.com", ldapclient.FormatBindIdentity(cfg, "svc-sync"))
	assert.Equal(t, "svc-sync@other.org", ldapclient.FormatBindIdentity(cfg, "svc-sync@other.org"))

	cfg.Domain = "CORP.EXAMPLE.COM"
	assert.Equal(t, "svc-sync@CORP.EXAMPLE.COM", ldapclient.FormatBindIdentity(cfg, " svc-sync "))
}

func TestFormatBindIdentity_DNPassthrough(t *testing.T) {
	cfg := testConfig()
	dn := "cn=Sync Service,OU=Service Accounts,DC=corp,DC=example,DC=com"

	assert.Equal(t, dn, ldapclient.FormatBindIdentity(cfg, dn))
	cfg.AuthFormat = ldapclient.AuthFormatDN
	assert.Equal(t, dn, ldapclient.FormatBindIdentity(cfg, dn))
}

func TestFormatBindIdentity_DNFormat(t *testing.T) {
	cfg := testConfig()
	cfg.AuthFormat = ldapclient.AuthFormatDN

	assert.Equal(t, "CN=svc-sync,DC=corp,DC=example,DC=com", ldapclient.FormatBindIdentity(cfg, "svc-sync@corp.example.com"))
	assert.Equal(t, "CN=svc-sync,DC=corp,DC=example,DC=com", ldapclient.FormatBindIdentity(cfg, `CORP\svc-sync`))

	cfg.BindContainer = "CN=Users"
	assert.Equal(t, "CN=svc-sync,CN=Users,DC=corp,DC=example,DC=com", ldapclient.FormatBindIdentity(cfg, "svc-sync"))

	assert.Equal(t, `CN=Doe\, Jane,CN=Users,DC=corp,DC=example,DC=com`, ldapclient.FormatBindIdentity(cfg, "Doe, Jane"))
}

func TestEncodeSecret_LengthBoundary(t *testing.T) {
	_, err := ldapclient.EncodeSecret("abc123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ldapclient.ErrValidation))

	encoded, err := ldapclient.EncodeSecret("abc1234")
	require.NoError(t, err)
	assert.NotEmpty(t, encoded)
}

func TestEncodeSecret_Empty(t *testing.T) {
	_, err := ldapclient.EncodeSecret("")
	assert.ErrorIs(t, err, ldapclient.ErrValidation)
}

func TestEncodeSecret_QuotedUTF16LE(t *testing.T) {
	encoded, err := ldapclient.EncodeSecret("Passw0rd")
	require.NoError(t, err)

	want := []byte{'"', 0}
	for _, c := range "Passw0rd" {
		want = append(want, byte(c), 0)
	}
	want = append(want, '"', 0)
	assert.Equal(t, want, encoded)
}

func TestEncodeSecret_ErrorDoesNotLeakSecret(t *testing.T) {
	_, err := ldapclient.EncodeSecret("hunter")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "hunter")
}
