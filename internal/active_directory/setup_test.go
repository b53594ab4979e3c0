package active_directory_test

import (
	"context"
	"testing"

	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient/ldaptest"
	"github.com/stretchr/testify/require"
)

const baseDN = "DC=corp,DC=example,DC=com"

func testConfig() ldapclient.Config {
	return ldapclient.Config{
		Server:        "dc01.corp.example.com",
		Protocol:      ldapclient.ProtocolSecure,
		BaseDN:        baseDN,
		BindAccount:   "svc-sync",
		BindSecret:    "s3cretpass",
		WorkingOU:     "OU=Staff," + baseDN,
		BaselineGroup: "All Staff",
	}
}

func openSession(t *testing.T, dir *ldaptest.Directory, cfg ldapclient.Config) *ldapclient.Session {
	t.Helper()
	s, err := ldapclient.Connect(context.Background(), cfg, dir.Option())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	dir.ResetCalls()
	return s
}
