package hrsync

import (
	"context"
	"testing"

	ad "github.com/matthewdavidson09/onboard-sync/internal/active_directory"
	"github.com/matthewdavidson09/onboard-sync/internal/audit"
	"github.com/matthewdavidson09/onboard-sync/internal/hris"
	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_ProvisionEmitsAudit(t *testing.T) {
	dir := seededDirectory()
	dir.SeedGroup("CN=All Staff,CN=Users," + baseDN)
	engine, events := newTestEngine(dir, nil)

	spec := SpecFromRecord(hris.Record{
		EmployeeID:  "E50",
		AccountName: "nhire",
		GivenName:   "New",
		Surname:     "Hire",
		Email:       "new.hire@example.com",
		Department:  "ICT",
	})
	spec.Password = "Welcome123!"
	spec.Groups = []string{"Missing Group"}

	outcome, err := engine.Provision(audit.WithActor(context.Background(), "hr-admin"), spec)
	require.NoError(t, err)
	assert.True(t, outcome.AccountCreated)
	assert.Equal(t, "CN=New Hire,CN=Users,"+baseDN, outcome.DistinguishedName)

	recorded := events.Events()
	require.Len(t, recorded, 1)
	assert.Equal(t, "E50", recorded[0].EmployeeID)
	assert.Equal(t, audit.ActionProvision, recorded[0].ActionType)
	assert.Equal(t, audit.StatusPartial, recorded[0].Status)
	assert.Equal(t, "hr-admin", recorded[0].PerformedBy)
	assert.NotContains(t, recorded[0].Message, "Welcome123!")
}

func TestEngine_ProvisionExistingAccount(t *testing.T) {
	dir := seededDirectory()
	dir.SeedGroup("CN=All Staff,CN=Users," + baseDN)
	engine, events := newTestEngine(dir, nil)

	outcome, err := engine.Provision(context.Background(), ad.AccountSpec{
		SAMAccountName: "alee", DisplayName: "Ann Lee", Password: "Welcome123!",
	})
	require.NoError(t, err)
	assert.False(t, outcome.AccountCreated)
	assert.Equal(t, annDN, outcome.DistinguishedName)

	recorded := events.Events()
	require.Len(t, recorded, 1)
	assert.Equal(t, "alee", recorded[0].EmployeeID)
	assert.Equal(t, audit.StatusSuccess, recorded[0].Status)
	assert.Contains(t, recorded[0].Message, "already existed")
}

func TestEngine_ProvisionFailureIsAudited(t *testing.T) {
	dir := seededDirectory()
	engine, events := newTestEngine(dir, nil)

	_, err := engine.Provision(context.Background(), ad.AccountSpec{
		SAMAccountName: "short", DisplayName: "Short Pw", Password: "abc",
	})
	assert.ErrorIs(t, err, ldapclient.ErrValidation)
	assert.Zero(t, dir.MutationCount())

	recorded := events.Events()
	require.Len(t, recorded, 1)
	assert.Equal(t, audit.StatusFailed, recorded[0].Status)
}

func TestEngine_CheckDirectory(t *testing.T) {
	dir := seededDirectory()
	engine, _ := newTestEngine(dir, nil)
	require.NoError(t, engine.CheckDirectory(context.Background()))
	assert.Equal(t, 1, dir.Closed)

	dir.SetCredentials("svc-sync@corp.example.com", "nope")
	assert.ErrorIs(t, engine.CheckDirectory(context.Background()), ldapclient.ErrAuthentication)
}
