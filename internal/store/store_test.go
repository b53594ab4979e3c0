package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matthewdavidson09/onboard-sync/internal/audit"
	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
	"github.com/matthewdavidson09/onboard-sync/internal/schedule"
	"github.com/matthewdavidson09/onboard-sync/internal/security"
	"github.com/matthewdavidson09/onboard-sync/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "onboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testCipher(t *testing.T) *security.SecretCipher {
	t.Helper()
	c, err := security.NewSecretCipher(strings.Repeat("k", 32))
	require.NoError(t, err)
	return c
}

func directoryConfig() ldapclient.Config {
	return ldapclient.Config{
		Server:      "dc01.corp.example.com",
		Protocol:    ldapclient.ProtocolSecure,
		BaseDN:      "DC=corp,DC=example,DC=com",
		BindAccount: "svc-sync",
		BindSecret:  "initial-secret",
		WorkingOU:   "OU=Staff,DC=corp,DC=example,DC=com",
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "onboard.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestSchedule_DefaultsOnFirstAccess(t *testing.T) {
	s := openTestStore(t)

	state, err := s.GetSchedule(context.Background())
	require.NoError(t, err)
	assert.Equal(t, schedule.DefaultState(), state)
}

func TestSchedule_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	next := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	last := time.Date(2024, 3, 3, 0, 0, 5, 0, time.UTC)

	require.NoError(t, s.SaveSchedule(context.Background(), schedule.State{
		Enabled: true, Frequency: schedule.Weekly, NextRun: &next, LastRun: &last,
	}))

	state, err := s.GetSchedule(context.Background())
	require.NoError(t, err)
	assert.True(t, state.Enabled)
	assert.Equal(t, schedule.Weekly, state.Frequency)
	require.NotNil(t, state.NextRun)
	assert.True(t, next.Equal(*state.NextRun))
	assert.True(t, last.Equal(*state.LastRun))
}

func TestSchedule_ServiceIntegration(t *testing.T) {
	svc := schedule.NewService(openTestStore(t))

	state, err := svc.Update(context.Background(), true, schedule.Monthly)
	require.NoError(t, err)
	require.NotNil(t, state.NextRun)
	assert.Equal(t, 1, state.NextRun.Day())

	reloaded, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, state.NextRun.Equal(*reloaded.NextRun))
}

func TestDirectoryConfig_NotConfigured(t *testing.T) {
	d := openTestStore(t).DirectoryConfig(testCipher(t))

	_, err := d.Get(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = d.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestDirectoryConfig_MasksSecret(t *testing.T) {
	d := openTestStore(t).DirectoryConfig(testCipher(t))

	saved, err := d.Save(context.Background(), directoryConfig())
	require.NoError(t, err)
	assert.Equal(t, tools.SecretMask, saved.BindSecret)

	got, err := d.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tools.SecretMask, got.BindSecret)
	assert.Equal(t, "OU=Staff,DC=corp,DC=example,DC=com", got.WorkingOU)

	loaded, err := d.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "initial-secret", loaded.BindSecret)
}

func TestDirectoryConfig_SecretSealedAtRest(t *testing.T) {
	s := openTestStore(t)
	d := s.DirectoryConfig(testCipher(t))
	_, err := d.Save(context.Background(), directoryConfig())
	require.NoError(t, err)

	var body, sealed string
	require.NoError(t, s.db.QueryRow(`SELECT config, bind_secret FROM directory_config`).Scan(&body, &sealed))
	assert.NotContains(t, body, "initial-secret")
	assert.NotContains(t, sealed, "initial-secret")
	assert.True(t, strings.HasPrefix(sealed, "v1:"))
}

func TestDirectoryConfig_MaskWriteBackKeepsSecret(t *testing.T) {
	d := openTestStore(t).DirectoryConfig(testCipher(t))
	_, err := d.Save(context.Background(), directoryConfig())
	require.NoError(t, err)

	got, err := d.Get(context.Background())
	require.NoError(t, err)
	got.Server = "dc02.corp.example.com"
	_, err = d.Save(context.Background(), got)
	require.NoError(t, err)

	cleared := got
	cleared.BindSecret = ""
	_, err = d.Save(context.Background(), cleared)
	require.NoError(t, err)

	loaded, err := d.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dc02.corp.example.com", loaded.Server)
	assert.Equal(t, "initial-secret", loaded.BindSecret)

	rotated := got
	rotated.BindSecret = "rotated-secret"
	_, err = d.Save(context.Background(), rotated)
	require.NoError(t, err)
	loaded, err = d.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rotated-secret", loaded.BindSecret)
}

func TestDirectoryConfig_SaveValidates(t *testing.T) {
	d := openTestStore(t).DirectoryConfig(testCipher(t))
	cfg := directoryConfig()
	cfg.Server = ""

	_, err := d.Save(context.Background(), cfg)
	assert.ErrorIs(t, err, ldapclient.ErrValidation)
}

func TestDirectoryConfig_Bootstrap(t *testing.T) {
	d := openTestStore(t).DirectoryConfig(testCipher(t))

	wrote, err := d.Bootstrap(context.Background(), directoryConfig())
	require.NoError(t, err)
	assert.True(t, wrote)

	other := directoryConfig()
	other.Server = "ignored.example.com"
	wrote, err = d.Bootstrap(context.Background(), other)
	require.NoError(t, err)
	assert.False(t, wrote)

	loaded, err := d.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dc01.corp.example.com", loaded.Server)
}

func TestAuditStore_RecordAndList(t *testing.T) {
	a := openTestStore(t).Audit()
	ctx := context.Background()

	base := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"E1", "E2", "E1"} {
		e := audit.New(id, audit.ActionSync, audit.StatusSuccess, "updated", "alice")
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, a.Record(ctx, e))
	}

	all, err := a.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Timestamp.After(all[1].Timestamp), "newest first")
	assert.Equal(t, "alice", all[0].PerformedBy)

	mine, err := a.List(ctx, "E1", 1)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, base.Add(2*time.Minute), mine[0].Timestamp)
}

func TestAuditStore_EmptyList(t *testing.T) {
	events, err := openTestStore(t).Audit().List(context.Background(), "", 10)
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestAuditStore_WorksThroughEmit(t *testing.T) {
	a := openTestStore(t).Audit()
	audit.Emit(context.Background(), audit.Multi{audit.LogSink{}, a}, audit.New("E5", audit.ActionProvision, audit.StatusPartial, "groups failed", ""))

	events, err := a.List(context.Background(), "E5", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.SystemActor, events[0].PerformedBy)
}
