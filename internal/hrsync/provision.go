package hrsync

import (
	"context"
	"strings"

	ad "github.com/matthewdavidson09/onboard-sync/internal/active_directory"
	"github.com/matthewdavidson09/onboard-sync/internal/audit"
	"github.com/matthewdavidson09/onboard-sync/internal/hris"
	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
)

// Provision creates or reconciles one account under the engine guard and emits its audit event.
func (e *Engine) Provision(ctx context.Context, spec ad.AccountSpec) (*ad.ProvisioningOutcome, error) {
	if !e.guard.TryLock() {
		return nil, ErrRunInProgress
	}
	defer e.guard.Unlock()

	subject := strings.TrimSpace(spec.EmployeeID)
	if subject == "" {
		subject = strings.TrimSpace(spec.SAMAccountName)
	}
	actor := audit.ActorFrom(ctx)

	outcome, err := e.provision(ctx, spec)
	if err != nil {
		audit.Emit(ctx, e.sink, audit.New(subject, audit.ActionProvision, audit.StatusFailed, err.Error(), actor))
		return nil, err
	}

	status := audit.StatusSuccess
	if outcome.Partial() {
		status = audit.StatusPartial
	}
	audit.Emit(ctx, e.sink, audit.New(subject, audit.ActionProvision, status, outcome.Message(), actor))
	return outcome, nil
}

func (e *Engine) provision(ctx context.Context, spec ad.AccountSpec) (*ad.ProvisioningOutcome, error) {
	cfg, err := e.config.Load(ctx)
	if err != nil {
		return nil, err
	}
	s, err := ldapclient.Connect(ctx, cfg, e.sessionOpts...)
	if err != nil {
		return nil, err
	}
	return ad.ProvisionAccount(ctx, s, spec)
}

// SpecFromRecord fills an account spec from HR data. The caller supplies the initial password and
// any role groups.
func SpecFromRecord(rec hris.Record) ad.AccountSpec {
	return ad.AccountSpec{
		SAMAccountName: rec.AccountName,
		GivenName:      rec.GivenName,
		Surname:        rec.Surname,
		DisplayName:    rec.DisplayName,
		Email:          rec.Email,
		EmployeeID:     rec.EmployeeID,
		Department:     rec.Department,
		Title:          rec.Title,
		Mobile:         rec.MobileNumber,
	}
}

// CheckDirectory opens and binds a session with the current configuration, then closes it.
func (e *Engine) CheckDirectory(ctx context.Context) error {
	cfg, err := e.config.Load(ctx)
	if err != nil {
		return err
	}
	s, err := ldapclient.Connect(ctx, cfg, e.sessionOpts...)
	if err != nil {
		return err
	}
	s.Close()
	return nil
}
