// Package hrsync keeps directory accounts in step with HR records.
package hrsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	ad "github.com/matthewdavidson09/onboard-sync/internal/active_directory"
	"github.com/matthewdavidson09/onboard-sync/internal/audit"
	"github.com/matthewdavidson09/onboard-sync/internal/hris"
	"github.com/matthewdavidson09/onboard-sync/internal/ldapclient"
	"github.com/matthewdavidson09/onboard-sync/tools"
	"github.com/sirupsen/logrus"
)

type Mode string

const (
	ModeTest   Mode = "test"
	ModeManual Mode = "manual"
	ModeFull   Mode = "full"
)

// Mutates reports whether the mode writes to the directory.
func (m Mode) Mutates() bool {
	return m == ModeManual || m == ModeFull
}

func (m Mode) valid() bool {
	return m == ModeTest || m.Mutates()
}

type Action string

const (
	ActionSkipped     Action = "skipped"
	ActionWouldUpdate Action = "would_update"
	ActionUpdated     Action = "updated"
	ActionFailed      Action = "failed"
)

// Reasons reported on failed rows that did not come from a directory error.
const (
	ReasonNoDirectoryMatch = "no directory match"
	ReasonNoHRRecord       = "no HR record"
)

// SyncResult is one employee's row in a sync report.
type SyncResult struct {
	EmployeeID  string    `json:"employeeId"`
	DisplayName string    `json:"displayName"`
	Diff        FieldDiff `json:"diff"`
	Action      Action    `json:"action"`
	Error       string    `json:"error,omitempty"`
}

// Summary counts results by action.
type Summary struct {
	Total       int `json:"total"`
	Skipped     int `json:"skipped"`
	WouldUpdate int `json:"wouldUpdate"`
	Updated     int `json:"updated"`
	Failed      int `json:"failed"`
}

func Summarize(results []SyncResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Action {
		case ActionSkipped:
			s.Skipped++
		case ActionWouldUpdate:
			s.WouldUpdate++
		case ActionUpdated:
			s.Updated++
		case ActionFailed:
			s.Failed++
		}
	}
	return s
}

// ErrRunInProgress is returned when a sync or provisioning run already holds the engine.
var ErrRunInProgress = errors.New("a directory run is already in progress")

// ConfigLoader yields the directory configuration, secret included, at the start of each run.
type ConfigLoader interface {
	Load(ctx context.Context) (ldapclient.Config, error)
}

// StaticConfig is a ConfigLoader over a fixed value.
type StaticConfig ldapclient.Config

func (c StaticConfig) Load(context.Context) (ldapclient.Config, error) {
	return ldapclient.Config(c), nil
}

// Engine runs sync passes and provisioning. At most one of either runs at a time.
type Engine struct {
	config      ConfigLoader
	source      hris.Source
	sink        audit.Sink
	sessionOpts []ldapclient.Option
	guard       sync.Mutex
}

type Option func(*Engine)

func WithAuditSink(sink audit.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithSessionOptions is passed to every ldapclient.Connect the engine makes.
func WithSessionOptions(opts ...ldapclient.Option) Option {
	return func(e *Engine) { e.sessionOpts = append(e.sessionOpts, opts...) }
}

func NewEngine(config ConfigLoader, source hris.Source, opts ...Option) *Engine {
	e := &Engine{config: config, source: source, sink: audit.LogSink{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Test is a dry run over every HR record. It never writes to the directory.
func (e *Engine) Test(ctx context.Context) ([]SyncResult, error) {
	return e.Run(ctx, ModeTest, nil)
}

// Manual applies changes for the given employees only.
func (e *Engine) Manual(ctx context.Context, employeeIDs []string) ([]SyncResult, error) {
	return e.Run(ctx, ModeManual, employeeIDs)
}

// Full applies changes for every HR record. The scheduler calls this.
func (e *Engine) Full(ctx context.Context) ([]SyncResult, error) {
	return e.Run(ctx, ModeFull, nil)
}

// Run executes one sync pass. Per-employee failures become Failed rows; the returned error is
// reserved for failures of the pass itself. On cancellation the rows collected so far are
// returned with ctx.Err().
func (e *Engine) Run(ctx context.Context, mode Mode, employeeIDs []string) ([]SyncResult, error) {
	if !mode.valid() {
		return nil, ldapclient.NewValidationError("sync", fmt.Sprintf("unknown sync mode %q", mode))
	}
	if mode == ModeManual && len(employeeIDs) == 0 {
		return nil, ldapclient.NewValidationError("sync", "manual sync requires at least one employee id")
	}
	if !e.guard.TryLock() {
		return nil, ErrRunInProgress
	}
	defer e.guard.Unlock()

	cfg, err := e.config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load directory config: %w", err)
	}
	records, err := e.fetch(ctx, mode, employeeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch HR records: %w", err)
	}

	tools.Log.WithFields(logrus.Fields{"mode": mode, "records": len(records)}).Info("Starting directory sync")

	p := &pass{engine: e, cfg: cfg, mode: mode, actor: audit.ActorFrom(ctx)}
	defer p.close()

	results := make([]SyncResult, 0, len(records))
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			p.close()
			tools.Log.WithFields(logrus.Fields{
				"mode":      mode,
				"completed": len(results),
				"remaining": len(records) - len(results),
			}).Warn("Sync cancelled")
			logSummary(mode, results)
			return results, err
		}
		results = append(results, p.syncOne(ctx, rec))
	}
	if mode == ModeManual {
		results = append(results, missingRecords(employeeIDs, records)...)
	}

	logSummary(mode, results)
	return results, nil
}

func (e *Engine) fetch(ctx context.Context, mode Mode, ids []string) ([]hris.Record, error) {
	if mode == ModeManual {
		return e.source.Fetch(ctx, ids)
	}
	return e.source.FetchAll(ctx)
}

func missingRecords(requested []string, found []hris.Record) []SyncResult {
	seen := make(map[string]struct{}, len(found))
	for _, r := range found {
		seen[r.EmployeeID] = struct{}{}
	}
	var out []SyncResult
	for _, id := range requested {
		id = strings.TrimSpace(id)
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, SyncResult{EmployeeID: id, Diff: FieldDiff{}, Action: ActionFailed, Error: ReasonNoHRRecord})
	}
	return out
}

func logSummary(mode Mode, results []SyncResult) {
	s := Summarize(results)
	tools.LogSyncSummary(string(mode), s.Total, s.Updated, s.Skipped, s.Failed)
}

// pass holds the state of one Run. Its session is shared by every employee and replaced after a
// connection or timeout error.
type pass struct {
	engine     *Engine
	cfg        ldapclient.Config
	mode       Mode
	actor      string
	session    *ldapclient.Session
	connectErr error
}

func (p *pass) open(ctx context.Context) (*ldapclient.Session, error) {
	if p.connectErr != nil {
		return nil, p.connectErr
	}
	if p.session != nil && !p.session.Closed() {
		return p.session, nil
	}
	s, err := ldapclient.Connect(ctx, p.cfg, p.engine.sessionOpts...)
	if err != nil {
		// Credential and configuration failures are not retried within the pass.
		if k := ldapclient.KindOf(err); k == ldapclient.KindAuthentication || k == ldapclient.KindValidation {
			p.connectErr = err
		}
		return nil, err
	}
	p.session = s
	return s, nil
}

func (p *pass) discardOnFatal(err error) {
	if p.session != nil && ldapclient.IsSessionFatal(err) {
		tools.Log.WithError(err).Warn("Discarding LDAP session after transport failure")
		p.session.Close()
		p.session = nil
	}
}

func (p *pass) close() {
	if p.session != nil {
		p.session.Close()
		p.session = nil
	}
}

func (p *pass) syncOne(ctx context.Context, rec hris.Record) SyncResult {
	res := SyncResult{EmployeeID: rec.EmployeeID, DisplayName: rec.DisplayName, Diff: FieldDiff{}}
	log := tools.Log.WithFields(logrus.Fields{"employee": rec.EmployeeID, "mode": p.mode})

	s, err := p.open(ctx)
	if err != nil {
		return p.fail(ctx, res, err)
	}

	user, err := ad.GetUserByEmployeeID(s, rec.EmployeeID)
	if err != nil {
		p.discardOnFatal(err)
		return p.fail(ctx, res, err)
	}
	if user == nil {
		log.Warn("No directory account carries this employee id")
		res.Action = ActionFailed
		res.Error = ReasonNoDirectoryMatch
		return res
	}
	if res.DisplayName == "" {
		res.DisplayName = user.DisplayName
	}

	attrs := user.Snapshot()
	res.Diff = ComputeDiff(rec, attrs)
	if len(res.Diff) == 0 {
		res.Action = ActionSkipped
		return res
	}
	if !p.mode.Mutates() {
		log.WithField("diff", res.Diff.String()).Info("Would update")
		res.Action = ActionWouldUpdate
		return res
	}

	changes, current, err := res.Diff.Attributes(func(name string) (string, error) {
		return ad.FindUserDNByName(s, name)
	})
	if err == nil {
		err = ad.UpdateUserAttributes(s, attrs.DN, changes, current)
	}
	if err != nil {
		p.discardOnFatal(err)
		return p.fail(ctx, res, err)
	}

	res.Action = ActionUpdated
	log.WithField("diff", res.Diff.String()).Info("Updated directory account")
	audit.Emit(ctx, p.engine.sink, audit.New(rec.EmployeeID, audit.ActionSync, audit.StatusSuccess,
		fmt.Sprintf("%s sync updated %s", p.mode, res.Diff.String()), p.actor))
	return res
}

func (p *pass) fail(ctx context.Context, res SyncResult, err error) SyncResult {
	res.Action = ActionFailed
	res.Error = err.Error()
	tools.Log.WithFields(logrus.Fields{
		"employee": res.EmployeeID,
		"mode":     p.mode,
		"error":    err,
	}).Error("Sync failed for employee")
	if p.mode.Mutates() {
		audit.Emit(ctx, p.engine.sink, audit.New(res.EmployeeID, audit.ActionSync, audit.StatusFailed,
			fmt.Sprintf("%s sync failed: %v", p.mode, err), p.actor))
	}
	return res
}
