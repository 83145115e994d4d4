package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"

	"slayer/internal/config"
	"slayer/internal/container"
	"slayer/internal/envelope"
	"slayer/internal/logging"
	"slayer/internal/offload"
	"slayer/internal/project"
	"slayer/internal/services"
	"slayer/internal/store"
	"slayer/internal/tracker"
)

// ErrSaveInProgress is returned when a save is requested while another save
// holds the guard. Callers retry; saves never interleave.
var ErrSaveInProgress = errors.New("save already in progress")

// actionEncodeProject is the offload channel action that serializes a
// project into envelope bytes off the caller's goroutine.
const actionEncodeProject = "encode_project"

// ContainerExtension is the suffix of combined metadata+document files.
const ContainerExtension = ".mslay"

// lockFileName guards the data directory against concurrent engine
// instances writing the same local store.
const lockFileName = "slayer.lock"

// Engine ties the persistence pipeline together: change tracking, chunked
// collection, envelope encoding (optionally offloaded), the bounded local
// store, and the auto-save scheduler. One engine serves one editing session.
type Engine struct {
	cfg       *config.Config
	logger    *slog.Logger
	bridge    project.Bridge
	store     *store.Store
	codec     envelope.Codec
	tracker   *tracker.Tracker
	channel   *offload.Channel
	scheduler *Scheduler
	metrics   *Metrics
	collector *collector

	lock     *flock.Flock
	lockHeld bool

	dirty  atomic.Bool
	saveMu sync.Mutex

	stateMu sync.Mutex
	state   State
}

// Option adjusts engine construction.
type Option func(*engineOptions)

type engineOptions struct {
	channelOpts []offload.Option
}

// WithoutWorker builds the engine with the offload channel permanently in
// inline mode. Output is identical to the worker path.
func WithoutWorker() Option {
	return func(o *engineOptions) {
		o.channelOpts = append(o.channelOpts, offload.WithoutWorker())
	}
}

// New builds an engine over the given host bridge and open store. The data
// directory lock is taken best-effort: if another instance holds it, the
// engine still serves explicit saves but refuses to start auto-save.
func New(cfg *config.Config, bridge project.Bridge, st *store.Store, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine requires configuration")
	}
	if bridge == nil {
		return nil, errors.New("engine requires a host bridge")
	}
	if st == nil {
		return nil, errors.New("engine requires an open store")
	}
	options := engineOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	componentLogger := logging.NewComponentLogger(logger, "engine")
	e := &Engine{
		cfg:       cfg,
		logger:    componentLogger,
		bridge:    bridge,
		store:     st,
		codec:     envelope.NewCodec(cfg.Save.CompressionThresholdBytes, logger),
		tracker:   tracker.New(logger),
		metrics:   &Metrics{},
		collector: newCollector(cfg.Save.ChunkItemThreshold, cfg.Save.ChunkPageLimit),
		state:     StateIdle,
	}
	e.channel = offload.New(logger, map[string]offload.Handler{
		actionEncodeProject: e.encodeProject,
	}, options.channelOpts...)
	e.scheduler = NewScheduler(time.Duration(cfg.AutoSave.IntervalSeconds)*time.Second, e.autoSaveTick, componentLogger)

	e.lock = flock.New(filepath.Join(cfg.Paths.DataDir, lockFileName))
	held, err := e.lock.TryLock()
	if err != nil {
		componentLogger.Warn("could not probe data directory lock", logging.Args(logging.Error(err))...)
	}
	e.lockHeld = held
	if !held {
		componentLogger.Warn("data directory locked by another instance; auto-save unavailable")
	}
	return e, nil
}

// Close stops the scheduler, disposes the offload worker, and releases the
// data directory lock. The store is owned by the caller and stays open.
func (e *Engine) Close() error {
	e.scheduler.Stop()
	e.channel.Dispose()
	if e.lockHeld {
		e.lockHeld = false
		return e.lock.Unlock()
	}
	return nil
}

// MarkDirty records that the host mutated the project since the last save.
func (e *Engine) MarkDirty() {
	e.dirty.Store(true)
}

// Dirty reports whether unsaved changes exist.
func (e *Engine) Dirty() bool {
	return e.dirty.Load()
}

// State returns the current save lifecycle state.
func (e *Engine) State() State {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.state
}

func (e *Engine) setState(s State) {
	e.stateMu.Lock()
	e.state = s
	e.stateMu.Unlock()
}

// enterPhase advances the lifecycle state and stamps the phase into ctx so
// logs and offloaded work emitted downstream carry it.
func (e *Engine) enterPhase(ctx context.Context, s State) context.Context {
	e.setState(s)
	return services.WithPhase(ctx, s.String())
}

// Metrics returns a snapshot of the save counters.
func (e *Engine) Metrics() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// Offload exposes the worker channel for progress subscriptions.
func (e *Engine) Offload() *offload.Channel {
	return e.channel
}

// encodeProject is the offload handler behind actionEncodeProject.
func (e *Engine) encodeProject(ctx context.Context, payload any, report offload.ProgressFunc) (any, error) {
	p, ok := payload.(*project.Project)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "engine", "encode", "payload is not a project", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(0.1, "serializing")
	logging.WithContext(ctx, e.logger).Debug("encoding project")
	raw, err := e.codec.Encode(p)
	if err != nil {
		return nil, err
	}
	report(1.0, "encoded")
	return raw, nil
}

// IncrementalOutcome summarizes one incremental save attempt.
type IncrementalOutcome struct {
	ProjectID   string
	ChangedApps []string
	Skipped     bool
	Reason      string
	Bytes       int64
	Stats       CollectStats
	Duration    time.Duration
}

// SaveIncremental detects changed apps, copies them out, and writes an
// incremental record to the local store. A clean project or a quota-bounded
// store skip is reported, not an error. The dirty flag clears as the
// attempt begins so edits landing mid-save stay visible to the next tick;
// failures and quota skips restore it.
func (e *Engine) SaveIncremental(ctx context.Context) (*IncrementalOutcome, error) {
	if !e.saveMu.TryLock() {
		return nil, ErrSaveInProgress
	}
	defer e.saveMu.Unlock()

	start := time.Now()
	wasDirty := e.dirty.Swap(false)
	outcome, err := e.runIncremental(ctx)
	if err != nil {
		if wasDirty {
			e.dirty.Store(true)
		}
		e.setState(StateFailed)
		e.setState(StateIdle)
		return nil, err
	}
	outcome.Duration = time.Since(start)
	if !outcome.Skipped {
		e.metrics.record(outcome.Duration, true)
	}
	e.setState(StateIdle)
	return outcome, nil
}

func (e *Engine) runIncremental(ctx context.Context) (*IncrementalOutcome, error) {
	ctx = e.enterPhase(ctx, StateCollecting)
	p, err := e.bridge.ProjectData()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "engine", "incremental save", "read project from host", err)
	}
	ctx = services.WithProjectID(ctx, p.Meta.ID)

	changed, err := e.tracker.DetectChangedApps(p)
	if err != nil {
		return nil, err
	}
	outcome := &IncrementalOutcome{ProjectID: p.Meta.ID, ChangedApps: changed}
	if len(changed) == 0 {
		outcome.Skipped = true
		outcome.Reason = "no changes since baseline"
		logging.WithContext(ctx, e.logger).Debug("incremental save skipped")
		return outcome, nil
	}

	copied, stats, err := e.collector.collect(ctx, p.Apps, changed)
	if err != nil {
		return nil, err
	}
	outcome.Stats = stats

	view := &project.Project{Meta: p.Meta, Apps: copied}
	record, err := e.tracker.CreateIncrementalRecord(view, changed)
	if err != nil {
		return nil, err
	}

	ctx = e.enterPhase(ctx, StateEncoding)
	ctx = e.enterPhase(ctx, StateWriting)
	result, err := e.store.Save(ctx, store.AutosaveKey(p.Meta.ID), record)
	if err != nil {
		return nil, err
	}
	if result.Skipped {
		outcome.Skipped = true
		outcome.Reason = result.Reason
		e.dirty.Store(true)
		logging.WithContext(ctx, e.logger).Warn("incremental save skipped by store",
			logging.Args(logging.String("reason", result.Reason))...)
		return outcome, nil
	}
	outcome.Bytes = result.Bytes

	if err := e.tracker.CommitApps(record); err != nil {
		return nil, err
	}
	logging.WithContext(ctx, e.logger).Info("incremental save complete",
		logging.Args(
			logging.Any("changed_apps", changed),
			logging.Int64("bytes", result.Bytes),
			logging.Int("chunks", stats.Chunks),
		)...)
	return outcome, nil
}

// SaveOutcome summarizes one explicit full save.
type SaveOutcome struct {
	Path      string
	Filename  string
	Bytes     int64
	Offloaded bool
	Stats     CollectStats
	Duration  time.Duration
}

// SaveProject performs an explicit full save into dir, deriving the filename
// from the project name. Large projects route encoding through the offload
// worker; the result is byte-identical either way. On success the baseline
// is replaced and the project Modified timestamp is bumped. The dirty flag
// clears as the attempt begins; failure restores it.
func (e *Engine) SaveProject(ctx context.Context, dir string) (*SaveOutcome, error) {
	if !e.saveMu.TryLock() {
		return nil, ErrSaveInProgress
	}
	defer e.saveMu.Unlock()

	start := time.Now()
	wasDirty := e.dirty.Swap(false)
	outcome, err := e.runFullSave(ctx, dir)
	if err != nil {
		if wasDirty {
			e.dirty.Store(true)
		}
		e.setState(StateFailed)
		e.setState(StateIdle)
		return nil, err
	}
	outcome.Duration = time.Since(start)
	e.metrics.record(outcome.Duration, false)
	e.setState(StateIdle)
	return outcome, nil
}

func (e *Engine) runFullSave(ctx context.Context, dir string) (*SaveOutcome, error) {
	ctx = e.enterPhase(ctx, StateCollecting)
	p, err := e.bridge.ProjectData()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "engine", "full save", "read project from host", err)
	}
	ctx = services.WithProjectID(ctx, p.Meta.ID)

	copied, stats, err := e.collector.collect(ctx, p.Apps, p.ActiveAppNames())
	if err != nil {
		return nil, err
	}

	savedAt := time.Now().UTC()
	view := &project.Project{
		Meta:      p.Meta,
		Apps:      copied,
		Links:     p.Links,
		Resources: p.Resources,
	}
	view.Touch(savedAt)

	ctx = e.enterPhase(ctx, StateEncoding)
	raw, offloaded, err := e.encode(ctx, view, stats)
	if err != nil {
		return nil, err
	}

	ctx = e.enterPhase(ctx, StateWriting)
	filename := SaveFileName(p.Meta.Name)
	path := filepath.Join(dir, filename)
	if err := writeFileAtomic(path, raw); err != nil {
		return nil, services.Wrap(services.ErrTransient, "engine", "full save", "write "+path, err)
	}

	p.Touch(savedAt)
	if err := e.tracker.Commit(p); err != nil {
		return nil, err
	}
	logging.WithContext(ctx, e.logger).Info("project saved",
		logging.Args(
			logging.String("path", path),
			logging.Int64("bytes", int64(len(raw))),
			logging.Bool("offloaded", offloaded),
		)...)
	return &SaveOutcome{Path: path, Filename: filename, Bytes: int64(len(raw)), Offloaded: offloaded, Stats: stats}, nil
}

// encode routes large projects through the offload worker when configured.
// Worker failure falls back to inline encoding with identical output.
func (e *Engine) encode(ctx context.Context, view *project.Project, stats CollectStats) ([]byte, bool, error) {
	useWorker := e.cfg.Save.WorkerOffload && stats.Chunked && !e.channel.Disabled()
	if !useWorker {
		raw, err := e.codec.Encode(view)
		return raw, false, err
	}
	result, err := e.channel.Do(ctx, actionEncodeProject, view)
	if err != nil {
		return nil, false, err
	}
	raw, ok := result.([]byte)
	if !ok {
		return nil, false, services.Wrap(services.ErrTransient, "engine", "encode", "unexpected offload result", nil)
	}
	return raw, !e.channel.Disabled(), nil
}

// SaveContainer writes a combined metadata+document file: the envelope JSON
// as the length-prefixed metadata segment, the raw document bytes trailing.
// The metadata segment is never compressed so readers can parse it without
// consulting the trailing bytes.
func (e *Engine) SaveContainer(ctx context.Context, document []byte, dir string) (*SaveOutcome, error) {
	if !e.saveMu.TryLock() {
		return nil, ErrSaveInProgress
	}
	defer e.saveMu.Unlock()

	start := time.Now()
	wasDirty := e.dirty.Swap(false)
	outcome, err := e.runContainerSave(ctx, document, dir)
	if err != nil {
		if wasDirty {
			e.dirty.Store(true)
		}
		e.setState(StateFailed)
		e.setState(StateIdle)
		return nil, err
	}
	outcome.Duration = time.Since(start)
	e.metrics.record(outcome.Duration, false)
	e.setState(StateIdle)
	return outcome, nil
}

func (e *Engine) runContainerSave(ctx context.Context, document []byte, dir string) (*SaveOutcome, error) {
	if len(document) == 0 {
		return nil, services.Wrap(services.ErrDocumentMissing, "engine", "container save", "empty document", nil)
	}

	ctx = e.enterPhase(ctx, StateCollecting)
	p, err := e.bridge.ProjectData()
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "engine", "container save", "read project from host", err)
	}
	ctx = services.WithProjectID(ctx, p.Meta.ID)
	copied, stats, err := e.collector.collect(ctx, p.Apps, p.ActiveAppNames())
	if err != nil {
		return nil, err
	}

	savedAt := time.Now().UTC()
	view := &project.Project{
		Meta:      p.Meta,
		Apps:      copied,
		Links:     p.Links,
		Resources: p.Resources,
	}
	view.Touch(savedAt)

	ctx = e.enterPhase(ctx, StateEncoding)
	metadata, err := e.envelopeDocument(view, savedAt)
	if err != nil {
		return nil, err
	}
	buf, err := container.Encode(metadata, document)
	if err != nil {
		return nil, err
	}

	ctx = e.enterPhase(ctx, StateWriting)
	filename := strings.TrimSuffix(SaveFileName(p.Meta.Name), SaveExtension) + ContainerExtension
	path := filepath.Join(dir, filename)
	if err := writeFileAtomic(path, buf); err != nil {
		return nil, services.Wrap(services.ErrTransient, "engine", "container save", "write "+path, err)
	}

	p.Touch(savedAt)
	if err := e.tracker.Commit(p); err != nil {
		return nil, err
	}
	logging.WithContext(ctx, e.logger).Info("container saved",
		logging.Args(
			logging.String("path", path),
			logging.Int64("bytes", int64(len(buf))),
		)...)
	return &SaveOutcome{Path: path, Filename: filename, Bytes: int64(len(buf)), Stats: stats}, nil
}

// envelopeDocument builds the container metadata map: the project envelope
// as a generic JSON document.
func (e *Engine) envelopeDocument(view *project.Project, savedAt time.Time) (map[string]any, error) {
	env := envelope.Envelope{
		FileType: envelope.FileType,
		Version:  project.FormatVersion,
		Created:  savedAt,
		Project:  view,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "engine", "container save", "marshal envelope", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, services.Wrap(services.ErrValidation, "engine", "container save", "rebuild envelope document", err)
	}
	return doc, nil
}

// LoadOutcome summarizes a load: what the host accepted plus, for container
// files, the embedded document bytes.
type LoadOutcome struct {
	Project  *project.Project
	Result   project.LoadResult
	Document []byte
}

// LoadEnvelope validates and decodes envelope bytes, hands the project to
// the host, and seeds the change baseline so the next incremental save only
// carries real edits.
func (e *Engine) LoadEnvelope(ctx context.Context, data []byte) (*LoadOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report := envelope.Validate(data)
	if !report.Valid {
		return nil, services.Wrap(services.ErrValidation, "engine", "load", strings.Join(report.Errors, "; "), nil)
	}
	env, err := e.codec.Decode(data)
	if err != nil {
		return nil, err
	}
	return e.acceptProject(env.Project, nil)
}

// LoadContainer splits a container file, loads the embedded envelope, and
// returns the trailing document bytes alongside the load result.
func (e *Engine) LoadContainer(ctx context.Context, data []byte) (*LoadOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metadata, document, err := container.Decode(data)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, services.Wrap(services.ErrFormat, "engine", "load", "re-serialize container metadata", err)
	}
	outcome, err := e.LoadEnvelope(ctx, raw)
	if err != nil {
		return nil, err
	}
	outcome.Document = document
	return outcome, nil
}

// LoadFile reads a project file from disk, dispatching on extension:
// container files carry an embedded document, everything else is an
// envelope.
func (e *Engine) LoadFile(ctx context.Context, path string) (*LoadOutcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "engine", "load", "read "+path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ContainerExtension) {
		return e.LoadContainer(ctx, data)
	}
	return e.LoadEnvelope(ctx, data)
}

func (e *Engine) acceptProject(p *project.Project, document []byte) (*LoadOutcome, error) {
	result, err := e.bridge.LoadProjectData(p)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "engine", "load", "hand project to host", err)
	}
	if err := e.tracker.Commit(p); err != nil {
		return nil, err
	}
	e.dirty.Store(false)
	e.logger.Info("project loaded",
		logging.Args(
			logging.String(logging.FieldProjectID, p.Meta.ID),
			logging.Any("loaded_apps", result.Loaded),
			logging.Any("skipped_apps", result.Skipped),
		)...)
	return &LoadOutcome{Project: p, Result: result, Document: document}, nil
}

// RestoreBackup loads the newest incremental record for a project from the
// local store and replays its apps into the live project via the host.
func (e *Engine) RestoreBackup(ctx context.Context, projectID string) (*project.IncrementalRecord, error) {
	payload, found, err := e.store.Load(ctx, store.AutosaveKey(projectID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, services.Wrap(services.ErrValidation, "engine", "restore", "no backup for project "+projectID, nil)
	}
	var record project.IncrementalRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, services.Wrap(services.ErrFormat, "engine", "restore", "decode backup record", err)
	}
	if record.Type != project.IncrementalRecordType {
		return nil, services.Wrap(services.ErrFormat, "engine", "restore", fmt.Sprintf("unexpected record type %q", record.Type), nil)
	}
	return &record, nil
}

// StartAutoSave launches the periodic incremental save loop. It refuses to
// start when another engine instance holds the data directory lock.
func (e *Engine) StartAutoSave(ctx context.Context) error {
	if !e.lockHeld {
		return services.Wrap(services.ErrValidation, "engine", "auto-save", "data directory locked by another instance", nil)
	}
	return e.scheduler.Start(ctx)
}

// StopAutoSave halts the periodic loop.
func (e *Engine) StopAutoSave() {
	e.scheduler.Stop()
}

// ReconfigureAutoSave swaps the auto-save interval on a running loop.
func (e *Engine) ReconfigureAutoSave(ctx context.Context, interval time.Duration) {
	e.scheduler.Reconfigure(ctx, interval)
}

// AutoSaveRunning reports whether the periodic loop is active.
func (e *Engine) AutoSaveRunning() bool {
	return e.scheduler.Running()
}

// autoSaveTick is the scheduler callback. Failures are logged, never
// propagated; a tick that finds no unsaved changes does nothing.
func (e *Engine) autoSaveTick(ctx context.Context) {
	if !e.dirty.Load() {
		return
	}
	if _, err := e.SaveIncremental(ctx); err != nil {
		if errors.Is(err, ErrSaveInProgress) {
			e.logger.Debug("auto-save tick skipped, save in progress")
			return
		}
		e.logger.Warn("auto-save attempt failed", logging.Args(logging.Error(err))...)
	}
}

// writeFileAtomic writes via a temp file in the target directory followed by
// a rename, so readers never observe a partially written save.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
