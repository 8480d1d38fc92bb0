package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/ZebulonRouseFrantzich/keywarden/internal/audit"
	"github.com/ZebulonRouseFrantzich/keywarden/internal/config"
	"github.com/ZebulonRouseFrantzich/keywarden/internal/fetch"
	"github.com/ZebulonRouseFrantzich/keywarden/internal/gpg"
	"github.com/ZebulonRouseFrantzich/keywarden/internal/keyring"
	"github.com/ZebulonRouseFrantzich/keywarden/internal/logging"
	"github.com/ZebulonRouseFrantzich/keywarden/internal/platform"
	"github.com/ZebulonRouseFrantzich/keywarden/internal/probe"
	"github.com/ZebulonRouseFrantzich/keywarden/internal/truststore"
)

// platformDetector is the host-detection backend. Tests substitute it.
var platformDetector platform.Detector = platform.NewDetector()

// reconcileOptions carries the root command's flags.
type reconcileOptions struct {
	ID         string
	URL        string
	State      string
	ConfigFile string
	Debug      bool
}

// runReconcile wires the engine from configuration and renders the
// outcome as JSON. The returned error only signals the exit status; the
// payload on out is the caller-facing report either way.
func runReconcile(ctx context.Context, out io.Writer, opts reconcileOptions) error {
	settings, err := config.Load(opts.ConfigFile)
	if err != nil {
		return writeFailure(out, err)
	}
	logging.SetDebug(settings.Debug || opts.Debug)

	runID := uuid.NewString()
	log := engineLogger{runID: runID}
	logging.L.Debug("settings resolved", "run", runID, "settings", settings.String())

	state, err := keyring.ParseState(opts.State)
	if err != nil {
		return writeFailure(out, err)
	}

	// Refuse the apt defaults on hosts they cannot apply to, before
	// probing or touching anything.
	if settings.UsesDefaultStore() {
		if err := guardPlatform(ctx, platformDetector); err != nil {
			return writeFailure(out, err)
		}
	}

	var inspector keyring.Inspector
	if settings.Inspector == config.InspectorNative {
		inspector = gpg.NewNativeInspector()
	} else {
		inspector = gpg.NewInspector(settings.GPGBin)
	}

	engine := keyring.NewReconciler(
		probe.NewPathProber(settings.RequiredTools()...),
		fetch.NewClient(settings.FetchTimeout),
		inspector,
		truststore.NewClient(settings.StoreBin, settings.SearchBin),
		keyring.WithLogger(log),
	)

	req := keyring.Request{
		ID:    keyring.NewKeyID(opts.ID),
		URL:   opts.URL,
		State: state,
	}
	res, err := engine.Reconcile(ctx, req)
	if err != nil {
		return writeFailure(out, err)
	}

	if res.Changed && settings.Audit {
		rec := audit.Record{
			RunID:     runID,
			State:     state.String(),
			KeyID:     res.KeyID.String(),
			SourceURL: opts.URL,
		}
		if err := audit.NewLog(settings.StateDir).Append(ctx, rec); err != nil {
			logging.L.Warn("audit append failed", "run", runID, "error", err)
		}
	}

	return writeSuccess(out, res)
}

// guardPlatform rejects the default apt-key toolchain on hosts it does
// not apply to. Detection failures never block; the probe and the tool
// itself will complain soon enough.
func guardPlatform(ctx context.Context, det platform.Detector) error {
	info, err := det.Detect(ctx)
	if err != nil {
		return nil
	}
	if !info.IsLinux() {
		return fmt.Errorf("default trust-store tooling (%s) is linux-only; set store_bin for this host", config.DefaultStoreBin)
	}
	if info.Family != "" && info.Family != platform.FamilyUnknown && !info.IsDebianFamily() {
		return fmt.Errorf("default trust-store tooling (%s) targets debian-family hosts, detected %s; set store_bin to override",
			config.DefaultStoreBin, info.Family)
	}
	return nil
}

// engineLogger adapts the package logger to the engine's interface,
// tagging every line with the invocation's run ID.
type engineLogger struct {
	runID string
}

func (l engineLogger) Debug(msg string, kv ...interface{}) {
	logging.L.Debug(msg, append(kv, "run", l.runID)...)
}

func (l engineLogger) Info(msg string, kv ...interface{}) {
	logging.L.Info(msg, append(kv, "run", l.runID)...)
}

func (l engineLogger) Warn(msg string, kv ...interface{}) {
	logging.L.Warn(msg, append(kv, "run", l.runID)...)
}

func (l engineLogger) Error(msg string, kv ...interface{}) {
	logging.L.Error(msg, append(kv, "run", l.runID)...)
}
