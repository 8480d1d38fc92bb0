package keyring

import (
	"context"
	"fmt"
)

// Reconciler brings the trust store to a declared desired state with
// the minimal mutation needed, deciding when a fetch and extraction is
// actually necessary.
//
// Execution is synchronous and single-threaded: one request runs
// start-to-finish, and concurrent trust-store safety is left to the
// trust-store tool itself.
type Reconciler struct {
	probe   Prober
	fetcher Fetcher
	inspect Inspector
	store   Store
	log     Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(log Logger) Option {
	return func(r *Reconciler) {
		r.log = log
	}
}

// NewReconciler creates a reconciliation engine over the given
// capabilities.
func NewReconciler(probe Prober, fetcher Fetcher, inspect Inspector, store Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		probe:   probe,
		fetcher: fetcher,
		inspect: inspect,
		store:   store,
		log:     defaultLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile processes one request to completion and reports whether the
// trust store changed. Every returned error wraps one of the package
// error kinds, so callers can classify with errors.Is / errors.As.
func (r *Reconciler) Reconcile(ctx context.Context, req Request) (Result, error) {
	// Invalid desired state fails independent of probing.
	if req.State != StatePresent && req.State != StateAbsent {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidState, req.State)
	}

	if missing := r.probe.Missing(); len(missing) > 0 {
		return Result{}, &MissingToolsError{Tools: missing}
	}

	if req.State == StatePresent {
		return r.ensurePresent(ctx, req)
	}
	return r.ensureAbsent(ctx, req)
}

func (r *Reconciler) ensurePresent(ctx context.Context, req Request) (Result, error) {
	// A caller-supplied identifier that is already trusted needs no
	// fetch at all.
	if req.ID != "" {
		ok, err := r.store.Contains(ctx, req.ID)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrQuery, err)
		}
		if ok {
			r.log.Debug("key already in trust store", "id", req.ID)
			return Result{Changed: false, KeyID: req.ID}, nil
		}
	}

	material, keyID, err := r.fetchAndExtract(ctx, req.URL)
	if err != nil {
		return Result{}, err
	}

	// Sanity check: the fetched key must match caller expectations
	// before any mutation is considered.
	if req.ID != "" && !keyID.Equal(req.ID) {
		return Result{}, fmt.Errorf("%w: expected %s, got %s", ErrIDMismatch, req.ID, keyID)
	}

	ok, err := r.store.Contains(ctx, keyID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	if ok {
		r.log.Debug("key already in trust store", "id", keyID)
		return Result{Changed: false, KeyID: keyID}, nil
	}

	if err := r.store.Add(ctx, material); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrAdd, err)
	}
	r.log.Info("key added to trust store", "id", keyID)
	return Result{Changed: true, KeyID: keyID}, nil
}

func (r *Reconciler) ensureAbsent(ctx context.Context, req Request) (Result, error) {
	keyID := req.ID
	if keyID == "" {
		// No expected identifier: derive it from the source material.
		_, derived, err := r.fetchAndExtract(ctx, req.URL)
		if err != nil {
			return Result{}, err
		}
		keyID = derived
	}

	ok, err := r.store.Contains(ctx, keyID)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	if !ok {
		r.log.Debug("key already absent from trust store", "id", keyID)
		return Result{Changed: false, KeyID: keyID}, nil
	}

	if err := r.store.Remove(ctx, keyID); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrRemove, err)
	}
	r.log.Info("key removed from trust store", "id", keyID)
	return Result{Changed: true, KeyID: keyID}, nil
}

// fetchAndExtract downloads key material and derives its identifier,
// requiring the extraction to yield exactly one ID.
func (r *Reconciler) fetchAndExtract(ctx context.Context, url string) (Material, KeyID, error) {
	material, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetch, err)
	}

	ids, err := r.inspect.ExtractIDs(ctx, material)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrExtract, err)
	}
	if len(ids) != 1 {
		return nil, "", fmt.Errorf("%w: expected exactly one key identifier, got %d", ErrExtract, len(ids))
	}

	r.log.Debug("extracted key identifier", "id", ids[0])
	return material, ids[0], nil
}
