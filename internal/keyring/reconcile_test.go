package keyring

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// fakeProber reports a fixed set of missing tools.
type fakeProber struct {
	missing []string
}

func (p *fakeProber) Missing() []string {
	return p.missing
}

// fakeFetcher returns canned material and counts invocations.
type fakeFetcher struct {
	material Material
	err      error
	calls    int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (Material, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.material, nil
}

// fakeInspector returns canned identifiers and counts invocations.
type fakeInspector struct {
	ids   []KeyID
	err   error
	calls int
}

func (i *fakeInspector) ExtractIDs(ctx context.Context, material Material) ([]KeyID, error) {
	i.calls++
	if i.err != nil {
		return nil, i.err
	}
	return i.ids, nil
}

// fakeStore is a stateful in-memory trust store so sequential
// reconciliations observe each other's mutations.
type fakeStore struct {
	keys map[string]bool

	containsErr error
	addErr      error
	removeErr   error

	containsCalls int
	addCalls      int
	removeCalls   int

	// lastAddedID lets Add register the inspector's key so a follow-up
	// Contains sees it.
	lastAddedID KeyID
}

func newFakeStore(ids ...KeyID) *fakeStore {
	s := &fakeStore{keys: make(map[string]bool)}
	for _, id := range ids {
		s.keys[NewKeyID(id.String()).String()] = true
	}
	return s
}

func (s *fakeStore) Contains(ctx context.Context, id KeyID) (bool, error) {
	s.containsCalls++
	if s.containsErr != nil {
		return false, s.containsErr
	}
	return s.keys[NewKeyID(id.String()).String()], nil
}

func (s *fakeStore) Add(ctx context.Context, material Material) error {
	s.addCalls++
	if s.addErr != nil {
		return s.addErr
	}
	s.keys[NewKeyID(s.lastAddedID.String()).String()] = true
	return nil
}

func (s *fakeStore) Remove(ctx context.Context, id KeyID) error {
	s.removeCalls++
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.keys, NewKeyID(id.String()).String())
	return nil
}

func TestReconcilePresent(t *testing.T) {
	tests := []struct {
		name        string
		req         Request
		storeIDs    []KeyID
		inspectIDs  []KeyID
		wantChanged bool
		wantFetches int
		wantAdds    int
	}{
		{
			name:        "expected_id_already_trusted_skips_fetch",
			req:         Request{ID: "ABCDEF01", URL: "https://example.com/key.asc", State: StatePresent},
			storeIDs:    []KeyID{"ABCDEF01"},
			inspectIDs:  []KeyID{"ABCDEF01"},
			wantChanged: false,
			wantFetches: 0,
			wantAdds:    0,
		},
		{
			name:        "new_key_gets_added",
			req:         Request{URL: "https://example.com/key.asc", State: StatePresent},
			inspectIDs:  []KeyID{"ABCDEF01"},
			wantChanged: true,
			wantFetches: 1,
			wantAdds:    1,
		},
		{
			name:        "fetched_key_already_trusted",
			req:         Request{URL: "https://example.com/key.asc", State: StatePresent},
			storeIDs:    []KeyID{"ABCDEF01"},
			inspectIDs:  []KeyID{"ABCDEF01"},
			wantChanged: false,
			wantFetches: 1,
			wantAdds:    0,
		},
		{
			name:        "case_differing_expected_id_matches",
			req:         Request{ID: NewKeyID("abcdef01"), URL: "https://example.com/key.asc", State: StatePresent},
			inspectIDs:  []KeyID{"ABCDEF01"},
			wantChanged: true,
			wantFetches: 1,
			wantAdds:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{material: Material("key-bytes")}
			inspector := &fakeInspector{ids: tt.inspectIDs}
			store := newFakeStore(tt.storeIDs...)
			if len(tt.inspectIDs) == 1 {
				store.lastAddedID = tt.inspectIDs[0]
			}

			r := NewReconciler(&fakeProber{}, fetcher, inspector, store)
			res, err := r.Reconcile(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if res.Changed != tt.wantChanged {
				t.Errorf("Changed = %v, want %v", res.Changed, tt.wantChanged)
			}
			if fetcher.calls != tt.wantFetches {
				t.Errorf("fetch calls = %d, want %d", fetcher.calls, tt.wantFetches)
			}
			if store.addCalls != tt.wantAdds {
				t.Errorf("add calls = %d, want %d", store.addCalls, tt.wantAdds)
			}
		})
	}
}

func TestReconcilePresentIdempotent(t *testing.T) {
	fetcher := &fakeFetcher{material: Material("key-bytes")}
	inspector := &fakeInspector{ids: []KeyID{"ABCDEF01"}}
	store := newFakeStore()
	store.lastAddedID = "ABCDEF01"
	r := NewReconciler(&fakeProber{}, fetcher, inspector, store)

	req := Request{URL: "https://example.com/key.asc", State: StatePresent}

	res, err := r.Reconcile(context.Background(), req)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !res.Changed {
		t.Error("first run: expected changed=true")
	}

	res, err = r.Reconcile(context.Background(), req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Changed {
		t.Error("second run: expected changed=false")
	}
	if store.addCalls != 1 {
		t.Errorf("add calls = %d, want 1", store.addCalls)
	}
}

func TestReconcileAbsentIdempotent(t *testing.T) {
	store := newFakeStore("ABCDEF01")
	r := NewReconciler(&fakeProber{}, &fakeFetcher{}, &fakeInspector{}, store)

	req := Request{ID: "ABCDEF01", State: StateAbsent}

	res, err := r.Reconcile(context.Background(), req)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if !res.Changed {
		t.Error("first run: expected changed=true")
	}

	res, err = r.Reconcile(context.Background(), req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if res.Changed {
		t.Error("second run: expected changed=false")
	}
	if store.removeCalls != 1 {
		t.Errorf("remove calls = %d, want 1", store.removeCalls)
	}
}

func TestReconcileAbsentWithoutIDDerivesFromSource(t *testing.T) {
	fetcher := &fakeFetcher{material: Material("key-bytes")}
	inspector := &fakeInspector{ids: []KeyID{"ABCDEF01"}}
	store := newFakeStore() // key not trusted
	r := NewReconciler(&fakeProber{}, fetcher, inspector, store)

	res, err := r.Reconcile(context.Background(), Request{URL: "https://example.com/key.asc", State: StateAbsent})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Changed {
		t.Error("expected changed=false for already-absent key")
	}
	if fetcher.calls != 1 {
		t.Errorf("fetch calls = %d, want 1", fetcher.calls)
	}
	if inspector.calls != 1 {
		t.Errorf("extract calls = %d, want 1", inspector.calls)
	}
	if store.removeCalls != 0 {
		t.Errorf("remove calls = %d, want 0", store.removeCalls)
	}
}

func TestReconcileAbsentWithIDSkipsFetch(t *testing.T) {
	fetcher := &fakeFetcher{material: Material("key-bytes")}
	store := newFakeStore("ABCDEF01")
	r := NewReconciler(&fakeProber{}, fetcher, &fakeInspector{}, store)

	res, err := r.Reconcile(context.Background(), Request{ID: "ABCDEF01", State: StateAbsent})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.Changed {
		t.Error("expected changed=true")
	}
	if fetcher.calls != 0 {
		t.Errorf("fetch calls = %d, want 0", fetcher.calls)
	}
}

func TestReconcileIdentifierMismatch(t *testing.T) {
	fetcher := &fakeFetcher{material: Material("key-bytes")}
	inspector := &fakeInspector{ids: []KeyID{"BBBB"}}
	store := newFakeStore()
	r := NewReconciler(&fakeProber{}, fetcher, inspector, store)

	_, err := r.Reconcile(context.Background(), Request{ID: "AAAA", URL: "https://example.com/key.asc", State: StatePresent})
	if !errors.Is(err, ErrIDMismatch) {
		t.Fatalf("expected ErrIDMismatch, got %v", err)
	}

	// The mismatch guard must fire before any mutation or further
	// trust-store access.
	if store.addCalls != 0 {
		t.Errorf("add calls = %d, want 0", store.addCalls)
	}
	if store.removeCalls != 0 {
		t.Errorf("remove calls = %d, want 0", store.removeCalls)
	}
	// One query happened up front for the expected ID, none after.
	if store.containsCalls != 1 {
		t.Errorf("contains calls = %d, want 1", store.containsCalls)
	}
}

func TestReconcileMissingTools(t *testing.T) {
	fetcher := &fakeFetcher{material: Material("key-bytes")}
	store := newFakeStore()
	prober := &fakeProber{missing: []string{"gpg"}}
	r := NewReconciler(prober, fetcher, &fakeInspector{}, store)

	_, err := r.Reconcile(context.Background(), Request{URL: "https://example.com/key.asc", State: StatePresent})

	var mte *MissingToolsError
	if !errors.As(err, &mte) {
		t.Fatalf("expected MissingToolsError, got %v", err)
	}
	if len(mte.Tools) != 1 || mte.Tools[0] != "gpg" {
		t.Errorf("missing tools = %v, want [gpg]", mte.Tools)
	}

	// Fails before any fetch or trust-store access.
	if fetcher.calls != 0 {
		t.Errorf("fetch calls = %d, want 0", fetcher.calls)
	}
	if store.containsCalls != 0 {
		t.Errorf("contains calls = %d, want 0", store.containsCalls)
	}
}

func TestReconcileInvalidState(t *testing.T) {
	// Invalid state fails regardless of other inputs, even when the
	// prober would also complain.
	prober := &fakeProber{missing: []string{"gpg", "apt-key"}}
	r := NewReconciler(prober, &fakeFetcher{}, &fakeInspector{}, newFakeStore())

	_, err := r.Reconcile(context.Background(), Request{ID: "ABCDEF01", State: State("purge")})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestReconcileExtractionErrors(t *testing.T) {
	tests := []struct {
		name      string
		ids       []KeyID
		extractFn error
	}{
		{name: "zero_identifiers", ids: nil},
		{name: "multiple_identifiers", ids: []KeyID{"AAAA", "BBBB"}},
		{name: "inspector_failure", extractFn: fmt.Errorf("gpg exited 2")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{material: Material("key-bytes")}
			inspector := &fakeInspector{ids: tt.ids, err: tt.extractFn}
			store := newFakeStore()
			r := NewReconciler(&fakeProber{}, fetcher, inspector, store)

			_, err := r.Reconcile(context.Background(), Request{URL: "https://example.com/key.asc", State: StatePresent})
			if !errors.Is(err, ErrExtract) {
				t.Fatalf("expected ErrExtract, got %v", err)
			}
			if store.addCalls != 0 {
				t.Errorf("add calls = %d, want 0", store.addCalls)
			}
		})
	}
}

func TestReconcileFetchError(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("connection refused")}
	r := NewReconciler(&fakeProber{}, fetcher, &fakeInspector{}, newFakeStore())

	_, err := r.Reconcile(context.Background(), Request{URL: "https://example.com/key.asc", State: StatePresent})
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestReconcileMutationErrors(t *testing.T) {
	t.Run("add_failure", func(t *testing.T) {
		inspector := &fakeInspector{ids: []KeyID{"ABCDEF01"}}
		store := newFakeStore()
		store.addErr = fmt.Errorf("apt-key exited 1")
		r := NewReconciler(&fakeProber{}, &fakeFetcher{material: Material("k")}, inspector, store)

		_, err := r.Reconcile(context.Background(), Request{URL: "https://example.com/key.asc", State: StatePresent})
		if !errors.Is(err, ErrAdd) {
			t.Fatalf("expected ErrAdd, got %v", err)
		}
	})

	t.Run("remove_failure", func(t *testing.T) {
		store := newFakeStore("ABCDEF01")
		store.removeErr = fmt.Errorf("apt-key exited 1")
		r := NewReconciler(&fakeProber{}, &fakeFetcher{}, &fakeInspector{}, store)

		_, err := r.Reconcile(context.Background(), Request{ID: "ABCDEF01", State: StateAbsent})
		if !errors.Is(err, ErrRemove) {
			t.Fatalf("expected ErrRemove, got %v", err)
		}
	})
}
