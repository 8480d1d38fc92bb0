package main

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/ZebulonRouseFrantzich/keywarden/internal/keyring"
	"github.com/ZebulonRouseFrantzich/keywarden/internal/logging"
)

// successOutput is the caller-facing report for a completed
// reconciliation.
type successOutput struct {
	Changed bool `json:"changed"`
}

// failureOutput carries a human-readable message and, when the error
// wraps captured diagnostic detail, that detail verbatim.
type failureOutput struct {
	Msg       string `json:"msg"`
	Exception string `json:"exception,omitempty"`
}

// errorKinds are matched in order to pick a stable top-level message.
var errorKinds = []error{
	keyring.ErrInvalidState,
	keyring.ErrIDMismatch,
	keyring.ErrFetch,
	keyring.ErrExtract,
	keyring.ErrAdd,
	keyring.ErrRemove,
	keyring.ErrQuery,
}

func writeSuccess(out io.Writer, res keyring.Result) error {
	return json.NewEncoder(out).Encode(successOutput{Changed: res.Changed})
}

// writeFailure renders the failure payload and passes the error back so
// the process exits non-zero.
func writeFailure(out io.Writer, err error) error {
	if encErr := json.NewEncoder(out).Encode(failurePayload(err)); encErr != nil {
		logging.L.Debug("failure payload not written", "error", encErr)
	}
	return err
}

// failurePayload maps an engine error onto the output contract: the
// error kind as message, the full chain as exception detail when it
// says more.
func failurePayload(err error) failureOutput {
	payload := failureOutput{Msg: err.Error()}

	var mte *keyring.MissingToolsError
	if errors.As(err, &mte) {
		payload.Msg = mte.Error()
		return payload
	}

	for _, kind := range errorKinds {
		if errors.Is(err, kind) {
			payload.Msg = kind.Error()
			if full := err.Error(); full != payload.Msg {
				payload.Exception = full
			}
			break
		}
	}

	return payload
}
