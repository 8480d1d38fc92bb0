package keyring

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced by the engine. Every error is terminal for the
// current reconciliation; there are no retries anywhere in this system.
var (
	ErrInvalidState = errors.New(`desired state must be "present" or "absent"`)
	ErrFetch        = errors.New("key material fetch failed")
	ErrExtract      = errors.New("key identifier extraction failed")
	ErrIDMismatch   = errors.New("fetched key does not match expected identifier")
	ErrAdd          = errors.New("trust store add failed")
	ErrRemove       = errors.New("trust store remove failed")
	ErrQuery        = errors.New("trust store query failed")
)

// MissingToolsError reports required executables that were not found on
// the execution path. It is fatal before any fetch or trust-store access.
type MissingToolsError struct {
	Tools []string
}

// Error returns the missing tool names joined for display.
func (e *MissingToolsError) Error() string {
	return fmt.Sprintf("required tools not found: %s", strings.Join(e.Tools, ", "))
}
