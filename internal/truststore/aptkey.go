// Package truststore wraps the system trusted-key management tool
// behind the keyring.Store interface.
//
// The default toolchain is apt-key: membership is checked by piping the
// tool's listing through the system search utility, and mutations go
// through the add/del subcommands. The exit-code semantics of that
// pipeline are the contract; a non-zero search is "not present", never
// an error.
package truststore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ZebulonRouseFrantzich/keywarden/internal/keyring"
)

// Client implements keyring.Store over the external trust-store tool.
type Client struct {
	storeBin  string
	searchBin string
}

// NewClient creates a trust-store client for the given tool paths.
func NewClient(storeBin, searchBin string) *Client {
	return &Client{
		storeBin:  storeBin,
		searchBin: searchBin,
	}
}

// Contains reports whether the identifier appears in the trust-store
// listing. The check is a case-insensitive substring match performed by
// the search utility, matching the long-observed pipeline behavior.
func (c *Client) Contains(ctx context.Context, id keyring.KeyID) (bool, error) {
	list := exec.CommandContext(ctx, c.storeBin, "list")
	list.Env = append(os.Environ(), "LC_ALL=C")

	search := exec.CommandContext(ctx, c.searchBin, "-qi", id.String())

	pipe, err := list.StdoutPipe()
	if err != nil {
		return false, fmt.Errorf("connect pipeline: %w", err)
	}
	search.Stdin = pipe

	var searchStderr bytes.Buffer
	search.Stderr = &searchStderr

	if err := list.Start(); err != nil {
		return false, fmt.Errorf("run %s list: %w", c.storeBin, err)
	}
	if err := search.Start(); err != nil {
		_ = list.Wait()
		return false, fmt.Errorf("run %s: %w", c.searchBin, err)
	}

	searchErr := search.Wait()
	// The search side may close the pipe early on a match; the listing
	// command's exit status carries no signal beyond that.
	_ = list.Wait()

	if searchErr == nil {
		return true, nil
	}
	var exitErr *exec.ExitError
	if errors.As(searchErr, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("run %s: %w: %s", c.searchBin, searchErr, strings.TrimSpace(searchStderr.String()))
}

// Add streams key material into the trust-store add subcommand.
func (c *Client) Add(ctx context.Context, material keyring.Material) error {
	cmd := exec.CommandContext(ctx, c.storeBin, "add", "-")
	cmd.Stdin = bytes.NewReader(material)
	cmd.Env = append(os.Environ(), "LC_ALL=C")

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("run %s add: %w: %s", c.storeBin, err, snippet(out))
	}
	return nil
}

// Remove deletes the identifier via the trust-store del subcommand.
func (c *Client) Remove(ctx context.Context, id keyring.KeyID) error {
	cmd := exec.CommandContext(ctx, c.storeBin, "del", id.String())
	cmd.Env = append(os.Environ(), "LC_ALL=C")

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("run %s del: %w: %s", c.storeBin, err, snippet(out))
	}
	return nil
}

// snippet trims subprocess output for inclusion in error messages.
func snippet(out []byte) string {
	const maxLen = 200
	s := strings.TrimSpace(string(out))
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
