// Package gpg derives key identifiers from untrusted key material.
//
// Two keyring.Inspector implementations live here: Inspector shells out
// to the external gpg binary and parses its import listing, preserving
// the tool's text-protocol contract as the boundary; NativeInspector
// parses the material in-process with ProtonMail's openpgp fork. Both
// yield the same normalized 8-hex-digit short identifiers.
package gpg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/ZebulonRouseFrantzich/keywarden/internal/keyring"
)

// keyLine matches the key announcement lines of a gpg import listing,
// e.g. "gpg: key ABCDEF01: public key \"...\" imported". The lazy
// prefix takes the first "key <hex>:" on the line, not one a uid
// string happens to contain. The hex capture is case-insensitive;
// identifiers are normalized afterwards.
var keyLine = regexp.MustCompile(`(?im)^gpg:.*?\bkey ([0-9A-F]+):`)

// Inspector extracts key identifiers by running the external gpg tool
// in import-and-list-only mode with the material on stdin.
type Inspector struct {
	bin string
}

// NewInspector creates an inspector backed by the given gpg executable.
func NewInspector(bin string) *Inspector {
	return &Inspector{bin: bin}
}

// ExtractIDs feeds the material to gpg and parses the combined output.
// A non-zero exit from the tool is an error; zero matched lines is left
// to the caller to judge. Identifiers come back in the order gpg
// printed them.
func (i *Inspector) ExtractIDs(ctx context.Context, material keyring.Material) ([]keyring.KeyID, error) {
	cmd := exec.CommandContext(ctx, i.bin, "--list-only", "--import", "-")
	cmd.Stdin = bytes.NewReader(material)
	// Pin the locale so the output stays parseable.
	cmd.Env = append(os.Environ(), "LC_ALL=C")

	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w: %s", i.bin, err, snippet(out))
	}

	return parseKeyIDs(string(out)), nil
}

// parseKeyIDs scans tool output line by line and collects every key
// identifier announced, in order. One pass, no deduplication.
func parseKeyIDs(out string) []keyring.KeyID {
	var ids []keyring.KeyID
	for _, m := range keyLine.FindAllStringSubmatch(out, -1) {
		ids = append(ids, keyring.NewKeyID(m[1]))
	}
	return ids
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
