// Package probe checks that required external executables exist.
package probe

import (
	"os/exec"
	"sort"
)

// PathProber implements keyring.Prober by looking each tool up on the
// execution path. No side effects.
type PathProber struct {
	tools []string
}

// NewPathProber creates a prober for the given tool names or paths.
func NewPathProber(tools ...string) *PathProber {
	return &PathProber{tools: tools}
}

// Missing returns the subset of required tools not found, sorted.
// An empty result means ready.
func (p *PathProber) Missing() []string {
	var missing []string
	for _, tool := range p.tools {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	sort.Strings(missing)
	return missing
}
