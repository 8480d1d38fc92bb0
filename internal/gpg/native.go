package gpg

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/ZebulonRouseFrantzich/keywarden/internal/keyring"
)

// NativeInspector extracts key identifiers in-process, without the
// external gpg binary. Selected via the inspector setting; the prober
// then drops gpg from the required tool set.
type NativeInspector struct{}

// NewNativeInspector creates an in-process inspector.
func NewNativeInspector() *NativeInspector {
	return &NativeInspector{}
}

// ExtractIDs parses the material as an OpenPGP keyring, armored or
// binary, and returns the short identifier of each key in order.
func (n *NativeInspector) ExtractIDs(ctx context.Context, material keyring.Material) ([]keyring.KeyID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(material))
	if err != nil {
		// Not armored; retry as a binary keyring.
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(material))
		if err != nil {
			return nil, fmt.Errorf("read key material: %w", err)
		}
	}

	if len(entities) == 0 {
		return nil, fmt.Errorf("key material contains no keys")
	}

	ids := make([]keyring.KeyID, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, keyring.NewKeyID(e.PrimaryKey.KeyIdShortString()))
	}
	return ids, nil
}
