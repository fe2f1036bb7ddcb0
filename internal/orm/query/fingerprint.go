package query

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/text/unicode/norm"
)

// fingerprint hashes vars as canonical JSON. encoding/json sorts map keys,
// and NFC normalization makes equivalent unicode spellings hash alike.
func fingerprint(vars Vars, sentinel string) (string, error) {
	clean := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		if k == VarFields {
			continue
		}
		if s, ok := v.(string); ok && s == sentinel {
			continue
		}
		clean[k] = v
	}

	b, err := json.Marshal(clean)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}

	sum := blake2b.Sum256(norm.NFC.Bytes(b))
	return hex.EncodeToString(sum[:]), nil
}
