package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// maxCollectionLen is the longest collection name both backends accept.
const maxCollectionLen = 64

// CollectionName maps name onto ^[a-z0-9_]{1,64}$. Runs of other
// characters become one underscore, and names that are still too long are
// cut and given a hash suffix so distinct inputs stay distinct. An empty
// result falls back to DefaultCollection.
func CollectionName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	underscore := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore {
			b.WriteByte('_')
			underscore = true
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return DefaultCollection
	}
	if len(out) > maxCollectionLen {
		sum := sha256.Sum256([]byte(out))
		suffix := "_" + hex.EncodeToString(sum[:])[:8]
		out = strings.TrimRight(out[:maxCollectionLen-len(suffix)], "_") + suffix
	}
	return out
}
