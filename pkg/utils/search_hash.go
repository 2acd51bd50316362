package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
)

// HashSearchIdentity returns the cache key of a normalized search: the hex
// SHA-256 of its sorted-key JSON form.
func HashSearchIdentity(identity entities.SearchIdentity) string {
	data, err := json.Marshal(identity)
	if err != nil {
		// only reachable with a value type the normalizer never produces
		data = []byte(fmt.Sprintf("%v", identity.Entries()))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFilters normalizes raw filters and hashes the result
func HashFilters(raw map[string]interface{}) string {
	return HashSearchIdentity(NormalizeFilters(raw))
}
