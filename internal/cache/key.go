package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// ListingKey derives the cache key of one listing request. The search text
// is hashed so arbitrary user input never ends up in a redis key.
func ListingKey(page, length int, search string) string {
	sum := sha256.Sum256([]byte(search))
	return "listing:" + strconv.Itoa(page) + ":" + strconv.Itoa(length) + ":" + hex.EncodeToString(sum[:8])
}
