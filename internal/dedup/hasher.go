package dedup

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Hasher fingerprints a message from a fixed list of fields.
type Hasher struct {
	algorithm string
}

func NewHasher(algorithm string) *Hasher {
	return &Hasher{algorithm: strings.ToLower(algorithm)}
}

// ComputeHash hashes the values at fields, in order. Fields are gjson paths
// so nested values ("order.id") are addressable; missing fields hash as
// empty.
func (h *Hasher) ComputeHash(msg map[string]any, fields []string) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("no fields specified for hashing")
	}

	doc, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode message for hashing: %w", err)
	}

	var builder strings.Builder
	for _, value := range gjson.GetManyBytes(doc, fields...) {
		builder.WriteString(value.Raw)
		builder.WriteByte('|')
	}
	input := builder.String()

	switch h.algorithm {
	case "md5":
		sum := md5.Sum([]byte(input))
		return hex.EncodeToString(sum[:]), nil
	default:
		sum := sha256.Sum256([]byte(input))
		return hex.EncodeToString(sum[:]), nil
	}
}
