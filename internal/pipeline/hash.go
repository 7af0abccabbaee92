package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
)

const hashChunkSize = 1 << 20 // 1 MiB

// ContentHash streams the file through SHA-256 and returns the hex digest.
// Byte-identical content always yields the same digest, which is what makes
// the cache gate safe.
func ContentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", common.NewAppError("HASH_OPEN", "failed to open document", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", common.NewAppError("HASH_READ", "failed to read document", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashText hashes already-extracted text, for callers that submit raw text
// instead of a file path.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
