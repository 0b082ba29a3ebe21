package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"travelmcp/internal/domain"
)

type toolFingerprint struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"inputSchema,omitempty"`
}

// ToolHash returns a deterministic hash of the visible parts of a tool.
func ToolHash(spec domain.ToolSpec) (string, error) {
	raw, err := json.Marshal(toolFingerprint{Name: spec.Name, Description: spec.Description, InputSchema: spec.InputSchema})
	if err != nil {
		return "", fmt.Errorf("marshal tool %s: %w", spec.Name, err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// ToolETag returns an ETag for a tool list and logs on failure. An empty
// string means the list could not be hashed.
func ToolETag(logger *zap.Logger, specs []domain.ToolSpec) string {
	return hashWithLogger(logger, "tool", func() (string, error) {
		hasher := sha256.New()
		for _, spec := range specs {
			sum, err := ToolHash(spec)
			if err != nil {
				return "", err
			}
			_, _ = hasher.Write([]byte(sum))
			_, _ = hasher.Write([]byte{0})
		}
		return hex.EncodeToString(hasher.Sum(nil)), nil
	})
}

func hashWithLogger(logger *zap.Logger, label string, fn func() (string, error)) string {
	etag, err := fn()
	if err != nil {
		if logger != nil {
			logger.Warn(fmt.Sprintf("%s hash failed", label), zap.Error(err))
		}
		return ""
	}
	return etag
}
