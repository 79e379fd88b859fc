// Package snapshot saves HTML dumps of pages that failed extraction, for
// offline selector triage.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Sink writes snapshots under a root directory. Files are named by a label
// plus a content digest so re-runs of the same broken page dedupe on disk.
type Sink struct {
	root   string
	logger *zap.Logger
}

// NewSink returns a sink rooted at dir.
func NewSink(root string, logger *zap.Logger) (*Sink, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create snapshot dir %s: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{root: root, logger: logger}, nil
}

// Save writes the body to disk and returns the file path.
func (s *Sink) Save(ctx context.Context, label string, body []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	if len(body) == 0 {
		return "", fmt.Errorf("empty page body")
	}
	sum := sha256.Sum256(body)
	name := fmt.Sprintf("%s_%s.html", sanitizeLabel(label), hex.EncodeToString(sum[:8]))
	target := filepath.Join(s.root, name)
	if err := os.WriteFile(target, body, 0o600); err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", target, err)
	}
	s.logger.Debug("saved snapshot", zap.String("path", target))
	return target, nil
}

func sanitizeLabel(label string) string {
	if label == "" {
		return "page"
	}
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, label)
	return mapped
}
