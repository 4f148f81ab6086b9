package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/coperacha/pkg/domain"
	"github.com/aretw0/coperacha/pkg/ports"
)

// Mask replaces masked values.
const Mask = "***"

// DefaultPIIPatterns match the TempData keys that carry personal data,
// including those nested in a wallet draft.
var DefaultPIIPatterns = []string{`^name$`, `^email$`, `^members$`}

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a read-side middleware: sessions returned by Load
// have the values of matching TempData keys masked. Save passes through, so it
// is meant for inspection tools, never for the store a conversation runs on.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("pii pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, identity string, sess *domain.Session) error {
	return m.next.Save(ctx, identity, sess)
}

func (m *piiMiddleware) Load(ctx context.Context, identity string) (*domain.Session, error) {
	sess, err := m.next.Load(ctx, identity)
	if err != nil {
		return nil, err
	}
	// Deep clone so a store that hands out its own copy is never modified.
	masked := *sess
	masked.TempData = deepCopyMap(sess.TempData)
	maskMap(masked.TempData, m.patterns)
	return &masked, nil
}

func (m *piiMiddleware) Delete(ctx context.Context, identity string) error {
	return m.next.Delete(ctx, identity)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				break
			}
		}

		if subMap, ok := v.(map[string]any); ok && m[k] != Mask {
			maskMap(subMap, patterns)
		}
	}
}
