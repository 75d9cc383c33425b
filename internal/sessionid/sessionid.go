// Package sessionid produces selling-session identifiers: a millisecond
// timestamp followed by a short random suffix, checked against the sessions
// table before use.
package sessionid

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrIDExhausted is returned when every attempt collided with an existing row.
var ErrIDExhausted = errors.New("could not generate a unique session id")

// ExistsFunc reports whether a session with the given id is already stored.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

type Generator struct {
	Exists      ExistsFunc
	MaxAttempts int
	RetryDelay  time.Duration

	// Overridable for tests
	Now    func() time.Time
	Suffix func() string
}

func New(exists ExistsFunc, maxAttempts int, retryDelay time.Duration) *Generator {
	return &Generator{
		Exists:      exists,
		MaxAttempts: maxAttempts,
		RetryDelay:  retryDelay,
		Now:         time.Now,
		Suffix:      randomSuffix,
	}
}

// randomSuffix takes six hex characters from a v4 uuid.
func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
}

// Generate returns an id not present at the time of the check. The check and
// the later insert are not atomic; callers must still handle a unique
// violation on insert.
func (g *Generator) Generate(ctx context.Context) (string, error) {
	attempts := g.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		if i > 0 && g.RetryDelay > 0 {
			timer := time.NewTimer(g.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
		}

		id := fmt.Sprintf("%d%s", g.Now().UnixMilli(), g.Suffix())
		taken, err := g.Exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("check session id: %w", err)
		}
		if !taken {
			return id, nil
		}
	}
	return "", ErrIDExhausted
}
