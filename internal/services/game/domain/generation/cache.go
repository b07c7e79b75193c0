package generation

import (
	"context"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/balazsbme/futurehuman/internal/services/game/domain/action"
	"github.com/balazsbme/futurehuman/internal/services/game/domain/assessment"
)

// DefaultCacheTTL bounds how long a generated result may be reused.
const DefaultCacheTTL = time.Hour

// Cached wraps a Generator with a TTL-bounded result cache. The cache
// is scoped to one execution; expired or absent entries trigger
// recomputation, never a failure.
type Cached struct {
	inner Generator
	ttl   time.Duration
	clock func() time.Time

	mu          sync.Mutex
	options     map[string]cachedOptions
	assessments map[string]cachedAssessment
}

type cachedOptions struct {
	options []action.Option
	expires time.Time
}

type cachedAssessment struct {
	breakdown assessment.Breakdown
	expires   time.Time
}

// NewCached wraps inner with a TTL cache. A non-positive ttl uses the
// default.
func NewCached(inner Generator, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		inner:       inner,
		ttl:         ttl,
		clock:       time.Now,
		options:     make(map[string]cachedOptions),
		assessments: make(map[string]cachedAssessment),
	}
}

// GenerateOptions implements Generator.
func (c *Cached) GenerateOptions(ctx context.Context, req OptionsRequest) ([]action.Option, error) {
	key := optionsKey(req)

	c.mu.Lock()
	entry, ok := c.options[key]
	if ok && c.clock().Before(entry.expires) {
		c.mu.Unlock()
		return append([]action.Option(nil), entry.options...), nil
	}
	if ok {
		log.Printf("warning: cached options for %s expired; regenerating", req.Actor)
		delete(c.options, key)
	}
	c.mu.Unlock()

	options, err := c.inner.GenerateOptions(ctx, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.options[key] = cachedOptions{
		options: append([]action.Option(nil), options...),
		expires: c.clock().Add(c.ttl),
	}
	c.mu.Unlock()
	return options, nil
}

// AssessProgress implements Generator.
func (c *Cached) AssessProgress(ctx context.Context, req AssessmentRequest) (assessment.Breakdown, error) {
	key := assessmentKey(req)

	c.mu.Lock()
	entry, ok := c.assessments[key]
	if ok && c.clock().Before(entry.expires) {
		c.mu.Unlock()
		return entry.breakdown, nil
	}
	if ok {
		log.Printf("warning: cached assessment for round %d expired; recomputing", req.Round)
		delete(c.assessments, key)
	}
	c.mu.Unlock()

	breakdown, err := c.inner.AssessProgress(ctx, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.assessments[key] = cachedAssessment{
		breakdown: breakdown,
		expires:   c.clock().Add(c.ttl),
	}
	c.mu.Unlock()
	return breakdown, nil
}

func optionsKey(req OptionsRequest) string {
	var b strings.Builder
	b.WriteString("options|")
	b.WriteString(req.Actor)
	b.WriteString("|")
	b.WriteString(req.Counterpart)
	b.WriteString("|")
	b.WriteString(strconv.FormatBool(req.ForceAction))
	for _, line := range req.History {
		b.WriteString("|")
		b.WriteString(line)
	}
	return b.String()
}

func assessmentKey(req AssessmentRequest) string {
	var b strings.Builder
	b.WriteString("assess|")
	b.WriteString(strconv.Itoa(req.Round))
	for _, line := range req.History {
		b.WriteString("|")
		b.WriteString(line)
	}
	return b.String()
}
