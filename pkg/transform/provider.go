package transform

import (
	"errors"
	"fmt"
	"sync"
)

// ErrProviderClosed is returned by a provider after Close.
var ErrProviderClosed = errors.New("transform: provider closed")

type planKey struct {
	ny, nx    int
	precision Precision
	threads   int
}

// Provider hands out transform plans and caches them so repeated calls on
// same-shaped buffers reuse the same FFT factorization and work space.
type Provider struct {
	threads int

	mu     sync.Mutex
	plans  map[planKey]*Plan
	closed bool
}

// NewProvider creates a provider whose plans run up to threads transforms
// concurrently. threads < 1 is treated as 1.
func NewProvider(threads int) *Provider {
	if threads < 1 {
		threads = 1
	}
	return &Provider{
		threads: threads,
		plans:   make(map[planKey]*Plan),
	}
}

// Plan returns the cached plan for an ny×nx transform, creating it on first use.
func (pr *Provider) Plan(ny, nx int, precision Precision) (*Plan, error) {
	if ny <= 0 || nx <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidShape, ny, nx)
	}
	if !precision.Valid() {
		return nil, fmt.Errorf("transform: unsupported precision %v", precision)
	}

	pr.mu.Lock()
	defer pr.mu.Unlock()

	if pr.closed {
		return nil, ErrProviderClosed
	}

	key := planKey{ny: ny, nx: nx, precision: precision, threads: pr.threads}
	if p, ok := pr.plans[key]; ok {
		return p, nil
	}
	p := newPlan(ny, nx, precision, pr.threads)
	pr.plans[key] = p
	return p, nil
}

// Len returns the number of cached plans.
func (pr *Provider) Len() int {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	return len(pr.plans)
}

// Close drops every cached plan. Plans already handed out keep working.
func (pr *Provider) Close() {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	pr.plans = nil
	pr.closed = true
}
