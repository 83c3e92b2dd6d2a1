package segmentation

import (
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Loader constructs a Segmenter, typically by loading model weights or
// connecting to an inference backend.
type Loader func(ctx context.Context) (Segmenter, error)

const loadKey = "model"

// Provider lazily loads a Segmenter once and shares it. Concurrent first
// callers wait on the same load. A failed load is not cached, so a later
// Acquire retries.
type Provider struct {
	load  Loader
	group singleflight.Group

	mu    sync.RWMutex
	model Segmenter
	refs  int
	loads int
}

// NewProvider creates a Provider around load.
func NewProvider(load Loader) *Provider {
	return &Provider{load: load}
}

// Static wraps an already constructed Segmenter.
func Static(s Segmenter) *Provider {
	return NewProvider(func(context.Context) (Segmenter, error) { return s, nil })
}

// Acquire returns the shared Segmenter, loading it on first use, and takes a
// reference that must be returned with Release.
func (p *Provider) Acquire(ctx context.Context) (Segmenter, error) {
	p.mu.Lock()
	if p.model != nil {
		p.refs++
		m := p.model
		p.mu.Unlock()
		return m, nil
	}
	p.mu.Unlock()

	// the load outlives any single caller's cancellation
	ch := p.group.DoChan(loadKey, func() (any, error) {
		p.mu.RLock()
		existing := p.model
		p.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		m, err := p.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
		if m == nil {
			return nil, fmt.Errorf("%w: loader returned nil", ErrModelUnavailable)
		}

		p.mu.Lock()
		p.model = m
		p.loads++
		p.mu.Unlock()
		return m, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		m, ok := res.Val.(Segmenter)
		if !ok {
			return nil, fmt.Errorf("unexpected return type from singleflight: %T", res.Val)
		}
		p.mu.Lock()
		p.refs++
		p.mu.Unlock()
		return m, nil
	}
}

// Release returns a reference taken by Acquire.
func (p *Provider) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refs > 0 {
		p.refs--
	}
}

// Loaded reports whether the model has been loaded.
func (p *Provider) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model != nil
}

// Refs reports the number of outstanding references.
func (p *Provider) Refs() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.refs
}

// Loads reports how many times the loader succeeded.
func (p *Provider) Loads() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loads
}

// Close unloads the model once no references remain. Models implementing
// io.Closer are closed.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refs > 0 {
		return fmt.Errorf("segmentation model still has %d references", p.refs)
	}
	m := p.model
	p.model = nil
	if c, ok := m.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
