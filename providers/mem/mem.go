// Package mem provides an in-memory provider used in tests and dry
// runs. It records every adapter call and supports per-resource
// failure injection.
package mem

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilnhq/kiln/internal/ir"
	"github.com/kilnhq/kiln/internal/provider"
)

// Call is one recorded adapter invocation.
type Call struct {
	Op         string
	Type       ir.ResourceType
	ExternalID string
	Attrs      map[string]any
}

type failure struct {
	err   error
	times int // <= 0 means every attempt
}

// Provider backs all resource types with a shared in-memory object
// table. Safe for concurrent use.
type Provider struct {
	mu       sync.Mutex
	nextID   int
	calls    []Call
	objects  map[string]map[string]any
	failures map[string]*failure
}

func New() *Provider {
	return &Provider{
		objects:  make(map[string]map[string]any),
		failures: make(map[string]*failure),
	}
}

// Register binds the provider to every known resource type.
func (p *Provider) Register(reg *provider.Registry) {
	for _, typ := range ir.KnownTypes {
		reg.Register(typ, &adapter{provider: p, typ: typ})
	}
}

// Fail injects an error for every call whose name attribute or
// external id matches key.
func (p *Provider) Fail(key string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[key] = &failure{err: err}
}

// FailTimes injects an error for the first n matching calls only.
func (p *Provider) FailTimes(key string, n int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[key] = &failure{err: err, times: n}
}

// Calls returns a copy of every recorded call in order.
func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Call, len(p.calls))
	copy(out, p.calls)
	return out
}

// CallCount returns how many calls of the given op were made.
func (p *Provider) CallCount(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Object returns the stored attributes for an external id.
func (p *Provider) Object(externalID string) (map[string]any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	attrs, ok := p.objects[externalID]
	return attrs, ok
}

func (p *Provider) failFor(keys ...string) error {
	for _, key := range keys {
		f, ok := p.failures[key]
		if !ok {
			continue
		}
		if f.times > 0 {
			f.times--
			if f.times == 0 {
				delete(p.failures, key)
			}
			return f.err
		}
		return f.err
	}
	return nil
}

func nameOf(attrs map[string]any) string {
	name, _ := attrs["name"].(string)
	return name
}

type adapter struct {
	provider *Provider
	typ      ir.ResourceType
}

func (a *adapter) Create(ctx context.Context, attrs map[string]any) (string, error) {
	p := a.provider
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, Call{Op: "create", Type: a.typ, Attrs: attrs})
	if err := p.failFor(nameOf(attrs)); err != nil {
		return "", err
	}

	p.nextID++
	externalID := fmt.Sprintf("mem-%s-%d", a.typ, p.nextID)
	p.objects[externalID] = attrs
	return externalID, nil
}

func (a *adapter) Read(ctx context.Context, externalID string) (map[string]any, error) {
	p := a.provider
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, Call{Op: "read", Type: a.typ, ExternalID: externalID})
	if err := p.failFor(externalID); err != nil {
		return nil, err
	}

	attrs, ok := p.objects[externalID]
	if !ok {
		return nil, nil
	}
	return attrs, nil
}

func (a *adapter) Update(ctx context.Context, externalID string, attrs map[string]any) error {
	p := a.provider
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, Call{Op: "update", Type: a.typ, ExternalID: externalID, Attrs: attrs})
	if err := p.failFor(nameOf(attrs), externalID); err != nil {
		return err
	}

	if _, ok := p.objects[externalID]; !ok {
		return fmt.Errorf("no such object: %s", externalID)
	}
	p.objects[externalID] = attrs
	return nil
}

func (a *adapter) Delete(ctx context.Context, externalID string) error {
	p := a.provider
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, Call{Op: "delete", Type: a.typ, ExternalID: externalID})
	if err := p.failFor(externalID); err != nil {
		return err
	}

	delete(p.objects, externalID)
	return nil
}
