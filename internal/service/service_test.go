package service_test

import (
	"context"
	"sync"
	"time"

	"shortlink/internal/domain"
)

type fakeLinkRepo struct {
	mu        sync.Mutex
	byCode    map[string]*domain.ShortLink
	finds     int
	createErr error
	findErr   error

	// failCreates forces ErrCodeTaken for the first n Create calls.
	failCreates int
}

func newFakeLinkRepo(links ...*domain.ShortLink) *fakeLinkRepo {
	r := &fakeLinkRepo{byCode: make(map[string]*domain.ShortLink)}
	for _, l := range links {
		r.byCode[l.Code] = l
	}
	return r
}

func (f *fakeLinkRepo) FindByCode(ctx context.Context, code string) (*domain.ShortLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	if f.findErr != nil {
		return nil, f.findErr
	}
	link, ok := f.byCode[code]
	if !ok {
		return nil, domain.ErrLinkNotFound
	}
	cp := *link
	return &cp, nil
}

func (f *fakeLinkRepo) Create(ctx context.Context, link *domain.ShortLink) (*domain.ShortLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.failCreates > 0 {
		f.failCreates--
		return nil, domain.ErrCodeTaken
	}
	if _, ok := f.byCode[link.Code]; ok {
		return nil, domain.ErrCodeTaken
	}
	cp := *link
	f.byCode[link.Code] = &cp
	return link, nil
}

func (f *fakeLinkRepo) Update(ctx context.Context, link *domain.ShortLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *link
	f.byCode[link.Code] = &cp
	return nil
}

func (f *fakeLinkRepo) CodesInUse(ctx context.Context, codes []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	taken := make(map[string]bool)
	for _, c := range codes {
		if _, ok := f.byCode[c]; ok {
			taken[c] = true
		}
	}
	return taken, nil
}

func (f *fakeLinkRepo) findCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finds
}

type fakePool struct {
	codes []string
	err   error
}

func (f *fakePool) Take(ctx context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if len(f.codes) == 0 {
		return "", nil
	}
	code := f.codes[0]
	f.codes = f.codes[1:]
	return code, nil
}

type fakeGenerator struct {
	codes []string
	calls int
}

func (f *fakeGenerator) Generate(at time.Time) (string, error) {
	code := f.codes[f.calls%len(f.codes)]
	f.calls++
	return code, nil
}

// fakeCache implements both the creation-side and resolver-side cache
// contracts over plain maps.
type fakeCache struct {
	mu          sync.Mutex
	links       map[string]*domain.ShortLink
	tombstones  map[string]bool
	getErr      error
	notFoundErr error
	sets        int
	tombWrites  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		links:      make(map[string]*domain.ShortLink),
		tombstones: make(map[string]bool),
	}
}

func (f *fakeCache) Get(ctx context.Context, code string) (*domain.ShortLink, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	link, ok := f.links[code]
	if !ok {
		return nil, false, nil
	}
	cp := *link
	return &cp, true, nil
}

func (f *fakeCache) Set(ctx context.Context, link *domain.ShortLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	cp := *link
	f.links[link.Code] = &cp
	delete(f.tombstones, link.Code)
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.links, code)
	return nil
}

func (f *fakeCache) SetNotFound(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tombWrites++
	f.tombstones[code] = true
	return nil
}

func (f *fakeCache) IsNotFound(ctx context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notFoundErr != nil {
		return false, f.notFoundErr
	}
	return f.tombstones[code], nil
}

type fakeCounter struct {
	counts    map[string]int64
	lastClick map[string]time.Time
	resets    []string
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{
		counts:    make(map[string]int64),
		lastClick: make(map[string]time.Time),
	}
}

func (f *fakeCounter) Reset(ctx context.Context, code string) error {
	f.resets = append(f.resets, code)
	f.counts[code] = 0
	return nil
}

func (f *fakeCounter) Count(ctx context.Context, code string) (int64, error) {
	return f.counts[code], nil
}

func (f *fakeCounter) LastClick(ctx context.Context, code string) (time.Time, error) {
	return f.lastClick[code], nil
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	payloads map[string][]any
	err      error
}

func newFakeEnqueuer() *fakeEnqueuer {
	return &fakeEnqueuer{payloads: make(map[string][]any)}
}

func (f *fakeEnqueuer) Enqueue(queue string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads[queue] = append(f.payloads[queue], payload)
	return nil
}

func (f *fakeEnqueuer) count(queue string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads[queue])
}
