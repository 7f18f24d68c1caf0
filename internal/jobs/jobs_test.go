package jobs_test

import (
	"context"
	"sync"
	"time"

	"shortlink/internal/domain"
)

// In-memory fakes shared by the handler tests in this package.

type fakeCounter struct {
	mu        sync.Mutex
	counts    map[string]int64
	lastClick map[string]time.Time

	incrErr  error
	touchErr error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{
		counts:    make(map[string]int64),
		lastClick: make(map[string]time.Time),
	}
}

func (f *fakeCounter) Increment(ctx context.Context, code string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	f.counts[code]++
	return f.counts[code], nil
}

func (f *fakeCounter) TouchLastClick(ctx context.Context, code string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touchErr != nil {
		return f.touchErr
	}
	f.lastClick[code] = at
	return nil
}

func (f *fakeCounter) touched(code string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.lastClick[code]
	return ok
}

type fakeLinkRepo struct {
	mu      sync.Mutex
	byCode  map[string]*domain.ShortLink
	updates []domain.ShortLink

	findErr   error
	updateErr error
	inUseErr  error
	inUseCall int
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
	if f.updateErr != nil {
		return f.updateErr
	}
	cp := *link
	f.byCode[link.Code] = &cp
	f.updates = append(f.updates, cp)
	return nil
}

func (f *fakeLinkRepo) CodesInUse(ctx context.Context, codes []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inUseCall++
	if f.inUseErr != nil {
		return nil, f.inUseErr
	}
	taken := make(map[string]bool)
	for _, c := range codes {
		if _, ok := f.byCode[c]; ok {
			taken[c] = true
		}
	}
	return taken, nil
}

func (f *fakeLinkRepo) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeLinkRepo) lastUpdate() *domain.ShortLink {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		return nil
	}
	cp := f.updates[len(f.updates)-1]
	return &cp
}

type fakeClickLogRepo struct {
	mu   sync.Mutex
	logs []*domain.ClickLog
	err  error
}

func (f *fakeClickLogRepo) Create(ctx context.Context, log *domain.ClickLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	cp := *log
	f.logs = append(f.logs, &cp)
	return nil
}

func (f *fakeClickLogRepo) all() []*domain.ClickLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.ClickLog(nil), f.logs...)
}

type fakeCache struct {
	mu      sync.Mutex
	sets    []domain.ShortLink
	deletes []string
	setErr  error
}

func (f *fakeCache) Set(ctx context.Context, link *domain.ShortLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.sets = append(f.sets, *link)
	return nil
}

func (f *fakeCache) Delete(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, code)
	return nil
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

type fakePoolWriter struct {
	mu       sync.Mutex
	codes    []string
	size     int64
	unlocked bool
}

func (f *fakePoolWriter) Add(ctx context.Context, codes []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, codes...)
	f.size += int64(len(codes))
	return nil
}

func (f *fakePoolWriter) Size(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size, nil
}

func (f *fakePoolWriter) Unlock(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlocked = true
	return nil
}
