package services_test

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zatekoja/creatorexplorer/backend/internal/domain/entities"
	"github.com/zatekoja/creatorexplorer/backend/internal/domain/providers"
	apperrors "github.com/zatekoja/creatorexplorer/backend/pkg/errors"
)

// memRecords is an in-memory SearchRecordRepository
type memRecords struct {
	mu      sync.Mutex
	byHash  map[string]*entities.SearchRecord
	byID    map[string]*entities.SearchRecord
	nextID  int
	findErr error
	panicky bool

	createErr error
}

func newMemRecords() *memRecords {
	return &memRecords{
		byHash: map[string]*entities.SearchRecord{},
		byID:   map[string]*entities.SearchRecord{},
	}
}

func (m *memRecords) FindByHash(ctx context.Context, hash string) (*entities.SearchRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicky {
		panic("record store exploded")
	}
	if m.findErr != nil {
		return nil, m.findErr
	}
	r, ok := m.byHash[hash]
	if !ok || r.IsExpired(time.Now()) {
		return nil, apperrors.NewNotFoundError("search not found")
	}
	r.AccessCount++
	r.LastAccessedAt = time.Now()
	out := *r
	return &out, nil
}

func (m *memRecords) Create(ctx context.Context, record *entities.SearchRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	m.nextID++
	record.ID = fmt.Sprintf("search-%d", m.nextID)
	if existing, ok := m.byHash[record.SearchHash]; ok && !existing.IsExpired(time.Now()) {
		return existing.ID, nil
	}
	stored := *record
	stored.CreatedAt = time.Now()
	stored.LastAccessedAt = stored.CreatedAt
	m.byHash[record.SearchHash] = &stored
	m.byID[stored.ID] = &stored
	return stored.ID, nil
}

func (m *memRecords) AddTokensUsed(ctx context.Context, searchID string, credits int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[searchID]
	if !ok {
		return apperrors.NewNotFoundError("search not found")
	}
	r.TokensUsed += credits
	return nil
}

func (m *memRecords) get(hash string) entities.SearchRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byHash[hash]; ok {
		return *r
	}
	return entities.SearchRecord{}
}

func (m *memRecords) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byHash)
}

type pageKey struct {
	searchID string
	page     int
}

// memPages is an in-memory PageRepository that keeps pages_cached on memRecords
type memPages struct {
	mu      sync.Mutex
	pages   map[pageKey]*entities.ResultPage
	records *memRecords
	upserts int
	getErr  error
}

func newMemPages(records *memRecords) *memPages {
	return &memPages{pages: map[pageKey]*entities.ResultPage{}, records: records}
}

func (m *memPages) GetPage(ctx context.Context, searchID string, page, size int) (*entities.ResultPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	p, ok := m.pages[pageKey{searchID, page}]
	if !ok || p.PageSize != size {
		return nil, apperrors.NewNotFoundError("page not found")
	}
	out := *p
	return &out, nil
}

func (m *memPages) UpsertPage(ctx context.Context, page *entities.ResultPage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *page
	m.pages[pageKey{page.SearchID, page.PageNumber}] = &stored
	m.upserts++
	return nil
}

func (m *memPages) IncrementPagesCached(ctx context.Context, searchID string) error {
	m.mu.Lock()
	n := 0
	for k := range m.pages {
		if k.searchID == searchID {
			n++
		}
	}
	m.mu.Unlock()

	m.records.mu.Lock()
	defer m.records.mu.Unlock()
	r, ok := m.records.byID[searchID]
	if !ok {
		return apperrors.NewNotFoundError("search not found")
	}
	r.PagesCached = n
	return nil
}

func (m *memPages) has(searchID string, page int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pages[pageKey{searchID, page}]
	return ok
}

type memAnalytics struct {
	analytics *entities.CacheAnalytics
	popular   []*entities.PopularSearch
	lastLimit int
}

func (m *memAnalytics) GetCacheAnalytics(ctx context.Context, daysBack int) (*entities.CacheAnalytics, error) {
	out := *m.analytics
	out.DaysBack = daysBack
	return &out, nil
}

func (m *memAnalytics) GetPopularSearches(ctx context.Context, limit int) ([]*entities.PopularSearch, error) {
	m.lastLimit = limit
	return m.popular, nil
}

// fakeSearch returns identities id0..id{total-1}. With batchSize 0 each call
// returns exactly the requested page.
type fakeSearch struct {
	mu        sync.Mutex
	calls     int
	total     int
	batchSize int
	credits   int

	err    error
	failAt int // first failing call, 0 means every call fails when err is set

	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *fakeSearch) Search(ctx context.Context, identity entities.SearchIdentity, page, size int) (*entities.SearchBatch, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil && (f.failAt == 0 || n >= f.failAt) {
		return nil, f.err
	}

	offset, max := (page-1)*size, size
	if f.batchSize > 0 {
		offset = offset / f.batchSize * f.batchSize
		max = f.batchSize
	}
	batch := &entities.SearchBatch{Offset: offset, TotalAvailable: f.total, CreditsUsed: f.credits}
	for i := offset; i < offset+max && i < f.total; i++ {
		batch.Identities = append(batch.Identities, entities.CreatorIdentity{
			Platform:   identity.Platform(),
			PlatformID: "id" + strconv.Itoa(i),
		})
	}
	return batch, nil
}

func (f *fakeSearch) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeProfiles derives a profile from the numeric suffix of the platform id
type fakeProfiles struct {
	mu       sync.Mutex
	calls    map[string]int
	failing  map[string]bool
	failErr  error // returned for failing keys instead of NotFound
	profiles map[string]*entities.BasicProfile
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		calls:    map[string]int{},
		failing:  map[string]bool{},
		profiles: map[string]*entities.BasicProfile{},
	}
}

func (f *fakeProfiles) GetBasicProfile(ctx context.Context, platform, platformID string) (*entities.BasicProfile, error) {
	key := platform + ":" + platformID
	f.mu.Lock()
	f.calls[key]++
	failing := f.failing[key]
	failErr := f.failErr
	explicit, ok := f.profiles[key]
	f.mu.Unlock()

	if failing {
		if failErr != nil {
			return nil, failErr
		}
		return nil, &providers.ProviderError{Kind: providers.ProviderErrorNotFound, StatusCode: 404}
	}
	if ok {
		out := *explicit
		return &out, nil
	}

	n, _ := strconv.Atoi(strings.TrimPrefix(platformID, "id"))
	return &entities.BasicProfile{
		Platform:       platform,
		PlatformID:     platformID,
		CreatorID:      "creator-" + platformID,
		Name:           "Creator " + platformID,
		Followers:      int64(100000 - n),
		EngagementRate: 2.5,
	}, nil
}

func (f *fakeProfiles) setFailing(err error, keys ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = map[string]bool{}
	f.failErr = err
	for _, k := range keys {
		f.failing[k] = true
	}
}

func (f *fakeProfiles) callsFor(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeProfiles) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}
