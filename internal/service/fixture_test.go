package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/repository/memory"
)

var (
	_ UserStore        = (*memory.UserRepo)(nil)
	_ TokenStore       = (*memory.TokenRepo)(nil)
	_ CategoryStore    = (*memory.CategoryRepo)(nil)
	_ BookStore        = (*memory.BookRepo)(nil)
	_ CopyStore        = (*memory.CopyRepo)(nil)
	_ LoanStore        = (*memory.LoanRepo)(nil)
	_ ReservationStore = (*memory.ReservationRepo)(nil)
)

type recordedEvent struct {
	key   string
	event any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
	fail   error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, ev any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.events = append(p.events, recordedEvent{key: key, event: ev})
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.key
	}
	return out
}

// testClock is a settable clock shared by the store and the services.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	t            *testing.T
	ctx          context.Context
	clock        *testClock
	store        *memory.Store
	events       *recordingPublisher
	copies       *CopyService
	loans        *LoanService
	reservations *ReservationService
	catalog      *CatalogService
	users        *UserService
	seq          int
}

func newFixture(t *testing.T, opts LifecycleOptions) *fixture {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	store := memory.New().WithClock(clock.Now)
	log := zap.NewNop()
	events := &recordingPublisher{}

	reservations := NewReservationService(store.Reservations(), store.Copies(), store.Users(), store.Books(), events, log, opts)
	f := &fixture{
		t:            t,
		ctx:          context.Background(),
		clock:        clock,
		store:        store,
		events:       events,
		reservations: reservations,
		copies:       NewCopyService(store.Copies(), store.Books(), reservations, log),
		loans: NewLoanService(store.Loans(), store.Copies(), store.Users(), reservations, events, log, opts).
			WithClock(clock.Now),
		catalog: NewCatalogService(store.Categories(), store.Books(), log).WithClock(clock.Now),
		users: NewUserService(store.Users(), store.Tokens(),
			AuthOptions{JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}, log),
	}
	return f
}

func (f *fixture) user(name string) *model.User {
	f.t.Helper()
	u, err := f.users.Create(f.ctx, UserInput{
		Name:     ptr(name),
		Email:    ptr(name + "@example.com"),
		Password: ptr("password"),
	})
	require.NoError(f.t, err)
	return u
}

func (f *fixture) book(title string) *model.BookDetail {
	f.t.Helper()
	f.seq++
	cat, err := f.catalog.CreateCategory(f.ctx, CategoryInput{Name: ptr(fmt.Sprintf("cat-%d", f.seq))})
	require.NoError(f.t, err)
	b, err := f.catalog.CreateBook(f.ctx, BookInput{
		Title:      ptr(title),
		Author:     ptr("Author"),
		ISBN:       ptr(fmt.Sprintf("97800000%05d", f.seq)),
		CategoryID: &cat.ID,
	})
	require.NoError(f.t, err)
	return b
}

func (f *fixture) copyOf(bookID uint64) *model.Copy {
	f.t.Helper()
	f.seq++
	c, err := f.copies.Create(f.ctx, CopyInput{BookID: &bookID, Code: ptr(fmt.Sprintf("C-%04d", f.seq))})
	require.NoError(f.t, err)
	return c
}

func (f *fixture) copyStatus(id uint64) model.CopyStatus {
	f.t.Helper()
	c, err := f.copies.Get(f.ctx, id)
	require.NoError(f.t, err)
	return c.Status
}

func (f *fixture) loanStatus(id uint64) model.LoanStatus {
	f.t.Helper()
	l, err := f.loans.Get(f.ctx, id)
	require.NoError(f.t, err)
	return l.Status
}

func (f *fixture) reservationStatus(id uint64) model.ReservationStatus {
	f.t.Helper()
	r, err := f.reservations.Get(f.ctx, id)
	require.NoError(f.t, err)
	return r.Status
}

func ptr[T any](v T) *T { return &v }

func requireKind(t *testing.T, err error, kind Kind, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "error: %v", err)
	if code != "" {
		require.Equal(t, code, CodeOf(err))
	}
}
