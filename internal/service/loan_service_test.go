package service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/queue"
)

func TestLoanCreateClaimsCopy(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	u := f.user("ana")
	b := f.book("Dune")
	c := f.copyOf(b.ID)

	l, err := f.loans.Create(f.ctx, u.ID, c.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, model.LoanActive, l.Status)
	assert.Equal(t, f.clock.Now().Add(model.DefaultLoanPeriod), l.DueDate)
	assert.Nil(t, l.ReturnedAt)
	assert.Equal(t, "Dune", l.BookTitle)
	assert.Equal(t, u.Email, l.UserEmail)
	assert.Equal(t, model.CopyLoaned, f.copyStatus(c.ID))
	assert.Equal(t, []string{queue.KeyLoanCreated}, f.events.keys())
}

func TestLoanCreateHonoursExplicitDueDate(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	u := f.user("ana")
	c := f.copyOf(f.book("Dune").ID)
	due := f.clock.Now().Add(3 * 24 * time.Hour)

	l, err := f.loans.Create(f.ctx, u.ID, c.ID, &due)
	require.NoError(t, err)
	assert.Equal(t, due, l.DueDate)
}

func TestLoanCreateRejectsUnavailableCopy(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	ana, ben := f.user("ana"), f.user("ben")
	c := f.copyOf(f.book("Dune").ID)

	_, err := f.loans.Create(f.ctx, ana.ID, c.ID, nil)
	require.NoError(t, err)

	_, err = f.loans.Create(f.ctx, ben.ID, c.ID, nil)
	requireKind(t, err, KindConflict, CodeCopyNotAvailable)

	loans, err := f.loans.ListByUser(f.ctx, ben.ID)
	require.NoError(t, err)
	assert.Empty(t, loans)
	assert.Equal(t, model.CopyLoaned, f.copyStatus(c.ID))
}

func TestLoanCreateRejectsDamagedCopy(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	u := f.user("ana")
	c := f.copyOf(f.book("Dune").ID)
	_, err := f.copies.SetStatus(f.ctx, c.ID, model.CopyDamaged)
	require.NoError(t, err)

	_, err = f.loans.Create(f.ctx, u.ID, c.ID, nil)
	requireKind(t, err, KindConflict, CodeCopyNotAvailable)
	assert.Equal(t, model.CopyDamaged, f.copyStatus(c.ID))
}

func TestLoanCreateNotFound(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	u := f.user("ana")
	c := f.copyOf(f.book("Dune").ID)

	_, err := f.loans.Create(f.ctx, 9999, c.ID, nil)
	requireKind(t, err, KindNotFound, CodeUserNotFound)

	_, err = f.loans.Create(f.ctx, u.ID, 9999, nil)
	requireKind(t, err, KindNotFound, CodeCopyNotFound)

	assert.Equal(t, model.CopyAvailable, f.copyStatus(c.ID))
}

func TestLoanReturnFreesCopy(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	u := f.user("ana")
	c := f.copyOf(f.book("Dune").ID)
	l, err := f.loans.Create(f.ctx, u.ID, c.ID, nil)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	returned, err := f.loans.Return(f.ctx, l.ID)
	require.NoError(t, err)

	assert.Equal(t, model.LoanReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, f.clock.Now(), *returned.ReturnedAt)
	assert.Equal(t, model.CopyAvailable, f.copyStatus(c.ID))
	assert.Equal(t, []string{queue.KeyLoanCreated, queue.KeyLoanReturned}, f.events.keys())
}

func TestLoanSecondReturnFails(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	u := f.user("ana")
	c := f.copyOf(f.book("Dune").ID)
	l, err := f.loans.Create(f.ctx, u.ID, c.ID, nil)
	require.NoError(t, err)
	first, err := f.loans.Return(f.ctx, l.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.loans.Return(f.ctx, l.ID)
	requireKind(t, err, KindConflict, CodeLoanNotActive)

	again, err := f.loans.Get(f.ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.ReturnedAt, *again.ReturnedAt)
}

func TestLoanReturnUnknown(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	_, err := f.loans.Return(f.ctx, 42)
	requireKind(t, err, KindNotFound, CodeLoanNotFound)
}

func TestReturnOverdueLoanPerPolicy(t *testing.T) {
	cases := []struct {
		policy  ReturnPolicy
		wantErr bool
	}{
		{ReturnLenient, false},
		{ReturnStrict, true},
	}
	for _, tc := range cases {
		t.Run(string(tc.policy), func(t *testing.T) {
			opts := DefaultLifecycleOptions()
			opts.ReturnPolicy = tc.policy
			f := newFixture(t, opts)
			u := f.user("ana")
			c := f.copyOf(f.book("Dune").ID)
			due := f.clock.Now().Add(24 * time.Hour)
			l, err := f.loans.Create(f.ctx, u.ID, c.ID, &due)
			require.NoError(t, err)

			f.clock.Advance(48 * time.Hour)
			n, err := f.loans.SweepOverdue(f.ctx)
			require.NoError(t, err)
			require.EqualValues(t, 1, n)

			_, err = f.loans.Return(f.ctx, l.ID)
			if tc.wantErr {
				requireKind(t, err, KindConflict, CodeLoanNotActive)
				assert.Equal(t, model.LoanOverdue, f.loanStatus(l.ID))
				assert.Equal(t, model.CopyLoaned, f.copyStatus(c.ID))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.LoanReturned, f.loanStatus(l.ID))
			assert.Equal(t, model.CopyAvailable, f.copyStatus(c.ID))
		})
	}
}

func TestSweepOverdueIsIdempotent(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	u := f.user("ana")
	b := f.book("Dune")
	past := f.clock.Now().Add(time.Hour)
	future := f.clock.Now().Add(30 * 24 * time.Hour)
	late, err := f.loans.Create(f.ctx, u.ID, f.copyOf(b.ID).ID, &past)
	require.NoError(t, err)
	onTime, err := f.loans.Create(f.ctx, u.ID, f.copyOf(b.ID).ID, &future)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	n, err := f.loans.SweepOverdue(f.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = f.loans.SweepOverdue(f.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	assert.Equal(t, model.LoanOverdue, f.loanStatus(late.ID))
	assert.Equal(t, model.LoanActive, f.loanStatus(onTime.ID))
}

func TestListOverdueIncludesUnsweptLoans(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	u := f.user("ana")
	b := f.book("Dune")
	due := f.clock.Now().Add(time.Hour)
	a, err := f.loans.Create(f.ctx, u.ID, f.copyOf(b.ID).ID, &due)
	require.NoError(t, err)
	_, err = f.loans.Create(f.ctx, u.ID, f.copyOf(b.ID).ID, nil)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	overdue, err := f.loans.ListOverdue(f.ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, a.ID, overdue[0].ID)

	_, err = f.loans.SweepOverdue(f.ctx)
	require.NoError(t, err)
	overdue, err = f.loans.ListOverdue(f.ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)

	active, err := f.loans.ListActive(f.ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestUpdateDueDateReactivatesOverdueLoan(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	u := f.user("ana")
	c := f.copyOf(f.book("Dune").ID)
	due := f.clock.Now().Add(time.Hour)
	l, err := f.loans.Create(f.ctx, u.ID, c.ID, &due)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)
	_, err = f.loans.SweepOverdue(f.ctx)
	require.NoError(t, err)

	extended, err := f.loans.UpdateDueDate(f.ctx, l.ID, f.clock.Now().Add(7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.LoanActive, extended.Status)

	_, err = f.loans.Return(f.ctx, l.ID)
	require.NoError(t, err)
	_, err = f.loans.UpdateDueDate(f.ctx, l.ID, f.clock.Now().Add(time.Hour))
	requireKind(t, err, KindConflict, CodeLoanNotActive)
}

func TestDeleteOpenLoanReleasesCopy(t *testing.T) {
	for _, overdue := range []bool{false, true} {
		f := newFixture(t, DefaultLifecycleOptions())
		u := f.user("ana")
		c := f.copyOf(f.book("Dune").ID)
		due := f.clock.Now().Add(time.Hour)
		l, err := f.loans.Create(f.ctx, u.ID, c.ID, &due)
		require.NoError(t, err)
		if overdue {
			f.clock.Advance(2 * time.Hour)
			_, err = f.loans.SweepOverdue(f.ctx)
			require.NoError(t, err)
		}

		require.NoError(t, f.loans.Delete(f.ctx, l.ID))
		assert.Equal(t, model.CopyAvailable, f.copyStatus(c.ID))
		_, err = f.loans.Get(f.ctx, l.ID)
		requireKind(t, err, KindNotFound, CodeLoanNotFound)
	}
}

func TestDeleteReturnedLoanLeavesCopyAlone(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	ana, ben := f.user("ana"), f.user("ben")
	c := f.copyOf(f.book("Dune").ID)
	first, err := f.loans.Create(f.ctx, ana.ID, c.ID, nil)
	require.NoError(t, err)
	_, err = f.loans.Return(f.ctx, first.ID)
	require.NoError(t, err)
	_, err = f.loans.Create(f.ctx, ben.ID, c.ID, nil)
	require.NoError(t, err)

	require.NoError(t, f.loans.Delete(f.ctx, first.ID))
	assert.Equal(t, model.CopyLoaned, f.copyStatus(c.ID))
}

func TestConcurrentLoansClaimCopyOnce(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	c := f.copyOf(f.book("Dune").ID)
	const borrowers = 8
	users := make([]*model.User, borrowers)
	for i := range users {
		users[i] = f.user(string(rune('a'+i)) + "user")
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for _, u := range users {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()
			_, err := f.loans.Create(f.ctx, userID, c.ID, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case CodeOf(err) == CodeCopyNotAvailable:
				conflicts++
			}
		}(u.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, borrowers-1, conflicts)
	active, err := f.loans.ListActive(f.ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestPublishFailureDoesNotUndoReturn(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	u := f.user("ana")
	c := f.copyOf(f.book("Dune").ID)
	l, err := f.loans.Create(f.ctx, u.ID, c.ID, nil)
	require.NoError(t, err)

	f.events.fail = errors.New("broker down")
	_, err = f.loans.Return(f.ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LoanReturned, f.loanStatus(l.ID))
	assert.Equal(t, model.CopyAvailable, f.copyStatus(c.ID))
}
