package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-api/internal/model"
	"github.com/iliyamo/library-api/internal/repository"
)

func TestCategoryValidation(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())

	_, err := f.catalog.CreateCategory(f.ctx, CategoryInput{})
	requireKind(t, err, KindValidation, CodeInvalidInput)
	_, err = f.catalog.CreateCategory(f.ctx, CategoryInput{Name: ptr(strings.Repeat("x", 101))})
	requireKind(t, err, KindValidation, CodeInvalidInput)
	_, err = f.catalog.CreateCategory(f.ctx, CategoryInput{Name: ptr("Sci-Fi"), Description: ptr(strings.Repeat("d", 501))})
	requireKind(t, err, KindValidation, CodeInvalidInput)

	c, err := f.catalog.CreateCategory(f.ctx, CategoryInput{Name: ptr("  Sci-Fi ")})
	require.NoError(t, err)
	assert.Equal(t, "Sci-Fi", c.Name)

	_, err = f.catalog.CreateCategory(f.ctx, CategoryInput{Name: ptr("sci-fi")})
	requireKind(t, err, KindConflict, CodeDuplicateCategory)
}

func TestBookValidation(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	cat, err := f.catalog.CreateCategory(f.ctx, CategoryInput{Name: ptr("Fiction")})
	require.NoError(t, err)
	base := func() BookInput {
		return BookInput{Title: ptr("Dune"), Author: ptr("Herbert"), ISBN: ptr("9780441013593"), CategoryID: &cat.ID}
	}

	in := base()
	in.ISBN = ptr("123")
	_, err = f.catalog.CreateBook(f.ctx, in)
	requireKind(t, err, KindValidation, CodeInvalidInput)

	in = base()
	in.Year = ptr(f.clock.Now().Year() + 1)
	_, err = f.catalog.CreateBook(f.ctx, in)
	requireKind(t, err, KindValidation, CodeInvalidInput)

	in = base()
	in.CategoryID = ptr(uint64(999))
	_, err = f.catalog.CreateBook(f.ctx, in)
	requireKind(t, err, KindNotFound, CodeCategoryNotFound)

	b, err := f.catalog.CreateBook(f.ctx, base())
	require.NoError(t, err)
	assert.Equal(t, "Fiction", b.CategoryName)

	_, err = f.catalog.CreateBook(f.ctx, base())
	requireKind(t, err, KindConflict, CodeDuplicateISBN)
}

func TestBookListFilters(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	u := f.user("ana")
	dune := f.book("Dune")
	emma := f.book("Emma")
	c := f.copyOf(dune.ID)
	f.copyOf(emma.ID)

	found, err := f.catalog.ListBooks(f.ctx, repository.BookFilter{Query: "DUN"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, dune.ID, found[0].ID)

	_, err = f.loans.Create(f.ctx, u.ID, c.ID, nil)
	require.NoError(t, err)
	available, err := f.catalog.ListBooks(f.ctx, repository.BookFilter{AvailableOnly: true})
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, emma.ID, available[0].ID)
}

func TestDeleteBookWithCopies(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	b := f.book("Dune")
	c := f.copyOf(b.ID)

	err := f.catalog.DeleteBook(f.ctx, b.ID)
	requireKind(t, err, KindConflict, CodeInUse)

	require.NoError(t, f.copies.Delete(f.ctx, c.ID))
	require.NoError(t, f.catalog.DeleteBook(f.ctx, b.ID))
	_, err = f.catalog.GetBook(f.ctx, b.ID)
	requireKind(t, err, KindNotFound, CodeBookNotFound)

	err = f.catalog.DeleteCategory(f.ctx, b.CategoryID)
	require.NoError(t, err)
}

func TestCopyRegistry(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	u := f.user("ana")
	b := f.book("Dune")
	c := f.copyOf(b.ID)

	ok, err := f.copies.IsAvailable(f.ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.copies.Create(f.ctx, CopyInput{BookID: &b.ID, Code: ptr(c.Code)})
	requireKind(t, err, KindConflict, CodeDuplicateCode)

	_, err = f.copies.SetStatus(f.ctx, c.ID, model.CopyStatus("LOST"))
	requireKind(t, err, KindValidation, CodeInvalidInput)
	_, err = f.copies.SetStatus(f.ctx, 999, model.CopyDamaged)
	requireKind(t, err, KindNotFound, CodeCopyNotFound)
	_, err = f.copies.IsAvailable(f.ctx, 999)
	requireKind(t, err, KindNotFound, CodeCopyNotFound)

	l, err := f.loans.Create(f.ctx, u.ID, c.ID, nil)
	require.NoError(t, err)
	err = f.copies.Delete(f.ctx, c.ID)
	requireKind(t, err, KindConflict, CodeCopyHasActiveLoan)

	_, err = f.loans.Return(f.ctx, l.ID)
	require.NoError(t, err)
	require.NoError(t, f.copies.Delete(f.ctx, c.ID))
	n, err := f.copies.CountAvailable(f.ctx, b.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCopyListByStatus(t *testing.T) {
	f := newFixture(t, DefaultLifecycleOptions())
	b := f.book("Dune")
	a := f.copyOf(b.ID)
	d := f.copyOf(b.ID)
	_, err := f.copies.SetStatus(f.ctx, d.ID, model.CopyDamaged)
	require.NoError(t, err)

	list, err := f.copies.List(f.ctx, repository.CopyFilter{BookID: b.ID, Status: model.CopyAvailable})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, "Dune", list[0].BookTitle)
}
