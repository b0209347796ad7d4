package service

import (
	"errors"

	"github.com/iliyamo/library-api/internal/repository"
)

// fromStore maps storage sentinels onto typed errors.  nfCode and nfMsg
// describe what ErrNotFound means for the calling operation.
func fromStore(err error, nfCode, nfMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound(nfCode, nfMsg)
	case errors.Is(err, repository.ErrCopyUnavailable):
		return conflict(CodeCopyNotAvailable, "copy not available")
	case errors.Is(err, repository.ErrCopyInUse):
		return conflict(CodeCopyHasActiveLoan, "cannot delete copy with active loan")
	case errors.Is(err, repository.ErrLoanNotReturnable):
		return conflict(CodeLoanNotActive, "loan is not active")
	case errors.Is(err, repository.ErrReservationNotActive):
		return conflict(CodeReservationNotActive, "reservation is not active")
	case errors.Is(err, repository.ErrCopiesAvailable):
		return conflict(CodeReservationNotNeeded, "book has available copies, reservation not needed")
	case errors.Is(err, repository.ErrDuplicateReservation):
		return conflict(CodeDuplicateReservation, "user already has an active reservation for this book")
	case errors.Is(err, repository.ErrEmailExists):
		return conflict(CodeDuplicateEmail, "email already exists")
	case errors.Is(err, repository.ErrDuplicateISBN):
		return conflict(CodeDuplicateISBN, "book with this isbn already exists")
	case errors.Is(err, repository.ErrDuplicateCode):
		return conflict(CodeDuplicateCode, "copy code already exists")
	case errors.Is(err, repository.ErrDuplicateName):
		return conflict(CodeDuplicateCategory, "category already exists")
	case errors.Is(err, repository.ErrInUse):
		return conflict(CodeInUse, "resource is still referenced")
	}
	var typed *Error
	if errors.As(err, &typed) {
		return err
	}
	return internal("storage failure", err)
}
