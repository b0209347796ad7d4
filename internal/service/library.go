package service

import "go.uber.org/zap"

// Stores is the storage a Library runs on: the MySQL repositories or the
// in-memory driver.
type Stores struct {
	Users        UserStore
	Tokens       TokenStore
	Categories   CategoryStore
	Books        BookStore
	Copies       CopyStore
	Loans        LoanStore
	Reservations ReservationStore
}

// Library is the full set of services, wired so that returns, deletes of
// open loans and status overrides drive reservation processing.
type Library struct {
	Users        *UserService
	Catalog      *CatalogService
	Copies       *CopyService
	Loans        *LoanService
	Reservations *ReservationService
}

// NewLibrary builds every service over st.  events may be nil.
func NewLibrary(st Stores, events Publisher, auth AuthOptions, opts LifecycleOptions, log *zap.Logger) *Library {
	reservations := NewReservationService(st.Reservations, st.Copies, st.Users, st.Books, events, log, opts)
	return &Library{
		Users:        NewUserService(st.Users, st.Tokens, auth, log),
		Catalog:      NewCatalogService(st.Categories, st.Books, log),
		Copies:       NewCopyService(st.Copies, st.Books, reservations, log),
		Loans:        NewLoanService(st.Loans, st.Copies, st.Users, reservations, events, log, opts),
		Reservations: reservations,
	}
}
