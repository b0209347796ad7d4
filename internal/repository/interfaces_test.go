package repository_test

import (
	"github.com/iliyamo/library-api/internal/repository"
	"github.com/iliyamo/library-api/internal/service"
)

var (
	_ service.UserStore        = (*repository.UserRepo)(nil)
	_ service.TokenStore       = (*repository.TokenRepo)(nil)
	_ service.CategoryStore    = (*repository.CategoryRepo)(nil)
	_ service.BookStore        = (*repository.BookRepo)(nil)
	_ service.CopyStore        = (*repository.CopyRepo)(nil)
	_ service.LoanStore        = (*repository.LoanRepo)(nil)
	_ service.ReservationStore = (*repository.ReservationRepo)(nil)
)
