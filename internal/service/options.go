package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/library-api/internal/model"
)

// ReturnPolicy decides which loan statuses may be returned.
type ReturnPolicy string

const (
	// ReturnStrict accepts only ACTIVE loans; an OVERDUE loan must first
	// be moved back to ACTIVE (e.g. by extending its due date).
	ReturnStrict ReturnPolicy = "strict"
	// ReturnLenient accepts ACTIVE and OVERDUE loans.
	ReturnLenient ReturnPolicy = "lenient"
)

// ParseReturnPolicy accepts "strict" or "lenient" in any case.
func ParseReturnPolicy(s string) (ReturnPolicy, error) {
	switch p := ReturnPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case ReturnStrict, ReturnLenient:
		return p, nil
	}
	return "", fmt.Errorf("unknown return policy %q", s)
}

// returnable lists the loan statuses accepted by the policy.
func (p ReturnPolicy) returnable() []model.LoanStatus {
	if p == ReturnStrict {
		return []model.LoanStatus{model.LoanActive}
	}
	return []model.LoanStatus{model.LoanActive, model.LoanOverdue}
}

// LifecycleOptions tunes the loan and reservation workflow.
type LifecycleOptions struct {
	ReturnPolicy ReturnPolicy
	// LoanPeriod is added to now when a loan is opened without a due date.
	LoanPeriod time.Duration
	// HoldForReservation moves a returned copy to RESERVED for the user
	// whose reservation it fulfils, so nobody else can borrow it first.
	HoldForReservation bool
}

// DefaultLifecycleOptions: lenient returns, 14 day loans, no holds.
func DefaultLifecycleOptions() LifecycleOptions {
	return LifecycleOptions{
		ReturnPolicy: ReturnLenient,
		LoanPeriod:   model.DefaultLoanPeriod,
	}
}

func (o LifecycleOptions) withDefaults() LifecycleOptions {
	if o.ReturnPolicy == "" {
		o.ReturnPolicy = ReturnLenient
	}
	if o.LoanPeriod <= 0 {
		o.LoanPeriod = model.DefaultLoanPeriod
	}
	return o
}
