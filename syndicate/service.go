/*
Package syndicate implements the betting syndicate's accounting operations.

PURPOSE:
  Two halves sit on top of ledger.TxStore:
  - Transaction orchestration (transactions.go, admin.go): the only code that
    appends to the ledger. Each action writes a fixed bundle of records and
    entries inside one WithTx, or nothing at all.
  - Aggregation (calculations.go): every figure (bank balance, positions,
    share, budget, payout) is folded from ledger entries on each call. No
    balance is cached anywhere.

TODAY:
  The service never reads the system clock for business rules. Season guards
  on writes use the injected ledger.Clock; reads take "today" explicitly.

SEE ALSO:
  - ledger/season.go: state resolver used by the guards
  - ledger/time.go: Monday/week counting used by expected contribution and budget
*/
package syndicate

import (
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/warp/syndicate/ledger"
)

// =============================================================================
// RULES - tunable business constants
// =============================================================================

// Rules holds the syndicate's money constants.
type Rules struct {
	// ContributionUnit is owed by each player for every Monday of the season.
	ContributionUnit decimal.Decimal
	// BudgetUnit is released every BudgetWindowWeeks weeks for betting.
	BudgetUnit        decimal.Decimal
	BudgetWindowWeeks int
}

// DefaultRules: £5 a week, £30 of betting budget every 6 weeks.
func DefaultRules() Rules {
	return Rules{
		ContributionUnit:  decimal.NewFromInt(5),
		BudgetUnit:        decimal.NewFromInt(30),
		BudgetWindowWeeks: 6,
	}
}

func (r Rules) Validate() error {
	if r.ContributionUnit.IsNegative() {
		return &ledger.ValidationError{Field: "contribution_unit", Message: "must not be negative"}
	}
	if r.BudgetUnit.IsNegative() {
		return &ledger.ValidationError{Field: "budget_unit", Message: "must not be negative"}
	}
	if r.BudgetWindowWeeks <= 0 {
		return &ledger.ValidationError{Field: "budget_window_weeks", Message: "must be positive"}
	}
	return nil
}

// =============================================================================
// SERVICE
// =============================================================================

// Service is the syndicate's accounting engine.
type Service struct {
	store ledger.TxStore
	rules Rules
	clock ledger.Clock
	log   log.FieldLogger
}

type Option func(*Service)

func WithRules(r Rules) Option { return func(s *Service) { s.rules = r } }

func WithClock(c ledger.Clock) Option { return func(s *Service) { s.clock = c } }

func WithLogger(l log.FieldLogger) Option { return func(s *Service) { s.log = l } }

// NewService creates a service with DefaultRules, a UTC system clock and the
// standard logrus logger unless overridden.
func NewService(store ledger.TxStore, opts ...Option) (*Service, error) {
	s := &Service{
		store: store,
		rules: DefaultRules(),
		clock: ledger.SystemClock{},
		log:   log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	return s, nil
}

func (s *Service) Rules() Rules { return s.rules }

func (s *Service) Clock() ledger.Clock { return s.clock }
