package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/freelanceflow/freelanceflow/internal/domain/settings"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/testutil"
	"github.com/sourcegraph/conc/pool"
	"github.com/stretchr/testify/suite"
)

type SequencerSuite struct {
	testutil.BaseServiceTestSuite
	sequencer    InvoiceSequencer
	freelancerID string
}

func TestSequencer(t *testing.T) {
	suite.Run(t, new(SequencerSuite))
}

func (s *SequencerSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.SetNow(time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC))
	s.sequencer = NewInvoiceSequencer(newTestServiceParams(&s.BaseServiceTestSuite))
	s.freelancerID = testutil.DefaultFreelancerID
}

func (s *SequencerSuite) storedCounter() (int, int) {
	setting, err := s.GetStores().SettingsRepo.Get(s.GetContext())
	s.Require().NoError(err)
	return setting.NextInvoiceNumber, setting.InvoiceYear
}

func (s *SequencerSuite) TestMintsConsecutiveNumbers() {
	s.GetStores().SettingsRepo.Put(testSetting(s.freelancerID, "INV", 1, 2025))

	first, err := s.sequencer.NextInvoiceNumber(s.GetContext(), s.freelancerID)
	s.Require().NoError(err)
	second, err := s.sequencer.NextInvoiceNumber(s.GetContext(), s.freelancerID)
	s.Require().NoError(err)

	s.Equal("INV-2025-001", first)
	s.Equal("INV-2025-002", second)

	next, year := s.storedCounter()
	s.Equal(3, next)
	s.Equal(2025, year)
}

func (s *SequencerSuite) TestCreatesDefaultSettingsOnFirstUse() {
	number, err := s.sequencer.NextInvoiceNumber(s.GetContext(), s.freelancerID)
	s.Require().NoError(err)
	s.Equal(defaultNumber(s.freelancerID, 2025, 1), number)

	next, year := s.storedCounter()
	s.Equal(2, next)
	s.Equal(2025, year)
}

func (s *SequencerSuite) TestDefaultPrefixSkipsOneTakenByAnotherFreelancer() {
	taken := defaultPrefix(s.freelancerID)
	s.GetStores().SettingsRepo.Put(testSetting("fl_test_00000002", taken, 1, 2025))

	number, err := s.sequencer.NextInvoiceNumber(s.GetContext(), s.freelancerID)
	s.Require().NoError(err)

	fallback := settings.DefaultInvoicePrefixFor("INV", s.freelancerID, 1)
	s.NotEqual(taken, fallback)
	s.Equal(fallback+"-2025-001", number)
}

func (s *SequencerSuite) TestResetsCounterInNewYear() {
	s.GetStores().SettingsRepo.Put(testSetting(s.freelancerID, "ACME", 57, 2024))
	s.SetNow(time.Date(2025, time.January, 1, 0, 0, 1, 0, time.UTC))

	number, err := s.sequencer.NextInvoiceNumber(s.GetContext(), s.freelancerID)
	s.Require().NoError(err)
	s.Equal("ACME-2025-001", number)

	next, year := s.storedCounter()
	s.Equal(2, next)
	s.Equal(2025, year)
}

func (s *SequencerSuite) TestWidensPastThreeDigits() {
	s.GetStores().SettingsRepo.Put(testSetting(s.freelancerID, "INV", 1000, 2025))

	number, err := s.sequencer.NextInvoiceNumber(s.GetContext(), s.freelancerID)
	s.Require().NoError(err)
	s.Equal("INV-2025-1000", number)
}

func (s *SequencerSuite) TestRequiresFreelancer() {
	_, err := s.sequencer.NextInvoiceNumber(s.GetContext(), "")
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *SequencerSuite) TestCountersArePerFreelancer() {
	other := "fl_test_00000002"
	s.GetStores().SettingsRepo.Put(testSetting(s.freelancerID, "INV", 5, 2025))
	s.GetStores().SettingsRepo.Put(testSetting(other, "OTH", 1, 2025))

	mine, err := s.sequencer.NextInvoiceNumber(s.GetContext(), s.freelancerID)
	s.Require().NoError(err)
	theirs, err := s.sequencer.NextInvoiceNumber(s.GetContext(), other)
	s.Require().NoError(err)

	s.Equal("INV-2025-005", mine)
	s.Equal("OTH-2025-001", theirs)
}

func (s *SequencerSuite) TestEnclosingRollbackReturnsNumber() {
	s.GetStores().SettingsRepo.Put(testSetting(s.freelancerID, "INV", 1, 2025))
	boom := errors.New("invoice insert failed")

	err := s.GetDB().WithTx(s.GetContext(), func(txCtx context.Context) error {
		number, err := s.sequencer.NextInvoiceNumber(txCtx, s.freelancerID)
		s.Require().NoError(err)
		s.Equal("INV-2025-001", number)
		return boom
	})
	s.ErrorIs(err, boom)

	next, _ := s.storedCounter()
	s.Equal(1, next)

	number, err := s.sequencer.NextInvoiceNumber(s.GetContext(), s.freelancerID)
	s.Require().NoError(err)
	s.Equal("INV-2025-001", number)
}

func (s *SequencerSuite) TestFailedPersistLeavesCounter() {
	store := s.GetStores().SettingsRepo
	store.Put(testSetting(s.freelancerID, "INV", 7, 2024))
	store.FailUpdateSequence = ierr.NewError("write failed").Mark(ierr.ErrDatabase)

	_, err := s.sequencer.NextInvoiceNumber(s.GetContext(), s.freelancerID)
	s.Require().Error(err)
	s.True(ierr.Is(err, ierr.ErrDatabase))

	next, year := s.storedCounter()
	s.Equal(7, next)
	s.Equal(2024, year)
}

func (s *SequencerSuite) TestLockTimeoutIsConcurrencyConflict() {
	store := s.GetStores().SettingsRepo
	store.Put(testSetting(s.freelancerID, "INV", 1, 2025))
	store.SetLockTimeout(50 * time.Millisecond)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.GetDB().WithTx(s.GetContext(), func(txCtx context.Context) error {
			_, err := store.GetForUpdate(txCtx)
			close(held)
			<-release
			return err
		})
	}()
	<-held

	_, err := s.sequencer.NextInvoiceNumber(s.GetContext(), s.freelancerID)
	close(release)
	s.Require().NoError(<-done)

	s.Require().Error(err)
	s.True(ierr.IsConcurrencyConflict(err))
	s.True(ierr.IsRetryable(err))

	next, _ := s.storedCounter()
	s.Equal(1, next)
}

func (s *SequencerSuite) TestConcurrentMintsAreUniqueAndContiguous() {
	s.GetStores().SettingsRepo.Put(testSetting(s.freelancerID, "INV", 1, 2025))

	const workers = 40
	var (
		mu      sync.Mutex
		numbers []string
	)

	p := pool.New().WithErrors().WithMaxGoroutines(8)
	for i := 0; i < workers; i++ {
		p.Go(func() error {
			number, err := s.sequencer.NextInvoiceNumber(s.GetContext(), s.freelancerID)
			if err != nil {
				return err
			}
			mu.Lock()
			numbers = append(numbers, number)
			mu.Unlock()
			return nil
		})
	}
	s.Require().NoError(p.Wait())

	sort.Strings(numbers)
	expected := make([]string, 0, workers)
	for i := 1; i <= workers; i++ {
		expected = append(expected, fmt.Sprintf("INV-2025-%03d", i))
	}
	s.Equal(expected, numbers)

	next, _ := s.storedCounter()
	s.Equal(workers+1, next)
}
