package service

import (
	"sync"
	"sync/atomic"
	"time"

	domainRepo "hvac-booking-core/internal/domain/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// HoldSweeper periodically cancels pending bookings whose hold expired.
// The booking path already sweeps the contested window inside its own
// transaction; this timer keeps the table tidy between bookings so expired
// holds do not linger as visible pending rows.
type HoldSweeper struct {
	db          *gorm.DB
	log         *logrus.Logger
	bookingRepo domainRepo.BookingRepository
	interval    time.Duration
	now         func() time.Time

	stopChan chan struct{}
	wg       sync.WaitGroup
	stopped  atomic.Bool
}

func NewHoldSweeper(db *gorm.DB, log *logrus.Logger, bookingRepo domainRepo.BookingRepository, interval time.Duration) *HoldSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &HoldSweeper{
		db:          db,
		log:         log,
		bookingRepo: bookingRepo,
		interval:    interval,
		now:         time.Now,
		stopChan:    make(chan struct{}),
	}
}

func (s *HoldSweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.stopChan:
				return
			}
		}
	}()
	s.log.Infof("Hold sweeper started (interval=%s)", s.interval)
}

func (s *HoldSweeper) Stop() {
	if s.stopped.CompareAndSwap(false, true) {
		close(s.stopChan)
		s.wg.Wait()
		s.log.Info("Hold sweeper stopped")
	}
}

// Sweep runs one pass. Idempotent; errors are logged, never propagated.
func (s *HoldSweeper) Sweep() {
	n, err := s.bookingRepo.CleanupAllExpiredHolds(s.db, s.now().UTC())
	if err != nil {
		s.log.Errorf("Hold sweep failed: %v", err)
		return
	}
	if n > 0 {
		s.log.Infof("Hold sweep cancelled %d expired hold(s)", n)
	}
}
