package services

import (
	"time"

	"github.com/poofware/homeservices/backend/services/booking-service/internal/constants"
	"github.com/poofware/homeservices/backend/shared/go-utils"
	"github.com/robfig/cron/v3"
)

// SessionSweeper periodically evicts settled sessions from the registry.
type SessionSweeper struct {
	cron      *cron.Cron
	bookings  *BookingService
	retention time.Duration
}

func NewSessionSweeper(bookings *BookingService, retention time.Duration) *SessionSweeper {
	if retention <= 0 {
		retention = constants.SessionRetention
	}
	return &SessionSweeper{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		bookings:  bookings,
		retention: retention,
	}
}

// Start schedules the sweep on spec (standard cron syntax or @every).
func (s *SessionSweeper) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return err
	}
	s.cron.Start()
	utils.Logger.Infof("Scheduled session sweeper (%s, retention %v)", spec, s.retention)
	return nil
}

func (s *SessionSweeper) RunOnce() {
	if n := s.bookings.SweepSessions(s.retention); n > 0 {
		utils.Logger.Debugf("Session sweeper evicted %d sessions", n)
	}
}

// Stop waits for a running sweep to finish.
func (s *SessionSweeper) Stop() {
	<-s.cron.Stop().Done()
}
