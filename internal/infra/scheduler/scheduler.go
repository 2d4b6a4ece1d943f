package scheduler

import (
	"context"
	"time"

	"attendance_bot/internal/domain/auth"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// AuthRefreshScheduler periodically force-refreshes the authorization
// cache so the first request after a quiet stretch does not pay the
// refresh latency inline.
type AuthRefreshScheduler struct {
	cronEngine *cron.Cron
	cache      *auth.Cache
	spec       string
	log        *logrus.Entry
}

func NewAuthRefreshScheduler(cache *auth.Cache, spec string, log *logrus.Entry) *AuthRefreshScheduler {
	return &AuthRefreshScheduler{
		cronEngine: cron.New(),
		cache:      cache,
		spec:       spec,
		log:        log,
	}
}

func (s *AuthRefreshScheduler) Start() error {
	_, err := s.cronEngine.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.cache.Refresh(ctx, true); err != nil {
			// The cache keeps serving its previous set; just note it.
			s.log.WithError(err).Warn("Scheduled authorization refresh failed")
		}
	})
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	s.log.WithField("spec", s.spec).Info("Authorization refresh scheduler started")
	return nil
}

func (s *AuthRefreshScheduler) Stop() {
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.log.Info("Authorization refresh scheduler stopped")
}
