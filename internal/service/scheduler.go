package service

import (
	"context"
	"time"

	"github.com/atrkk2024-beep/inskate/pkg/logger"
)

// Планировщик опрашивает журнал раз в минуту, поэтому
// запланированные рассылки уходят с точностью до минуты.
const schedulerInterval = time.Minute

// PushScheduler периодически отправляет запланированные рассылки.
type PushScheduler struct {
	push     PushService
	interval time.Duration
	log      *logger.Logger
}

// NewPushScheduler создает новый планировщик рассылок
func NewPushScheduler(push PushService, log *logger.Logger) *PushScheduler {
	return &PushScheduler{
		push:     push,
		interval: schedulerInterval,
		log:      log,
	}
}

// Run запускает цикл планировщика и блокируется до отмены контекста.
func (s *PushScheduler) Run(ctx context.Context) {
	s.log.Infow("Push scheduler started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Infow("Push scheduler stopped")
			return
		case now := <-ticker.C:
			if err := s.push.DispatchDue(ctx, now); err != nil {
				s.log.Errorw("Push scheduler tick failed", "error", err)
			}
		}
	}
}
