package extraction

import (
	"errors"
	"sync"
	"time"
)

// ErrQuotaExceeded is returned once the daily request limit is used up.
var ErrQuotaExceeded = errors.New("daily AI request quota exceeded")

// Quota is a per-process daily request counter. The count resets when the
// UTC day changes.
type Quota struct {
	mu    sync.Mutex
	limit int
	day   string
	used  int
	now   func() time.Time
}

// NewQuota allows limit requests per day. A limit of zero or less disables
// the check.
func NewQuota(limit int) *Quota {
	return &Quota{limit: limit, now: time.Now}
}

func (q *Quota) rollover() {
	today := q.now().UTC().Format("2006-01-02")
	if q.day != today {
		q.day = today
		q.used = 0
	}
}

// Take consumes one request, or returns ErrQuotaExceeded.
func (q *Quota) Take() error {
	if q == nil || q.limit <= 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover()
	if q.used >= q.limit {
		return ErrQuotaExceeded
	}
	q.used++
	return nil
}

// Remaining returns the requests left today, or -1 when unlimited.
func (q *Quota) Remaining() int {
	if q == nil || q.limit <= 0 {
		return -1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.rollover()
	return q.limit - q.used
}
