package poller

import (
	"sync"

	"github.com/hashvest/minerdash/internal/accrual"
	log "github.com/sirupsen/logrus"
)

// DeficitLogger returns an OnUpdate hook that logs each purchase once when it falls behind
// schedule and once when it catches up. Deficits are informational only.
func DeficitLogger() func(View) {
	var mu sync.Mutex
	behind := map[string]bool{}
	return func(v View) {
		mu.Lock()
		defer mu.Unlock()
		seen := make(map[string]bool, len(v.Purchases))
		for _, s := range v.Purchases {
			seen[s.ID] = true
			switch {
			case !s.IsEarningUpToDate && !behind[s.ID]:
				behind[s.ID] = true
				log.WithFields(log.Fields{
					"purchase_id": s.ID,
					"expected":    s.ExpectedEarnings.StringFixed(2),
					"earned":      s.TotalEarned.StringFixed(2),
					"deficit":     s.EarningDeficit.StringFixed(2),
				}).Warn("poller: purchase earnings behind schedule")
			case s.IsEarningUpToDate && behind[s.ID]:
				delete(behind, s.ID)
				log.WithField("purchase_id", s.ID).Info("poller: purchase earnings caught up")
			}
		}
		for id := range behind {
			if !seen[id] {
				delete(behind, id)
			}
		}
	}
}

// Behind returns the purchases whose server-reported earnings lag the schedule.
func Behind(snapshots []accrual.Snapshot) []accrual.Snapshot {
	out := make([]accrual.Snapshot, 0)
	for _, s := range snapshots {
		if !s.IsEarningUpToDate {
			out = append(out, s)
		}
	}
	return out
}
