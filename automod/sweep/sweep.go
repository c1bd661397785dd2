// Package sweep is the periodic statistical pass over tracked users. It
// catches spam accounts whose individual messages stayed under the
// per-message threshold: scores far above the population percentile are
// treated as confirmed spam and banned.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/ahgroup/ahgroupbot/automod"
	"github.com/ahgroup/ahgroupbot/automod/antispam"
	"github.com/ahgroup/ahgroupbot/automod/statestore"
	"github.com/ahgroup/ahgroupbot/telegram"
)

type Config struct {
	// Interval between sweeps. Ticks that arrive while a sweep is still
	// running are skipped, never queued.
	Interval time.Duration
	// MinSample is the minimum number of tracked suspect users before the
	// percentile threshold is statistically meaningful enough to act on.
	MinSample int
	// SuspicionPercentile positions the outlier threshold within the score
	// population, e.g. 95.
	SuspicionPercentile float64
	// GracePeriod exempts accounts tracked for less than this long; a new
	// account has not had time to accumulate a fair score.
	GracePeriod time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:            15 * time.Minute,
		MinSample:           16,
		SuspicionPercentile: 95,
		GracePeriod:         48 * time.Hour,
	}
}

// ActionSink is where sweep decisions go; satisfied by dispatch.Dispatcher.
type ActionSink interface {
	Dispatch(ctx context.Context, act automod.Action) error
}

// Sweeper shares the state store with the main event loop. Correctness under
// that race relies entirely on the store's atomic merge contract.
type Sweeper struct {
	Logger *slog.Logger
	Store  *statestore.Store
	Sink   ActionSink
	Client telegram.Client
	Config Config
}

// Run sweeps on a fixed interval until ctx is cancelled. The sweep body runs
// synchronously in the loop, so overlapping sweeps cannot occur; ticks that
// fire during a long sweep are dropped by the ticker.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.Logger.Warn("background sweep failed", "err", err)
			}
		}
	}
}

// SweepOnce performs one full pass: outlier detection, name-table pruning,
// and a state save.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	s.Logger.Debug("background sweep")
	sweepRuns.Inc()
	now := time.Now()

	type suspect struct {
		id telegram.UserID
		st antispam.TrustState
	}
	var suspects []suspect
	var scores []int
	s.Store.ForEachUser(func(id telegram.UserID, st antispam.TrustState) {
		if st.IsAuthentic() {
			return
		}
		suspects = append(suspects, suspect{id: id, st: st})
		scores = append(scores, int(st.Score))
	})

	if len(suspects) >= s.Config.MinSample {
		threshold, ok := Percentile(s.Config.SuspicionPercentile, scores)
		if ok {
			s.Logger.Debug("sweep threshold", "threshold", threshold, "sample", len(scores))
			for _, sp := range suspects {
				if int(sp.st.Score) <= threshold || sp.st.Score == 0 {
					continue
				}
				if sp.st.Age(now) < s.Config.GracePeriod {
					continue
				}
				s.banOutlier(ctx, sp.id, sp.st, threshold)
			}
		}
	} else {
		s.Logger.Debug("sweep sample too small", "sample", len(suspects), "min", s.Config.MinSample)
	}

	s.Store.PruneSpamNames(now)
	return s.Store.Save(ctx)
}

func (s *Sweeper) banOutlier(ctx context.Context, userID telegram.UserID, st antispam.TrustState, threshold int) {
	logger := s.Logger.With("user", userID, "score", st.Score, "threshold", threshold)
	logger.Info("score outlier, confirming spam")
	s.Store.MergeUser(userID, antispam.NewSpam())
	sweepBans.Inc()

	for _, chatID := range s.Store.Chats() {
		status, err := s.Client.GetChatMember(ctx, chatID, userID)
		if err != nil {
			logger.Warn("membership lookup failed, deferring ban", "chat", chatID, "err", err)
			continue
		}
		if !status.IsIn() {
			continue
		}
		if err := s.Sink.Dispatch(ctx, automod.Ban(chatID, userID)); err != nil {
			logger.Warn("ban dispatch failed", "chat", chatID, "err", err)
		}
	}
}
