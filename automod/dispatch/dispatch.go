// Package dispatch executes moderation actions against the platform with a
// global concurrency ceiling and per-error retry classification.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ahgroup/ahgroupbot/automod"
	"github.com/ahgroup/ahgroupbot/telegram"
)

const DefaultRetryBaseDelay = 2 * time.Second

// Dispatcher runs actions concurrently, each on its own goroutine, with the
// number of outstanding platform requests bounded by a weighted semaphore so
// a burst of spam never floods the API.
type Dispatcher struct {
	Logger         *slog.Logger
	Client         telegram.Client
	MaxRetry       int
	RetryBaseDelay time.Duration

	outstanding *semaphore.Weighted
}

func NewDispatcher(client telegram.Client, logger *slog.Logger, maxOutstanding int64, maxRetry int) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Logger:         logger,
		Client:         client,
		MaxRetry:       maxRetry,
		RetryBaseDelay: DefaultRetryBaseDelay,
		outstanding:    semaphore.NewWeighted(maxOutstanding),
	}
}

// Dispatch hands an action off for execution. It blocks only until a
// concurrency permit is free; the side effect itself runs on its own
// goroutine and may complete out of order with later dispatches. Failures are
// logged, never returned: the decision is already recorded in the store, and
// a missed side effect is retried on the next detection cycle.
func (d *Dispatcher) Dispatch(ctx context.Context, act automod.Action) error {
	if act.Kind == automod.ActionAccept {
		return nil
	}
	if err := d.outstanding.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer d.outstanding.Release(1)
		d.execute(context.WithoutCancel(ctx), act)
	}()
	return nil
}

func (d *Dispatcher) execute(ctx context.Context, act automod.Action) {
	logger := d.Logger.With("chat", act.Chat)
	switch act.Kind {
	case automod.ActionDelete:
		d.deleteMessage(ctx, act.Chat, act.Message)
	case automod.ActionBan:
		d.banUser(ctx, act.Chat, act.User)
	case automod.ActionDeleteAndBan:
		d.deleteMessage(ctx, act.Chat, act.Message)
		d.banUser(ctx, act.Chat, act.User)
	default:
		logger.Warn("unknown action kind", "kind", act.Kind)
	}
}

// deleteMessage retries per error class: platform throttling waits the
// requested duration, transient failures back off exponentially, and a target
// that is already gone (or that we lack the rights to touch) counts as done.
func (d *Dispatcher) deleteMessage(ctx context.Context, chatID telegram.ChatID, msgID telegram.MessageID) {
	logger := d.Logger.With("chat", chatID, "msg", msgID)
	logger.Info("deleting message")
	for retry := 0; ; retry++ {
		err := d.Client.DeleteMessage(ctx, chatID, msgID)
		if err == nil {
			dispatchCompleted.WithLabelValues("delete").Inc()
			return
		}

		if apiErr, ok := telegram.AsError(err); ok {
			switch {
			case apiErr.IsGone():
				logger.Debug("message already gone")
				dispatchCompleted.WithLabelValues("delete").Inc()
				return
			case apiErr.IsForbidden():
				logger.Debug("cannot delete here, nothing to be done", "err", apiErr)
				dispatchCompleted.WithLabelValues("delete").Inc()
				return
			case apiErr.IsThrottled() && retry < d.MaxRetry:
				logger.Warn("rate limited, retrying delete", "wait", apiErr.RetryAfter)
				if !sleepCtx(ctx, max(apiErr.RetryAfter, d.RetryBaseDelay)) {
					return
				}
				continue
			case apiErr.MigrateTo != 0 && retry < d.MaxRetry:
				logger.Warn("chat migrated, retrying delete", "newChat", apiErr.MigrateTo)
				chatID = apiErr.MigrateTo
				continue
			}
			logger.Warn("failed to delete message", "err", err)
			dispatchFailed.WithLabelValues("delete").Inc()
			return
		}

		// non-API errors are transient transport failures
		if retry < d.MaxRetry {
			delay := d.RetryBaseDelay << retry
			logger.Warn("delete delayed by network error", "err", err, "backoff", delay)
			if !sleepCtx(ctx, delay) {
				return
			}
			continue
		}
		logger.Warn("failed to delete message, retries exhausted", "err", err)
		dispatchFailed.WithLabelValues("delete").Inc()
		return
	}
}

// banUser is a single attempt. A failed ban is not retried in place; the user
// is simply banned again on the next detection cycle.
func (d *Dispatcher) banUser(ctx context.Context, chatID telegram.ChatID, userID telegram.UserID) {
	logger := d.Logger.With("chat", chatID, "user", userID)
	logger.Info("banning user")
	err := d.Client.BanMember(ctx, chatID, userID)
	if err == nil {
		dispatchCompleted.WithLabelValues("ban").Inc()
		return
	}
	if apiErr, ok := telegram.AsError(err); ok && (apiErr.IsGone() || apiErr.IsForbidden()) {
		logger.Debug("ban is a no-op", "err", apiErr)
		dispatchCompleted.WithLabelValues("ban").Inc()
		return
	}
	logger.Warn("failed to ban user", "err", err)
	dispatchFailed.WithLabelValues("ban").Inc()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
