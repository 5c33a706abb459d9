package watch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"repowatch/internal/diff"
	"repowatch/internal/feed"
	"repowatch/internal/github"
	"repowatch/internal/notify"
	"repowatch/internal/review"
	"repowatch/internal/state"
)

// maxConcurrentRepos bounds the fan-out of one poll pass.
const maxConcurrentRepos = 4

// Poller polls every tracked repository's commit feed on a fixed period
// and notifies the configured channel about new entries, each paired with
// a best-effort AI review of that commit's diff.
type Poller struct {
	store        *state.Store
	feeds        *feed.Fetcher
	gh           *github.Client
	ai           *review.Client
	notifier     notify.Notifier
	interval     time.Duration
	host         string
	defaultOwner string
	inFlight     atomic.Bool
	logger       *zap.Logger
}

func NewPoller(store *state.Store, feeds *feed.Fetcher, gh *github.Client, ai *review.Client,
	notifier notify.Notifier, interval time.Duration, host, defaultOwner string, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		store:        store,
		feeds:        feeds,
		gh:           gh,
		ai:           ai,
		notifier:     notifier,
		interval:     interval,
		host:         host,
		defaultOwner: defaultOwner,
		logger:       logger,
	}
}

// Track normalizes repoOrURL, seeds the cursor with the feed's current
// newest entry so a freshly tracked repo does not replay its history, and
// inserts the feed. Re-tracking overwrites cursor and destination. A repo
// whose feed cannot be fetched is not tracked.
func (p *Poller) Track(ctx context.Context, repoOrURL, channelID string) (string, error) {
	key, err := github.NormalizeRepo(repoOrURL, p.host, p.defaultOwner)
	if err != nil {
		return "", err
	}
	atomURL := github.FeedURL(p.host, key)
	entries, err := p.feeds.Fetch(ctx, atomURL)
	if err != nil {
		return "", err
	}
	lastID := ""
	if len(entries) > 0 {
		lastID = entries[0].ID
	}
	if err := p.store.Track(key, state.TrackedFeed{AtomURL: atomURL, LastID: lastID, ChannelID: channelID}); err != nil {
		return "", err
	}
	p.logger.Info("tracking repository",
		zap.String("repo", key),
		zap.String("channel_id", channelID),
		zap.String("cursor", lastID))
	return key, nil
}

// Untrack removes a repository; it reports whether it was tracked.
func (p *Poller) Untrack(repoOrURL string) (string, bool, error) {
	key, err := github.NormalizeRepo(repoOrURL, p.host, p.defaultOwner)
	if err != nil {
		return "", false, err
	}
	ok, err := p.store.Untrack(key)
	return key, ok, err
}

// Run ticks until ctx is done. Passes never overlap: a tick arriving while
// a pass is still in progress is skipped.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Pass(ctx)
		}
	}
}

// Pass iterates every tracked repository once. Repos are processed
// independently with bounded concurrency; one repo's failure never aborts
// the rest.
func (p *Poller) Pass(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.logger.Warn("previous poll pass still running, skipping")
		return
	}
	defer p.inFlight.Store(false)

	snapshot := p.store.Feeds()
	if len(snapshot) == 0 {
		return
	}

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentRepos)
	for key, tf := range snapshot {
		key, tf := key, tf
		g.Go(func() error {
			if err := p.pollRepo(ctx, key, tf); err != nil {
				p.logger.Warn("poll failed for repository", zap.String("repo", key), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// pollRepo fetches one feed, emits notifications for entries newer than
// the cursor in oldest-to-newest order, then advances the cursor once.
func (p *Poller) pollRepo(ctx context.Context, key string, tf state.TrackedFeed) error {
	entries, err := p.feeds.Fetch(ctx, tf.AtomURL)
	if err != nil {
		var malformed *feed.MalformedError
		if errors.As(err, &malformed) {
			// Treated as zero entries for this pass.
			p.logger.Warn("malformed feed", zap.String("repo", key), zap.Error(err))
			return nil
		}
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	newest := entries[0].ID
	if newest == tf.LastID {
		return nil
	}

	fresh := entries
	found := false
	for i, e := range entries {
		if e.ID == tf.LastID {
			fresh = entries[:i]
			found = true
			break
		}
	}
	if !found && tf.LastID != "" {
		// The cursor aged out of the feed window; replay only what the
		// window actually returned.
		p.logger.Warn("cursor not found in feed window, bounded replay",
			zap.String("repo", key),
			zap.String("cursor", tf.LastID),
			zap.Int("entries", len(fresh)))
	}

	for i := len(fresh) - 1; i >= 0; i-- {
		e := fresh[i]
		text := p.renderEntry(ctx, key, e)
		if err := p.notifier.Notify(ctx, tf.ChannelID, text); err != nil {
			p.logger.Warn("notification delivery failed",
				zap.String("repo", key),
				zap.String("entry", e.ID),
				zap.Error(err))
		}
	}

	return p.store.AdvanceCursor(key, newest)
}

// renderEntry formats one commit notification with its best-effort review.
func (p *Poller) renderEntry(ctx context.Context, key string, e feed.Entry) string {
	header := fmt.Sprintf("New commit in %s: %s by %s\n%s", key, e.Title, e.Author, e.Link)

	if !p.ai.Available() {
		return header + "\n\n" + review.Unavailable().Text()
	}

	var res review.Result
	diffText, err := p.gh.GetCommitDiff(ctx, key, feed.CommitSHA(e.ID))
	if err != nil {
		res = review.Failed("commit diff unavailable: " + err.Error())
	} else {
		res = p.ai.Review(ctx, diff.Extract(diffText))
	}
	return header + "\n\n" + res.Text()
}
