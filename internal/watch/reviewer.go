// Package watch holds the two entry points of the monitor: on-demand PR
// review and the recurring feed poller. Both mutate the same state store.
package watch

import (
	"context"

	"go.uber.org/zap"

	"repowatch/internal/diff"
	"repowatch/internal/github"
	"repowatch/internal/review"
	"repowatch/internal/state"
)

// PRReview is the result delivered back to the external caller.
type PRReview struct {
	Repo        string `json:"repo"`
	Author      string `json:"author"`
	Number      int    `json:"number"`
	Additions   int    `json:"additions"`
	Deletions   int    `json:"deletions"`
	MergeStatus string `json:"merge_status"`
	Title       string `json:"title"`
	Description string `json:"description"`
	AISummary   string `json:"ai_summary"`
	URL         string `json:"url"`
}

// Reviewer orchestrates a single PR review.
type Reviewer struct {
	gh     *github.Client
	ai     *review.Client
	store  *state.Store
	host   string
	logger *zap.Logger
}

func NewReviewer(gh *github.Client, ai *review.Client, store *state.Store, host string, logger *zap.Logger) *Reviewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reviewer{gh: gh, ai: ai, store: store, host: host, logger: logger}
}

// ReviewURL validates a pull request URL against the expected origin and
// reviews it.
func (r *Reviewer) ReviewURL(ctx context.Context, rawURL string) (*PRReview, error) {
	repo, number, err := github.ParsePRURL(rawURL, r.host)
	if err != nil {
		return nil, err
	}
	return r.ReviewPR(ctx, repo, number)
}

// ReviewPR fetches metadata and diff for repo#number, attaches a
// best-effort AI summary and a merge-status label, records the author's
// contribution and returns the assembled result. No state is mutated on
// any failure path before the final record step.
func (r *Reviewer) ReviewPR(ctx context.Context, repo string, number int) (*PRReview, error) {
	meta, err := r.gh.GetPR(ctx, repo, number)
	if err != nil {
		return nil, err
	}
	diffText, err := r.gh.GetPRDiff(ctx, repo, number)
	if err != nil {
		return nil, err
	}

	change := diff.Extract(diffText)
	aiResult := r.ai.Review(ctx, change)

	if err := r.store.RecordReview(meta.Author(), repo, meta.Additions, meta.Deletions); err != nil {
		// The review itself succeeded; losing one stats update is worth a
		// log line, not a failed command.
		r.logger.Error("failed to persist contributor stats",
			zap.String("author", meta.Author()),
			zap.String("repo", repo),
			zap.Error(err))
	}

	return &PRReview{
		Repo:        repo,
		Author:      meta.Author(),
		Number:      meta.Number,
		Additions:   meta.Additions,
		Deletions:   meta.Deletions,
		MergeStatus: meta.MergeStatus(),
		Title:       meta.Title,
		Description: meta.Body,
		AISummary:   aiResult.Text(),
		URL:         meta.HTMLURL,
	}, nil
}
