package main

import (
	"context"
	"log"
	"net/http"

	"go.uber.org/zap"

	"repowatch/internal/config"
	"repowatch/internal/feed"
	"repowatch/internal/github"
	"repowatch/internal/httpx"
	"repowatch/internal/notify"
	"repowatch/internal/review"
	"repowatch/internal/server"
	"repowatch/internal/state"
	"repowatch/internal/watch"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	store := state.NewStore(cfg.StateFile, logger.With(zap.String("component", "state")))
	store.Load()

	// GitHub calls carry the token through a static oauth2 transport;
	// everything else uses a plain client. Both route through the same
	// executor policy.
	ghExec := httpx.New(github.NewHTTPClient(cfg.GitHubToken), cfg.HTTPRetries, cfg.HTTPBackoff,
		logger.With(zap.String("component", "httpx"), zap.String("target", "github")))
	exec := httpx.New(nil, cfg.HTTPRetries, cfg.HTTPBackoff,
		logger.With(zap.String("component", "httpx")))

	rubric, err := review.LoadRubric(cfg.ReviewRubricFile)
	if err != nil {
		logger.Fatal("failed to load review rubric", zap.String("path", cfg.ReviewRubricFile), zap.Error(err))
	}
	ai := review.NewClient(exec, cfg.OpenAIAPIKey, "", cfg.Model, cfg.ReviewMaxTokens, rubric,
		logger.With(zap.String("component", "review")))

	gh := github.NewClient(ghExec, cfg.GitHubAPI)
	fetcher := feed.NewFetcher(ghExec)

	var notifier notify.Notifier
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhookNotifier(exec, cfg.NotifyWebhookURL)
	} else {
		logger.Warn("NOTIFY_WEBHOOK_URL not set, notifications go to the process log")
		notifier = notify.NewLogNotifier(logger.With(zap.String("component", "notify")))
	}

	reviewer := watch.NewReviewer(gh, ai, store, cfg.GitHubHost, logger.With(zap.String("component", "reviewer")))
	poller := watch.NewPoller(store, fetcher, gh, ai, notifier, cfg.PollInterval, cfg.GitHubHost, cfg.DefaultRepoOwner,
		logger.With(zap.String("component", "poller")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)

	s := server.NewServer(cfg, store, reviewer, poller, logger.With(zap.String("component", "server")))
	addr := ":" + cfg.Port
	logger.Info("repowatch server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, s.Router()); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
