package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/cli/config"
	httpctrl "github.com/secmon-lab/msghub/pkg/controller/http"
	"github.com/secmon-lab/msghub/pkg/service/worker"
	"github.com/secmon-lab/msghub/pkg/usecase"
	"github.com/secmon-lab/msghub/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var baseURL string
	var noAuthUID string
	var repoCfg config.Repository
	var slackCfg config.Slack
	var githubCfg config.GitHub
	var syncCfg config.Sync

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("MSGHUB_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Base URL for the application (e.g., https://your-domain.com)",
			Sources:     cli.EnvVars("MSGHUB_BASE_URL"),
			Destination: &baseURL,
		},
		&cli.StringFlag{
			Name:        "no-auth",
			Usage:       "Skip authentication and run as specified Slack user ID (development only). Requires --slack-bot-token. Example: --no-auth=U1234567890",
			Category:    "Authentication",
			Sources:     cli.EnvVars("MSGHUB_NO_AUTH"),
			Destination: &noAuthUID,
		},
	}

	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)
	flags = append(flags, githubCfg.Flags()...)
	flags = append(flags, syncCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()
			logger.Info("Serve configuration",
				"addr", addr,
				"base_url", baseURL,
				"repository", repoCfg,
				"slack", slackCfg,
				"github", githubCfg,
				"sync", syncCfg,
			)

			syncLimits, err := syncCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load sync configuration")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err.Error())
				}
			}()

			if noAuthUID != "" {
				slackCfg.SetNoAuthUID(noAuthUID)
			}

			authUC, err := slackCfg.Configure(ctx, repo, baseURL)
			if err != nil {
				return goerr.Wrap(err, "failed to configure authentication")
			}

			if slackCfg.IsNoAuthMode() {
				logger.Warn("Running in no-auth mode (development only)", "user_id", noAuthUID)
			} else {
				logger.Info("Slack authentication enabled")
			}

			githubClients := githubCfg.Factory()
			ucOpts := []usecase.Option{
				usecase.WithAuth(authUC),
				usecase.WithSyncConfig(syncLimits),
				usecase.WithGitHubClientFactory(githubClients),
			}

			if p := slackCfg.Provider(baseURL); p != nil {
				ucOpts = append(ucOpts, usecase.WithOAuthProvider(p))
				logger.Info("Slack account linking enabled")
			}
			if p := githubCfg.Provider(baseURL, githubClients); p != nil {
				ucOpts = append(ucOpts, usecase.WithOAuthProvider(p))
				logger.Info("GitHub account linking enabled")
			} else {
				logger.Info("GitHub OAuth not configured, GitHub account linking is disabled")
			}

			uc := usecase.New(repo, ucOpts...)

			var syncWorker *worker.SyncWorker
			if interval := syncCfg.Interval(); interval > 0 {
				syncWorker = worker.NewSyncWorker(repo, uc.Sync, interval)
				if err := syncWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start sync worker")
				}
			}

			httpOpts := []httpctrl.Options{}
			if secret := slackCfg.SigningSecret(); secret != "" {
				httpOpts = append(httpOpts, httpctrl.WithSlackSigningSecret(secret))
				logger.Info("Slack webhook signature verification enabled")
			} else {
				logger.Warn("Slack signing secret not configured, Slack webhooks are accepted unsigned")
			}
			if secret := githubCfg.WebhookSecret(); secret != "" {
				httpOpts = append(httpOpts, httpctrl.WithGitHubWebhookSecret(secret))
				logger.Info("GitHub webhook signature verification enabled")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc, httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logger.Info("Received shutdown signal", "signal", sig)

				if syncWorker != nil {
					syncWorker.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logger.Info("Server shutdown completed")
				return nil
			}
		},
	}
}
