package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/msghub/pkg/cli/config"
	"github.com/secmon-lab/msghub/pkg/usecase"
	"github.com/secmon-lab/msghub/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdSync() *cli.Command {
	var email string
	var repoCfg config.Repository
	var githubCfg config.GitHub
	var syncCfg config.Sync

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "email",
			Usage:       "Email of the user to sync",
			Required:    true,
			Sources:     cli.EnvVars("MSGHUB_SYNC_EMAIL"),
			Destination: &email,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, githubCfg.Flags()...)
	flags = append(flags, syncCfg.Flags()...)

	return &cli.Command{
		Name:  "sync",
		Usage: "Fetch new Slack and GitHub messages for one user",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
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
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			user, err := repo.User().GetByEmail(ctx, email)
			if err != nil {
				return goerr.Wrap(err, "failed to get user", goerr.V("email", email))
			}
			if user == nil {
				return goerr.Wrap(usecase.ErrUserNotFound, "no user with the email", goerr.V("email", email))
			}

			uc := usecase.New(repo,
				usecase.WithSyncConfig(syncLimits),
				usecase.WithGitHubClientFactory(githubCfg.Factory()),
			)

			conns, err := uc.Connect.ListConnections(ctx, user.ID)
			if err != nil {
				return err
			}

			out := os.Stdout
			bold := color.New(color.Bold)
			_, _ = bold.Fprintf(out, "Syncing %s <%s>\n", user.Name, user.Email)

			if len(conns) == 0 {
				_, _ = color.New(color.FgYellow).Fprintln(out, "  no linked platforms")
				return nil
			}
			for _, conn := range conns {
				fmt.Fprintf(out, "  %s linked as %s\n", color.CyanString("%s", conn.Platform), conn.ID)
			}

			synced, err := uc.Sync.SyncAll(ctx, user.ID)
			if err != nil {
				_, _ = color.New(color.FgRed).Fprintf(out, "Sync failed: %v\n", err)
				return err
			}

			_, _ = color.New(color.FgGreen).Fprintf(out, "Synced %d new messages\n", synced)
			return nil
		},
	}
}
