package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/uvcctl/internal/logging"
	"github.com/smazurov/uvcctl/internal/updater"
	"github.com/smazurov/uvcctl/internal/version"
)

// CreateSelfUpdateCmd creates the self-update command.
func CreateSelfUpdateCmd() *cobra.Command {
	var opts updater.Options
	var checkOnly, rollback bool

	cmd := &cobra.Command{
		Use:   "self-update",
		Short: "Update uvcctl from GitHub releases",
		Long: `Replaces the binary with the newest GitHub release, keeping the ` +
			`current one so --rollback can bring it back.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "info", Format: "text", Output: "stderr"})
			out := cmd.OutOrStdout()

			svc, err := updater.NewService(opts)
			if err != nil {
				return err
			}
			if err := svc.Disabled(); err != nil {
				return err
			}

			if rollback {
				b, err := svc.Rollback(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "restored %s (saved %s)\n", b.Version, b.SavedAt.Format(time.RFC3339))
				return err
			}

			apply := svc.Apply
			if checkOnly {
				apply = svc.Check
			}
			rel, err := apply(cmd.Context())
			switch {
			case errors.Is(err, updater.ErrUpToDate), err == nil && !rel.Newer:
				_, err = fmt.Fprintf(out, "%s is up to date\n", version.String())
				return err
			case err != nil:
				return err
			case checkOnly:
				_, err = fmt.Fprintf(out, "update available: %s -> %s\n", rel.Current, rel.Latest)
				return err
			}
			_, err = fmt.Fprintf(out, "updated %s -> %s, restart uvcctl to use it\n", rel.Current, rel.Latest)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.Repository, "repository", updater.DefaultRepository, "GitHub repository to fetch releases from")
	cmd.Flags().BoolVar(&opts.Prerelease, "prerelease", false, "Consider prereleases")
	cmd.Flags().StringVar(&opts.BackupDir, "backup-dir", "", "Where the previous binary is kept")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only report whether an update is available")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "Restore the previous binary")
	return cmd
}
