package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hh-outreach/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect the job-search profile used for sending",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the profile and its completion",
	Run: func(_ *cobra.Command, _ []string) {
		d := setup(context.Background())
		defer d.close()

		source, err := d.profileSource()
		if err != nil {
			d.logger.Fatal("creating a profile source", zap.Error(err))
		}

		p, err := source.Profile(d.ctx)
		if err != nil {
			d.logger.Fatal("loading the profile", zap.Error(err))
		}

		pretty, _ := json.MarshalIndent(p, "", "  ")
		fmt.Println(string(pretty))

		threshold := d.config.Profile.MinimumCompletion
		if threshold <= 0 {
			threshold = profile.MinimumCompletion
		}

		gate := profile.Completion(p)
		fmt.Printf("\ncompletion: %.1f%% (%.0f%% required)\n", gate.Percentage, threshold)
		if len(gate.Missing) > 0 {
			fmt.Printf("missing: %s\n", strings.Join(gate.Missing, ", "))
		}
	},
}

var profileSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy the hh.ru resume into the local profile",
	Run: func(cmd *cobra.Command, _ []string) {
		d := setup(context.Background())
		defer d.close()

		source, err := newHeadhunterSource(d.config.Profile, d.logger)
		if err != nil {
			d.logger.Fatal("creating a headhunter client", zap.Error(err))
		}

		p, err := source.Profile(d.ctx)
		if err != nil {
			d.logger.Fatal("loading the resume", zap.Error(err))
		}

		gate := profile.Completion(p)
		if !confirm(cmd, fmt.Sprintf("Replace the local profile with %q (%.0f%% complete)", p.Headline, gate.Percentage)) {
			d.logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}

		if err := d.store.SaveProfile(d.ctx, p); err != nil {
			d.logger.Fatal("saving the profile", zap.Error(err))
		}
		d.logger.Info("profile synced", zap.Float64("completion", gate.Percentage), zap.Strings("missing", gate.Missing))
	},
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileShowCmd, profileSyncCmd)

	profileSyncCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}
