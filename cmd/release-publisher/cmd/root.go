package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/arkmeter/release-publisher/internal/logger"
	"github.com/arkmeter/release-publisher/internal/service/publisher"
	"github.com/arkmeter/release-publisher/internal/version"
)

var (
	// profilePath to the optional publisher profile YAML file.
	profilePath string
	// bucket overrides the storage bucket for this run.
	bucket string
	// notes is the release notes text embedded in the manifest.
	notes string
	// noBuild skips the external build step.
	noBuild bool
	// logLevel sets the logging verbosity.
	logLevel string

	// rootCmd represents the base command for publishing a release.
	rootCmd = &cobra.Command{
		Use:   "release-publisher [project-root]",
		Short: "Build, upload release artifacts to storage and write the update manifest.",
		Long: `Builds the application, finds the produced installer and its detached
signature, uploads both to the storage bucket unless they already exist, and
writes an update manifest with the signature and a public download URL.

Storage endpoint and credential are read from SUPABASE_URL and SUPABASE_KEY
in the environment or a .env file in the project root. When neither source is
set, a placeholder .env is written and the run fails so it can be filled in.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			// Use project root argument if provided, otherwise the current directory.
			projectRoot := "."
			if len(args) > 0 {
				projectRoot = args[0]
			}

			options := &publisher.Options{
				ProjectRoot: projectRoot,
				ProfilePath: profilePath,
				Bucket:      bucket,
				Notes:       notes,
				SkipBuild:   noBuild,
			}

			return publisher.Run(ctx, options)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the release-publisher CLI. Each failure class terminates with
// its own stable exit code so CI can tell "no build artifact" from "upload
// rejected" from "credentials missing".
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(publisher.ExitCode(err))
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&profilePath, "profile", "p", "", "path to publisher profile file")
	rootCmd.Flags().StringVarP(&bucket, "bucket", "b", "", "storage bucket to use (default: from env or 'binaries')")
	rootCmd.Flags().StringVarP(&notes, "notes", "n", "", "release notes to include in the update manifest")
	rootCmd.Flags().BoolVar(&noBuild, "no-build", false, "skip running the build step")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "logging level (debug, info, warn, error)")
}
