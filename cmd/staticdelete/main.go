package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nebula-panel/static-delete/internal/buildinfo"
	"github.com/nebula-panel/static-delete/internal/config"
	"github.com/nebula-panel/static-delete/internal/fsdelete"
	deletehttp "github.com/nebula-panel/static-delete/internal/http"
	"github.com/nebula-panel/static-delete/internal/logging"
	"github.com/nebula-panel/static-delete/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := config.Load()

	root := &cobra.Command{
		Use:           "static-delete",
		Short:         "Delete files named by request URLs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&cfg.LocationsFile, "locations", cfg.LocationsFile, "locations YAML file")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (json, console)")

	root.AddCommand(newServeCmd(&cfg), newCheckCmd(&cfg), newVersionCmd())
	return root
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured static_delete locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "listen address, host:port or unix:/path")
	cmd.Flags().BoolVar(&cfg.DryRun, "dry-run", cfg.DryRun, "log deletions instead of performing them")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	log := logging.FromConfig(cfg.LogLevel, cfg.LogFormat)

	locs, err := loadLocations(cfg, log)
	if err != nil {
		return err
	}

	deleter, closeDeleter, err := newDeleter(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDeleter()

	srv := deletehttp.NewServer(cfg, log, locs, deleter)
	if cfg.DatabaseURL != "" {
		st, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("store init failed: %w", err)
		}
		defer st.Close()
		srv.WithAudit(st)
	}

	log.Info().Str("version", buildinfo.String()).Str("backend", cfg.Backend).Msg("starting")
	return srv.Run(ctx)
}

func loadLocations(cfg config.Config, log zerolog.Logger) ([]deletehttp.Location, error) {
	raw, err := config.LoadLocations(cfg.LocationsFile)
	if err != nil {
		return nil, err
	}
	for _, l := range raw {
		if l.Alias {
			log.Warn().Str("location", l.Pattern).Msg(`"alias" is not supported by static delete; requests to this location will fail`)
		}
	}
	return deletehttp.BuildLocations(raw, cfg.Prefix)
}

func newDeleter(ctx context.Context, cfg config.Config, log zerolog.Logger) (fsdelete.Deleter, func(), error) {
	backend, closeBackend, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if !cfg.DryRun {
		return backend, closeBackend, nil
	}
	inspector, ok := backend.(fsdelete.Inspector)
	if !ok {
		closeBackend()
		return nil, nil, fmt.Errorf("backend %q does not support dry runs", cfg.Backend)
	}
	return fsdelete.DryRun{Backend: inspector, Logger: log}, closeBackend, nil
}

func openBackend(ctx context.Context, cfg config.Config, log zerolog.Logger) (fsdelete.Deleter, func(), error) {
	switch cfg.Backend {
	case config.BackendLocal:
		return fsdelete.Local{}, func() {}, nil
	case config.BackendSFTP:
		d, err := fsdelete.DialSFTP(ctx, fsdelete.SFTPConfig{
			Target:     cfg.SFTPTarget,
			Port:       cfg.SFTPPort,
			KeyFile:    cfg.SFTPKeyFile,
			KnownHosts: cfg.SFTPKnownHosts,
			Timeout:    cfg.SFTPTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("sftp backend: %w", err)
		}
		return d, func() {
			if err := d.Close(); err != nil {
				log.Warn().Err(err).Msg("close sftp backend")
			}
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func newCheckCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check [locations-file]",
		Short: "Validate a locations file and compile its expressions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := *cfg
			if len(args) == 1 {
				c.LocationsFile = args[0]
			}
			log := logging.New(cmd.ErrOrStderr(), zerolog.WarnLevel, "console")
			locs, err := loadLocations(c, log)
			if err != nil {
				return err
			}
			return printLocations(cmd.OutOrStdout(), locs)
		},
	}
}

func printLocations(w io.Writer, locs []deletehttp.Location) error {
	for _, l := range locs {
		kind := "static"
		if !l.Root.Static() {
			kind = "template"
		}
		if _, err := fmt.Fprintf(w, "%s\troot=%s (%s)\tstrict=%v\n", l.Pattern, l.Root, kind, l.Strict); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d location(s) ok\n", len(locs))
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}
