package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nso-bridge/nsoctl/pkg/metrics"
	"github.com/nso-bridge/nsoctl/pkg/nsoctl/config"
	"github.com/nso-bridge/nsoctl/pkg/secretstore"
	"github.com/nso-bridge/nsoctl/pkg/system"
)

type Config struct {
	ConfigPath   string
	OutputWriter io.Writer
	ErrWriter    io.Writer
	Input        io.Reader
}

type runtimeState struct {
	configPath           string
	cfg                  *config.Config
	outputFormat         string
	tokenStorageOverride string
	sessionToken         string
	metricsFile          string
	verbose              bool
	writer               io.Writer
	errWriter            io.Writer
	input                io.Reader
	log                  *zap.SugaredLogger
	store                secretstore.Store
}

type runtimeKey struct{}

func DefaultConfig() Config {
	return Config{
		ConfigPath:   config.DefaultConfigPath(),
		OutputWriter: os.Stdout,
		ErrWriter:    os.Stderr,
		Input:        os.Stdin,
	}
}

func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{configPath: cfg.ConfigPath, writer: cfg.OutputWriter, errWriter: cfg.ErrWriter, input: cfg.Input}

	root := &cobra.Command{
		Use:          "nsoctl",
		Short:        "Nintendo Switch Online credential CLI",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.errWriter == nil {
				rt.errWriter = os.Stderr
			}
			if rt.input == nil {
				rt.input = os.Stdin
			}
			if rt.configPath == "" {
				rt.configPath = config.DefaultConfigPath()
			}
			if rt.outputFormat == "" {
				rt.outputFormat = os.Getenv("NSOCTL_OUTPUT")
			}
			if rt.tokenStorageOverride == "" {
				rt.tokenStorageOverride = os.Getenv("NSOCTL_TOKEN_STORAGE")
			}
			if rt.sessionToken == "" {
				rt.sessionToken = os.Getenv("NSOCTL_SESSION_TOKEN")
			}
			if !rt.verbose {
				rt.verbose = strings.EqualFold(os.Getenv("NSOCTL_VERBOSE"), "true")
			}
			rt.log = system.NewLogger(rt.errWriter, rt.verbose)

			if cmd.Name() == "init" && cmd.Parent() != nil && cmd.Parent().Name() == "config" {
				return nil
			}
			if cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			cfg, err := config.Load(rt.configPath)
			if errors.Is(err, os.ErrNotExist) {
				rt.log.Debugw("No config file, using defaults", "path", rt.configPath)
				def := config.DefaultConfig()
				rt.cfg = &def
				return nil
			}
			if err != nil {
				return err
			}
			rt.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	root.PersistentFlags().StringVarP(&rt.outputFormat, "output", "o", "", "Output format: table, wide, json, yaml, template=<text>")
	root.PersistentFlags().StringVar(&rt.tokenStorageOverride, "token-storage", "", "Token storage backend: keyring, file or memory")
	root.PersistentFlags().StringVar(&rt.sessionToken, "session-token", "", "Session token override (skips the stored one)")
	root.PersistentFlags().StringVar(&rt.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile on exit")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "Enable debug logging to stderr")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewConfigCommand(),
		NewAuthCommand(),
		NewSelfCommand(),
		NewFriendsCommand(),
		NewCompletionCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

// runWithRuntime wraps a RunE so that the token storage is closed and the
// metrics textfile written whether or not the command succeeds.
func runWithRuntime(fn func(cmd *cobra.Command, rt *runtimeState, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		rt, err := getRuntime(cmd)
		if err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, rt.finish())
		}()
		return fn(cmd, rt, args)
	}
}

func (rt *runtimeState) OutputFormat() string {
	if rt.outputFormat != "" {
		return rt.outputFormat
	}
	if rt.cfg != nil && rt.cfg.Settings.OutputFormat != "" {
		return rt.cfg.Settings.OutputFormat
	}
	return "table"
}

func (rt *runtimeState) TokenStorage() string {
	if rt.tokenStorageOverride != "" {
		return rt.tokenStorageOverride
	}
	if rt.cfg != nil && rt.cfg.Settings.TokenStorage != "" {
		return rt.cfg.Settings.TokenStorage
	}
	return secretstore.BackendKeyring
}

func (rt *runtimeState) MetricsFile() string {
	if rt.metricsFile != "" {
		return rt.metricsFile
	}
	if rt.cfg != nil {
		return rt.cfg.Settings.MetricsFile
	}
	return ""
}

func (rt *runtimeState) Writer() io.Writer {
	if rt.writer != nil {
		return rt.writer
	}
	return os.Stdout
}

func (rt *runtimeState) Logger() *zap.SugaredLogger {
	if rt.log != nil {
		return rt.log
	}
	return zap.NewNop().Sugar()
}

func (rt *runtimeState) EnsureConfigLoaded() error {
	if rt.cfg != nil {
		return nil
	}
	cfg, err := config.Load(rt.configPath)
	if err != nil {
		return err
	}
	rt.cfg = cfg
	return nil
}

// Store opens the configured secret store once per invocation.
func (rt *runtimeState) Store() (secretstore.Store, error) {
	if rt.store != nil {
		return rt.store, nil
	}
	path := config.DefaultTokenPath()
	if rt.cfg != nil {
		path = rt.cfg.TokenFilePath()
	}
	store, err := secretstore.Open(rt.TokenStorage(), secretstore.DefaultService, path)
	if err != nil {
		return nil, err
	}
	rt.store = store
	return store, nil
}

func (rt *runtimeState) finish() error {
	var errs []error
	if rt.store != nil {
		if err := secretstore.Close(rt.store); err != nil {
			errs = append(errs, fmt.Errorf("failed to close token storage: %w", err))
		}
		rt.store = nil
	}
	if path := rt.MetricsFile(); path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	if rt.log != nil {
		_ = rt.log.Sync()
	}
	return errors.Join(errs...)
}

func (rt *runtimeState) configPathValue() string {
	if rt.configPath == "" {
		return config.DefaultConfigPath()
	}
	return rt.configPath
}
