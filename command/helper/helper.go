package helper

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/0xPolygon/polygon-gateway/command"
	"github.com/0xPolygon/polygon-gateway/gateway"
	"github.com/0xPolygon/polygon-gateway/server"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/hashicorp/go-hclog"
	"github.com/ryanuber/columnize"
	"github.com/spf13/cobra"
)

const (
	CallerFlag = "caller"
	DomainFlag = "domain"
	RouterFlag = "router"
	HashFlag   = "hash"
	NonceFlag  = "nonce"
)

// FormatList formats a list into a string
func FormatList(in []string) string {
	columnConf := columnize.DefaultConfig()
	columnConf.Empty = "<none>"

	return columnize.Format(in, columnConf)
}

// FormatKV formats key value pairs:
//
// Key = Value
//
// Key = <none>
func FormatKV(in []string) string {
	columnConf := columnize.DefaultConfig()
	columnConf.Empty = "<none>"
	columnConf.Glue = " = "

	return columnize.Format(in, columnConf)
}

// RegisterJSONOutputFlag registers the --json output setting for all child commands
func RegisterJSONOutputFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool(
		command.JSONOutputFlag,
		false,
		"get all outputs in json format (default false)",
	)
}

// RegisterConfigFlags registers the --config and --data-dir settings for all child commands
func RegisterConfigFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String(
		command.ConfigFlag,
		"",
		"the path to the gateway config. Supports .json, .hcl, .yaml and .yml",
	)

	cmd.PersistentFlags().String(
		command.DataDirFlag,
		"",
		"the data directory of the gateway, overrides the config value",
	)

	cmd.PersistentFlags().String(
		command.LogLevelFlag,
		"",
		"the log level for console output, overrides the config value",
	)
}

// RegisterCallerFlag registers the account flag the command acts on behalf of
func RegisterCallerFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(
		target,
		CallerFlag,
		"",
		"the account the operation is performed on behalf of",
	)

	_ = cmd.MarkFlagRequired(CallerFlag)
}

// ReadConfig loads the config file given by --config, or the default config,
// and applies the command line overrides
func ReadConfig(cmd *cobra.Command) (*server.Config, error) {
	config := server.DefaultConfig()

	path, _ := cmd.Flags().GetString(command.ConfigFlag)
	if path != "" {
		fileConfig, err := server.ReadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}

		config = fileConfig
	}

	if dataDir, _ := cmd.Flags().GetString(command.DataDirFlag); dataDir != "" {
		config.DataDir = dataDir
	}

	if logLevel, _ := cmd.Flags().GetString(command.LogLevelFlag); logLevel != "" {
		config.LogLevel = logLevel
	}

	return config, nil
}

// OpenGateway opens the gateway state of the configured data dir. The state is
// exclusive, so this fails while a gateway server runs on the same data dir.
func OpenGateway(cmd *cobra.Command) (*gateway.Gateway, func(), error) {
	config, err := ReadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "polygon-gateway",
		Level:  hclog.LevelFromString(config.LogLevel),
		Output: os.Stderr,
	})

	gw, st, err := server.NewStack(config, logger)
	if err != nil {
		return nil, nil, err
	}

	closeFn := func() {
		gw.Close()

		if err := st.Close(); err != nil {
			logger.Error("failed to close state", "err", err)
		}
	}

	return gw, closeFn, nil
}

// ParseAddress parses the raw address of the named flag
func ParseAddress(flag, raw string) (types.Address, error) {
	addr, err := types.ParseAddress(raw)
	if err != nil {
		return types.ZeroAddress, fmt.Errorf("invalid --%s: %w", flag, err)
	}

	return addr, nil
}

// ParseDomain parses the raw domain of the named flag
func ParseDomain(flag, raw string) (types.Domain, error) {
	domain, err := types.ParseDomain(raw)
	if err != nil {
		return types.Domain{}, fmt.Errorf("invalid --%s: %w", flag, err)
	}

	return domain, nil
}

// ParseHash parses the raw hash of the named flag
func ParseHash(flag, raw string) (types.Hash, error) {
	hash, err := types.ParseHash(raw)
	if err != nil {
		return types.ZeroHash, fmt.Errorf("invalid --%s: %w", flag, err)
	}

	return hash, nil
}

// HandleSignals is a helper method for handling signals sent to the console
// Like stop, error, etc.
func HandleSignals(
	cancelFn context.CancelFunc,
	doneCh <-chan error,
) error {
	signalCh := make(chan os.Signal, 4)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case err := <-doneCh:
		return err
	case sig := <-signalCh:
		_, _ = fmt.Fprintf(os.Stdout, "\n[SIGNAL] Caught signal: %v\nGracefully shutting down client...\n", sig)
	}

	cancelFn()

	select {
	case <-signalCh:
		return fmt.Errorf("shutdown by signal channel")
	case <-time.After(5 * time.Second):
		return fmt.Errorf("shutdown by timeout")
	case err := <-doneCh:
		return err
	}
}
