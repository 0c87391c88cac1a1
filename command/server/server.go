package server

import (
	"context"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/command"
	"github.com/0xPolygon/polygon-gateway/command/helper"
	"github.com/0xPolygon/polygon-gateway/server"
	"github.com/spf13/cobra"
)

const (
	prometheusAddressFlag = "prometheus"
	keeperFlag            = "keeper"
)

var params serverParams

type serverParams struct {
	prometheusAddress string
	keeper            bool

	config *server.Config
}

func GetCommand() *cobra.Command {
	serverCmd := &cobra.Command{
		Use:     "server",
		Short:   "Starts the gateway daemon: router adapters, queue keeper and telemetry",
		PreRunE: runPreRun,
		Run:     runCommand,
	}

	setFlags(serverCmd)

	return serverCmd
}

func setFlags(cmd *cobra.Command) {
	defaultConfig := server.DefaultConfig()

	cmd.Flags().StringVar(
		&params.prometheusAddress,
		prometheusAddressFlag,
		"",
		"the address and port for the prometheus instrumentation service (address:port)",
	)

	cmd.Flags().BoolVar(
		&params.keeper,
		keeperFlag,
		defaultConfig.Keeper.Enabled,
		fmt.Sprintf(
			"process queued messages periodically. Default: %t",
			defaultConfig.Keeper.Enabled,
		),
	)
}

func runPreRun(cmd *cobra.Command, _ []string) error {
	config, err := helper.ReadConfig(cmd)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed(prometheusAddressFlag) {
		if config.Telemetry == nil {
			config.Telemetry = &server.Telemetry{}
		}

		config.Telemetry.PrometheusAddr = params.prometheusAddress
	}

	if cmd.Flags().Changed(keeperFlag) {
		if config.Keeper == nil {
			config.Keeper = server.DefaultConfig().Keeper
		}

		config.Keeper.Enabled = params.keeper
	}

	params.config = config

	return config.Validate()
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)

	if err := runServerLoop(params.config); err != nil {
		outputter.SetError(err)
		outputter.WriteOutput()
	}
}

func runServerLoop(config *server.Config) error {
	logger, err := server.NewLoggerFromConfig(config)
	if err != nil {
		return err
	}

	serverInstance, err := server.NewServer(config, logger)
	if err != nil {
		return err
	}

	defer serverInstance.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	doneCh := make(chan error, 1)

	go func() {
		doneCh <- serverInstance.Run(ctx)
	}()

	return helper.HandleSignals(cancel, doneCh)
}
