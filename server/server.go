package server

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/0xPolygon/polygon-gateway/gateway"
	"github.com/0xPolygon/polygon-gateway/gateway/router"
	"github.com/0xPolygon/polygon-gateway/gateway/state"
	"github.com/0xPolygon/polygon-gateway/helper/common"
	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"
)

// Server is the gateway daemon: it owns the state, the router adapters and the keeper
type Server struct {
	logger hclog.Logger
	config *Config

	state   *state.State
	gateway *gateway.Gateway
	keeper  *keeper

	inmemSink *metrics.InmemSink
}

// NewStack opens the state in the data dir and builds the gateway on top of it.
// The returned state must be closed by the caller.
func NewStack(config *Config, logger hclog.Logger) (*gateway.Gateway, *state.State, error) {
	if err := config.validateStack(); err != nil {
		return nil, nil, err
	}

	gwConfig, err := config.GatewayConfig()
	if err != nil {
		return nil, nil, err
	}

	if err := common.SetupDataDir(config.DataDir, nil); err != nil {
		return nil, nil, err
	}

	routers, err := router.NewRegistryFromConfig(config.Routers, logger.Named("router"))
	if err != nil {
		return nil, nil, err
	}

	blocks, err := NewBlockProvider(config.BlockSource)
	if err != nil {
		return nil, nil, err
	}

	st, err := state.NewState(filepath.Join(config.DataDir, stateFileName), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state: %w", err)
	}

	gw, err := gateway.New(gwConfig, st, routers, NewInboundHandler(config.InboundHandler, logger), blocks, logger)
	if err != nil {
		_ = st.Close()

		return nil, nil, err
	}

	return gw, st, nil
}

// NewServer creates the daemon described by config
func NewServer(config *Config, logger hclog.Logger) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		logger: logger.Named("server"),
		config: config,
	}

	s.logger.Info("Data dir", "path", config.DataDir)

	if config.Telemetry != nil && config.Telemetry.PrometheusAddr != "" {
		inm, err := setupTelemetry()
		if err != nil {
			return nil, fmt.Errorf("failed to setup telemetry: %w", err)
		}

		s.inmemSink = inm
	}

	gw, st, err := NewStack(config, logger)
	if err != nil {
		return nil, err
	}

	s.gateway, s.state = gw, st

	if config.Keeper != nil && config.Keeper.Enabled {
		account, err := config.KeeperAccount()
		if err != nil {
			s.Close()

			return nil, err
		}

		s.keeper = newKeeper(gw, account, config.Keeper, logger)
	}

	return s, nil
}

// Gateway returns the gateway served by the daemon
func (s *Server) Gateway() *gateway.Gateway {
	return s.gateway
}

// Run serves until ctx is done or one of the services fails
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if s.config.Telemetry != nil && s.config.Telemetry.PrometheusAddr != "" {
		srv := s.newPrometheusServer(s.config.Telemetry.PrometheusAddr)

		g.Go(func() error {
			return s.runPrometheusServer(ctx, srv)
		})

		g.Go(func() error {
			return s.runMetricsUpdater(ctx)
		})
	}

	if s.keeper != nil {
		g.Go(func() error {
			return s.keeper.run(ctx)
		})
	}

	s.logger.Info("gateway started", "routers", s.gateway.Routers())

	return g.Wait()
}

// Close releases the gateway and the state
func (s *Server) Close() {
	s.gateway.Close()

	if err := s.state.Close(); err != nil {
		s.logger.Error("failed to close state", "err", err)
	}
}
