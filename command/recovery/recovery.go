package recovery

import (
	"context"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/command"
	"github.com/0xPolygon/polygon-gateway/command/helper"
	"github.com/0xPolygon/polygon-gateway/gateway"
	"github.com/0xPolygon/polygon-gateway/gateway/state"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/spf13/cobra"
)

var params recoveryParams

type recoveryParams struct {
	caller string
	domain string
	hash   string
	router string
}

type recoveryTarget struct {
	caller types.Address
	domain types.Domain
	hash   types.Hash
	router types.RouterID
}

// GetCommand returns the recovery command
func GetCommand() *cobra.Command {
	recoveryCmd := &cobra.Command{
		Use:   "recovery",
		Short: "Top level command for recovering messages a router failed to deliver",
	}

	recoveryCmd.AddCommand(
		getActionCommand("initiate", "Opens a recovery of a message on behalf of a router", initiate),
		getActionCommand("dispute", "Cancels a recovery while its dispute window is open", dispute),
		getActionCommand("execute", "Finalizes an undisputed recovery once its dispute window elapsed", execute),
		getShowCommand(),
	)

	return recoveryCmd
}

type actionFn func(ctx context.Context, gw *gateway.Gateway, target *recoveryTarget) (command.CommandResult, error)

func initiate(ctx context.Context, gw *gateway.Gateway, target *recoveryTarget) (command.CommandResult, error) {
	request, err := gw.InitiateMessageRecovery(ctx, target.caller, target.domain, target.hash, target.router)
	if err != nil {
		return nil, err
	}

	return &showResult{Requests: []*state.RecoveryRequest{request}}, nil
}

func dispute(ctx context.Context, gw *gateway.Gateway, target *recoveryTarget) (command.CommandResult, error) {
	if err := gw.DisputeMessageRecovery(ctx, target.caller, target.domain, target.hash, target.router); err != nil {
		return nil, err
	}

	request, err := gw.RecoveryRequest(target.domain, target.hash, target.router)
	if err != nil {
		return nil, err
	}

	return &showResult{Requests: []*state.RecoveryRequest{request}}, nil
}

func execute(ctx context.Context, gw *gateway.Gateway, target *recoveryTarget) (command.CommandResult, error) {
	res, err := gw.ExecuteMessageRecovery(ctx, target.caller, target.domain, target.hash, target.router)
	if err != nil {
		return nil, err
	}

	return &executeResult{
		Domain:        target.domain,
		Hash:          res.Hash,
		Router:        target.router,
		Confirmations: res.Confirmations,
		Nonces:        res.Nonces,
	}, nil
}

func registerTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&params.domain, helper.DomainFlag, "", "the origin domain of the message")
	cmd.Flags().StringVar(&params.hash, helper.HashFlag, "", "the message hash")
	cmd.Flags().StringVar(&params.router, helper.RouterFlag, "", "the router that failed to deliver")

	_ = cmd.MarkFlagRequired(helper.DomainFlag)
	_ = cmd.MarkFlagRequired(helper.HashFlag)
	_ = cmd.MarkFlagRequired(helper.RouterFlag)
}

func getActionCommand(use, short string, fn actionFn) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, _ []string) {
			runActionCommand(cmd, fn)
		},
	}

	helper.RegisterCallerFlag(cmd, &params.caller)
	registerTargetFlags(cmd)

	return cmd
}

func getShowCommand() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Shows the recovery requests of a domain",
		Run:   runShowCommand,
	}

	showCmd.Flags().StringVar(&params.domain, helper.DomainFlag, "", "the origin domain")

	_ = showCmd.MarkFlagRequired(helper.DomainFlag)

	return showCmd
}

func parseTarget() (*recoveryTarget, error) {
	caller, err := helper.ParseAddress(helper.CallerFlag, params.caller)
	if err != nil {
		return nil, err
	}

	domain, err := helper.ParseDomain(helper.DomainFlag, params.domain)
	if err != nil {
		return nil, err
	}

	hash, err := helper.ParseHash(helper.HashFlag, params.hash)
	if err != nil {
		return nil, err
	}

	return &recoveryTarget{
		caller: caller,
		domain: domain,
		hash:   hash,
		router: types.RouterID(params.router),
	}, nil
}

func runActionCommand(cmd *cobra.Command, fn actionFn) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	target, err := parseTarget()
	if err != nil {
		outputter.SetError(err)

		return
	}

	gw, closeFn, err := helper.OpenGateway(cmd)
	if err != nil {
		outputter.SetError(err)

		return
	}
	defer closeFn()

	res, err := fn(context.Background(), gw, target)
	if err != nil {
		outputter.SetError(fmt.Errorf("failed to %s recovery: %w", cmd.Name(), err))

		return
	}

	outputter.SetCommandResult(res)
}

func runShowCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	domain, err := helper.ParseDomain(helper.DomainFlag, params.domain)
	if err != nil {
		outputter.SetError(err)

		return
	}

	gw, closeFn, err := helper.OpenGateway(cmd)
	if err != nil {
		outputter.SetError(err)

		return
	}
	defer closeFn()

	requests, err := gw.RecoveryRequests(domain)
	if err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(&showResult{Requests: requests})
}
