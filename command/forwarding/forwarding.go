package forwarding

import (
	"fmt"

	"github.com/0xPolygon/polygon-gateway/command"
	"github.com/0xPolygon/polygon-gateway/command/helper"
	"github.com/0xPolygon/polygon-gateway/gateway/state"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/spf13/cobra"
)

const contractFlag = "contract"

var params forwardingParams

type forwardingParams struct {
	caller   string
	router   string
	domain   string
	contract string
}

// GetCommand returns the forwarding command
func GetCommand() *cobra.Command {
	forwardingCmd := &cobra.Command{
		Use:   "forwarding",
		Short: "Top level command for routers that transit a relay domain",
	}

	forwardingCmd.AddCommand(
		getSetCommand(),
		getRemoveCommand(),
		getShowCommand(),
	)

	return forwardingCmd
}

func registerRouterFlag(cmd *cobra.Command) {
	cmd.Flags().StringVar(&params.router, helper.RouterFlag, "", "the router id")

	_ = cmd.MarkFlagRequired(helper.RouterFlag)
}

func getSetCommand() *cobra.Command {
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Makes a router deliver through a relay domain and contract",
		Run:   runSetCommand,
	}

	helper.RegisterCallerFlag(setCmd, &params.caller)
	registerRouterFlag(setCmd)

	setCmd.Flags().StringVar(&params.domain, helper.DomainFlag, "", "the relay domain")
	setCmd.Flags().StringVar(&params.contract, contractFlag, "", "the relay contract")

	_ = setCmd.MarkFlagRequired(helper.DomainFlag)
	_ = setCmd.MarkFlagRequired(contractFlag)

	return setCmd
}

func getRemoveCommand() *cobra.Command {
	removeCmd := &cobra.Command{
		Use:   "remove",
		Short: "Makes a router deliver directly again",
		Run:   runRemoveCommand,
	}

	helper.RegisterCallerFlag(removeCmd, &params.caller)
	registerRouterFlag(removeCmd)

	return removeCmd
}

func getShowCommand() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Shows the forwarding of a router",
		Run:   runShowCommand,
	}

	registerRouterFlag(showCmd)

	return showCmd
}

func runSetCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	caller, err := helper.ParseAddress(helper.CallerFlag, params.caller)
	if err != nil {
		outputter.SetError(err)

		return
	}

	domain, err := helper.ParseDomain(helper.DomainFlag, params.domain)
	if err != nil {
		outputter.SetError(err)

		return
	}

	contract, err := helper.ParseAddress(contractFlag, params.contract)
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

	routerID := types.RouterID(params.router)

	if err := gw.SetRouterForwarding(caller, routerID, domain, contract); err != nil {
		outputter.SetError(fmt.Errorf("failed to set forwarding: %w", err))

		return
	}

	outputter.SetCommandResult(newResult(routerID, &state.ForwardInfo{Domain: domain, Contract: contract}))
}

func runRemoveCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	caller, err := helper.ParseAddress(helper.CallerFlag, params.caller)
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

	routerID := types.RouterID(params.router)

	if err := gw.RemoveRouterForwarding(caller, routerID); err != nil {
		outputter.SetError(fmt.Errorf("failed to remove forwarding: %w", err))

		return
	}

	outputter.SetCommandResult(newResult(routerID, nil))
}

func runShowCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	gw, closeFn, err := helper.OpenGateway(cmd)
	if err != nil {
		outputter.SetError(err)

		return
	}
	defer closeFn()

	routerID := types.RouterID(params.router)

	info, err := gw.RouterForwarding(routerID)
	if err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(newResult(routerID, info))
}

type result struct {
	Router   types.RouterID `json:"router"`
	Direct   bool           `json:"direct"`
	Domain   *types.Domain  `json:"domain,omitempty"`
	Contract *types.Address `json:"contract,omitempty"`
}

func newResult(routerID types.RouterID, info *state.ForwardInfo) *result {
	if info == nil {
		return &result{Router: routerID, Direct: true}
	}

	return &result{Router: routerID, Domain: &info.Domain, Contract: &info.Contract}
}

func (r *result) GetOutput() string {
	rows := []string{fmt.Sprintf("Router|%s", r.Router)}

	if r.Direct {
		rows = append(rows, "Delivery|direct")
	} else {
		rows = append(rows,
			fmt.Sprintf("Relay domain|%s", r.Domain),
			fmt.Sprintf("Relay contract|%s", r.Contract),
		)
	}

	return fmt.Sprintf("\n[FORWARDING]\n%s\n", helper.FormatKV(rows))
}
