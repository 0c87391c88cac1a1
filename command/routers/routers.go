package routers

import (
	"fmt"

	"github.com/0xPolygon/polygon-gateway/command"
	"github.com/0xPolygon/polygon-gateway/command/helper"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/spf13/cobra"
)

var (
	setParams  routersParams
	showParams routersParams
)

type routersParams struct {
	caller  string
	domain  string
	routers []string
}

// GetCommand returns the routers command
func GetCommand() *cobra.Command {
	routersCmd := &cobra.Command{
		Use:   "routers",
		Short: "Top level command for configuring the routers of a domain",
	}

	routersCmd.AddCommand(
		getSetCommand(),
		getShowCommand(),
	)

	return routersCmd
}

func getSetCommand() *cobra.Command {
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Replaces the routers of a domain. Pending messages are re-evaluated against the new set",
		Run:   runSetCommand,
	}

	helper.RegisterCallerFlag(setCmd, &setParams.caller)

	setCmd.Flags().StringVar(&setParams.domain, helper.DomainFlag, "", "the domain to configure (home or evm:<chain id>)")
	setCmd.Flags().StringArrayVar(&setParams.routers, helper.RouterFlag, nil,
		"the router ids in priority order, the first one carries full messages")

	_ = setCmd.MarkFlagRequired(helper.DomainFlag)
	_ = setCmd.MarkFlagRequired(helper.RouterFlag)

	return setCmd
}

func getShowCommand() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Shows the known router adapters and the routers of a domain",
		Run:   runShowCommand,
	}

	showCmd.Flags().StringVar(&showParams.domain, helper.DomainFlag, "", "the domain to show the routers of")

	return showCmd
}

func runSetCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	caller, err := helper.ParseAddress(helper.CallerFlag, setParams.caller)
	if err != nil {
		outputter.SetError(err)

		return
	}

	domain, err := helper.ParseDomain(helper.DomainFlag, setParams.domain)
	if err != nil {
		outputter.SetError(err)

		return
	}

	ids := make([]types.RouterID, len(setParams.routers))
	for i, id := range setParams.routers {
		ids[i] = types.RouterID(id)
	}

	gw, closeFn, err := helper.OpenGateway(cmd)
	if err != nil {
		outputter.SetError(err)

		return
	}
	defer closeFn()

	nonces, err := gw.SetRouters(caller, domain, ids)
	if err != nil {
		outputter.SetError(fmt.Errorf("failed to set routers: %w", err))

		return
	}

	outputter.SetCommandResult(&setResult{Domain: domain, Routers: ids, Submitted: nonces})
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

	result := &showResult{Adapters: gw.Routers()}

	if showParams.domain != "" {
		domain, err := helper.ParseDomain(helper.DomainFlag, showParams.domain)
		if err != nil {
			outputter.SetError(err)

			return
		}

		configured, err := gw.RoutersForDomain(domain)
		if err != nil {
			outputter.SetError(err)

			return
		}

		result.Domain = &domain
		result.Configured = configured
	}

	outputter.SetCommandResult(result)
}
