package relayer

import (
	"fmt"

	"github.com/0xPolygon/polygon-gateway/command"
	"github.com/0xPolygon/polygon-gateway/command/helper"
	"github.com/0xPolygon/polygon-gateway/gateway"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/spf13/cobra"
)

const accountFlag = "account"

var params relayerParams

type relayerParams struct {
	caller  string
	domain  string
	account string
}

// GetCommand returns the relayer command
func GetCommand() *cobra.Command {
	relayerCmd := &cobra.Command{
		Use:   "relayer",
		Short: "Top level command for managing the relayers allowed to submit inbound messages",
	}

	relayerCmd.AddCommand(
		getMutateCommand("add", "Allows an account to submit inbound messages of a domain", addRelayer),
		getMutateCommand("remove", "Revokes an account from the relayers of a domain", removeRelayer),
		getShowCommand(),
	)

	return relayerCmd
}

type mutateFn func(gw *gateway.Gateway, caller types.Address, domain types.Domain, account types.Address) error

func addRelayer(gw *gateway.Gateway, caller types.Address, domain types.Domain, account types.Address) error {
	return gw.AddRelayer(caller, domain, account)
}

func removeRelayer(gw *gateway.Gateway, caller types.Address, domain types.Domain, account types.Address) error {
	return gw.RemoveRelayer(caller, domain, account)
}

func getMutateCommand(use, short string, fn mutateFn) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Run: func(cmd *cobra.Command, _ []string) {
			runMutateCommand(cmd, fn)
		},
	}

	helper.RegisterCallerFlag(cmd, &params.caller)

	cmd.Flags().StringVar(&params.domain, helper.DomainFlag, "", "the domain of the relayer")
	cmd.Flags().StringVar(&params.account, accountFlag, "", "the relayer account")

	_ = cmd.MarkFlagRequired(helper.DomainFlag)
	_ = cmd.MarkFlagRequired(accountFlag)

	return cmd
}

func getShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Shows the relayers of a domain",
		Run:   runShowCommand,
	}

	cmd.Flags().StringVar(&params.domain, helper.DomainFlag, "", "the domain to show the relayers of")

	_ = cmd.MarkFlagRequired(helper.DomainFlag)

	return cmd
}

func runMutateCommand(cmd *cobra.Command, fn mutateFn) {
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

	account, err := helper.ParseAddress(accountFlag, params.account)
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

	if err := fn(gw, caller, domain, account); err != nil {
		outputter.SetError(fmt.Errorf("failed to %s relayer: %w", cmd.Name(), err))

		return
	}

	relayers, err := gw.Relayers(domain)
	if err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(&result{Domain: domain, Relayers: relayers})
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

	relayers, err := gw.Relayers(domain)
	if err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(&result{Domain: domain, Relayers: relayers})
}
