package hook

import (
	"fmt"

	"github.com/0xPolygon/polygon-gateway/command"
	"github.com/0xPolygon/polygon-gateway/command/helper"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/spf13/cobra"
)

const addressFlag = "address"

var (
	setParams  hookParams
	showParams hookParams
)

type hookParams struct {
	caller  string
	domain  string
	address string
}

// GetCommand returns the hook command
func GetCommand() *cobra.Command {
	hookCmd := &cobra.Command{
		Use:   "hook",
		Short: "Top level command for the hook contract of a domain",
	}

	hookCmd.AddCommand(
		getSetCommand(),
		getShowCommand(),
	)

	return hookCmd
}

func getSetCommand() *cobra.Command {
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Sets the hook contract address of a domain",
		Run:   runSetCommand,
	}

	helper.RegisterCallerFlag(setCmd, &setParams.caller)

	setCmd.Flags().StringVar(&setParams.domain, helper.DomainFlag, "", "the domain of the hook")
	setCmd.Flags().StringVar(&setParams.address, addressFlag, "", "the hook contract address")

	_ = setCmd.MarkFlagRequired(helper.DomainFlag)
	_ = setCmd.MarkFlagRequired(addressFlag)

	return setCmd
}

func getShowCommand() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Shows the hook contract address of a domain",
		Run:   runShowCommand,
	}

	showCmd.Flags().StringVar(&showParams.domain, helper.DomainFlag, "", "the domain of the hook")

	_ = showCmd.MarkFlagRequired(helper.DomainFlag)

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

	address, err := helper.ParseAddress(addressFlag, setParams.address)
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

	if err := gw.SetDomainHookAddress(caller, domain, address); err != nil {
		outputter.SetError(fmt.Errorf("failed to set hook address: %w", err))

		return
	}

	outputter.SetCommandResult(&result{Domain: domain, Address: address})
}

func runShowCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	domain, err := helper.ParseDomain(helper.DomainFlag, showParams.domain)
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

	address, err := gw.DomainHookAddress(domain)
	if err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(&result{Domain: domain, Address: address})
}

type result struct {
	Domain  types.Domain  `json:"domain"`
	Address types.Address `json:"address"`
}

func (r *result) GetOutput() string {
	return fmt.Sprintf("\n[HOOK]\n%s\n", helper.FormatKV([]string{
		fmt.Sprintf("Domain|%s", r.Domain),
		fmt.Sprintf("Address|%s", r.Address),
	}))
}
