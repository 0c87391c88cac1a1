package message

import (
	"fmt"

	"github.com/0xPolygon/polygon-gateway/command"
	"github.com/0xPolygon/polygon-gateway/command/helper"
	"github.com/spf13/cobra"
)

var purgeParams struct {
	caller string
	domain string
	hash   string
}

func getPurgeCommand() *cobra.Command {
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Drops the pending match of a message that will never reach its quorum",
		Run:   runPurgeCommand,
	}

	helper.RegisterCallerFlag(purgeCmd, &purgeParams.caller)

	purgeCmd.Flags().StringVar(&purgeParams.domain, helper.DomainFlag, "", "the origin domain of the message")
	purgeCmd.Flags().StringVar(&purgeParams.hash, helper.HashFlag, "", "the message hash")

	_ = purgeCmd.MarkFlagRequired(helper.DomainFlag)
	_ = purgeCmd.MarkFlagRequired(helper.HashFlag)

	return purgeCmd
}

func runPurgeCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	caller, err := helper.ParseAddress(helper.CallerFlag, purgeParams.caller)
	if err != nil {
		outputter.SetError(err)

		return
	}

	domain, err := helper.ParseDomain(helper.DomainFlag, purgeParams.domain)
	if err != nil {
		outputter.SetError(err)

		return
	}

	hash, err := helper.ParseHash(helper.HashFlag, purgeParams.hash)
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

	if err := gw.PurgePendingMatch(caller, domain, hash); err != nil {
		outputter.SetError(fmt.Errorf("failed to purge pending match: %w", err))

		return
	}

	outputter.SetCommandResult(&purgeResult{Domain: domain, Hash: hash})
}
