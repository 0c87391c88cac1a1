package message

import (
	"context"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/command"
	"github.com/0xPolygon/polygon-gateway/command/helper"
	"github.com/0xPolygon/polygon-gateway/helper/hex"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/spf13/cobra"
)

var receiveParams struct {
	caller string
	domain string
	router string
	data   string
}

func getReceiveCommand() *cobra.Command {
	receiveCmd := &cobra.Command{
		Use:   "receive",
		Short: "Submits a message relayed by a router on behalf of a relayer",
		Run:   runReceiveCommand,
	}

	helper.RegisterCallerFlag(receiveCmd, &receiveParams.caller)

	receiveCmd.Flags().StringVar(&receiveParams.domain, helper.DomainFlag, "", "the origin domain of the message")
	receiveCmd.Flags().StringVar(&receiveParams.router, helper.RouterFlag, "", "the router that relayed the message")
	receiveCmd.Flags().StringVar(&receiveParams.data, dataFlag, "", "the hex encoded message as relayed by the router")

	_ = receiveCmd.MarkFlagRequired(helper.DomainFlag)
	_ = receiveCmd.MarkFlagRequired(helper.RouterFlag)
	_ = receiveCmd.MarkFlagRequired(dataFlag)

	return receiveCmd
}

func runReceiveCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	relayer, err := helper.ParseAddress(helper.CallerFlag, receiveParams.caller)
	if err != nil {
		outputter.SetError(err)

		return
	}

	domain, err := helper.ParseDomain(helper.DomainFlag, receiveParams.domain)
	if err != nil {
		outputter.SetError(err)

		return
	}

	raw, err := hex.DecodeHex(receiveParams.data)
	if err != nil {
		outputter.SetError(fmt.Errorf("invalid --%s: %w", dataFlag, err))

		return
	}

	gw, closeFn, err := helper.OpenGateway(cmd)
	if err != nil {
		outputter.SetError(err)

		return
	}
	defer closeFn()

	res, err := gw.ReceiveMessage(context.Background(), relayer, domain, types.RouterID(receiveParams.router), raw)
	if err != nil {
		outputter.SetError(fmt.Errorf("failed to receive message: %w", err))

		return
	}

	outputter.SetCommandResult(&receiveResult{
		Domain:        domain,
		Hash:          res.Hash,
		Confirmations: res.Confirmations,
		Nonces:        res.Nonces,
	})
}
