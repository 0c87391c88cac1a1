package message

import (
	"github.com/0xPolygon/polygon-gateway/command"
	"github.com/0xPolygon/polygon-gateway/command/helper"
	"github.com/0xPolygon/polygon-gateway/gateway/state"
	"github.com/spf13/cobra"
)

var showParams struct {
	domain string
	hash   string
}

func getShowCommand() *cobra.Command {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Shows the pending matches of a domain, or a single one with --hash",
		Run:   runShowCommand,
	}

	showCmd.Flags().StringVar(&showParams.domain, helper.DomainFlag, "", "the origin domain")
	showCmd.Flags().StringVar(&showParams.hash, helper.HashFlag, "", "the message hash")

	_ = showCmd.MarkFlagRequired(helper.DomainFlag)

	return showCmd
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

	var matches []*state.PendingMatch

	if showParams.hash == "" {
		if matches, err = gw.PendingMatches(domain); err != nil {
			outputter.SetError(err)

			return
		}
	} else {
		hash, err := helper.ParseHash(helper.HashFlag, showParams.hash)
		if err != nil {
			outputter.SetError(err)

			return
		}

		match, err := gw.PendingMatch(domain, hash)
		if err != nil {
			outputter.SetError(err)

			return
		}

		matches = []*state.PendingMatch{match}
	}

	res := &showResult{Domain: domain, Matches: make([]pendingMatch, len(matches))}
	for i, match := range matches {
		res.Matches[i] = pendingMatch{
			Hash:          match.Hash,
			Confirmations: match.Confirmations,
			HasBody:       len(match.Body) > 0,
		}
	}

	outputter.SetCommandResult(res)
}
