package queue

import (
	"bytes"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/command/helper"
	"github.com/0xPolygon/polygon-gateway/types"
)

type processResult struct {
	Nonce types.Nonce `json:"nonce"`
}

func (r *processResult) GetOutput() string {
	return fmt.Sprintf("\n[MESSAGE PROCESSED]\n%s\n", helper.FormatKV([]string{
		fmt.Sprintf("Nonce|%d", r.Nonce),
	}))
}

type entry struct {
	Nonce    types.Nonce  `json:"nonce"`
	Domain   types.Domain `json:"domain"`
	Size     int          `json:"size"`
	Error    string       `json:"error,omitempty"`
	Attempts uint64       `json:"attempts,omitempty"`
}

type showResult struct {
	LastNonce types.Nonce `json:"lastNonce"`
	Queued    []entry     `json:"queued"`
	Failed    []entry     `json:"failed"`
}

func (r *showResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[QUEUE]\n")
	buffer.WriteString(helper.FormatKV([]string{
		fmt.Sprintf("Last nonce|%d", r.LastNonce),
		fmt.Sprintf("Queued|%d", len(r.Queued)),
		fmt.Sprintf("Failed|%d", len(r.Failed)),
	}))
	buffer.WriteString("\n")

	if len(r.Queued) > 0 {
		rows := []string{"Nonce|Domain|Size"}
		for _, e := range r.Queued {
			rows = append(rows, fmt.Sprintf("%d|%s|%d", e.Nonce, e.Domain, e.Size))
		}

		buffer.WriteString("\n[QUEUED MESSAGES]\n")
		buffer.WriteString(helper.FormatList(rows))
		buffer.WriteString("\n")
	}

	if len(r.Failed) > 0 {
		rows := []string{"Nonce|Domain|Size|Attempts|Error"}
		for _, e := range r.Failed {
			rows = append(rows, fmt.Sprintf("%d|%s|%d|%d|%s", e.Nonce, e.Domain, e.Size, e.Attempts, e.Error))
		}

		buffer.WriteString("\n[FAILED MESSAGES]\n")
		buffer.WriteString(helper.FormatList(rows))
		buffer.WriteString("\n")
	}

	return buffer.String()
}
