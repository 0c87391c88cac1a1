package recovery

import (
	"bytes"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/command/helper"
	"github.com/0xPolygon/polygon-gateway/gateway/state"
	"github.com/0xPolygon/polygon-gateway/types"
)

type showResult struct {
	Requests []*state.RecoveryRequest `json:"requests"`
}

func (r *showResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[RECOVERY REQUESTS]\n")

	rows := make([]string, len(r.Requests)+1)
	rows[0] = "Domain|Hash|Router|Status|Open block|Window end|Initiator"

	for i, req := range r.Requests {
		rows[i+1] = fmt.Sprintf("%s|%s|%s|%s|%d|%d|%s",
			req.Domain, req.Hash, req.Router, req.Status, req.OpenBlock, req.WindowEnd(), req.Initiator)
	}

	buffer.WriteString(helper.FormatList(rows))
	buffer.WriteString("\n")

	return buffer.String()
}

type executeResult struct {
	Domain        types.Domain     `json:"domain"`
	Hash          types.Hash       `json:"hash"`
	Router        types.RouterID   `json:"router"`
	Confirmations []types.RouterID `json:"confirmations"`
	Nonces        []types.Nonce    `json:"nonces"`
}

func (r *executeResult) GetOutput() string {
	status := "pending"
	if len(r.Nonces) > 0 {
		status = fmt.Sprintf("submitted %v", r.Nonces)
	}

	return fmt.Sprintf("\n[RECOVERY EXECUTED]\n%s\n", helper.FormatKV([]string{
		fmt.Sprintf("Domain|%s", r.Domain),
		fmt.Sprintf("Hash|%s", r.Hash),
		fmt.Sprintf("Router|%s", r.Router),
		fmt.Sprintf("Message|%s", status),
	}))
}
