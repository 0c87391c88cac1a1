package routers

import (
	"bytes"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/command/helper"
	"github.com/0xPolygon/polygon-gateway/types"
)

type setResult struct {
	Domain    types.Domain     `json:"domain"`
	Routers   []types.RouterID `json:"routers"`
	Submitted []types.Nonce    `json:"submitted"`
}

func (r *setResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[ROUTERS SET]\n")
	buffer.WriteString(helper.FormatKV([]string{
		fmt.Sprintf("Domain|%s", r.Domain),
		fmt.Sprintf("Routers|%v", r.Routers),
		fmt.Sprintf("Submitted nonces|%v", r.Submitted),
	}))
	buffer.WriteString("\n")

	return buffer.String()
}

type showResult struct {
	Adapters   []types.RouterID `json:"adapters"`
	Domain     *types.Domain    `json:"domain,omitempty"`
	Configured []types.RouterID `json:"configured,omitempty"`
}

func (r *showResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[ROUTER ADAPTERS]\n")

	rows := make([]string, 0, len(r.Adapters))
	for _, id := range r.Adapters {
		rows = append(rows, string(id))
	}

	buffer.WriteString(helper.FormatList(rows))
	buffer.WriteString("\n")

	if r.Domain != nil {
		buffer.WriteString(fmt.Sprintf("\n[ROUTERS OF %s]\n", r.Domain))

		rows = []string{"Position|Router"}
		for i, id := range r.Configured {
			rows = append(rows, fmt.Sprintf("%d|%s", i, id))
		}

		buffer.WriteString(helper.FormatList(rows))
		buffer.WriteString("\n")
	}

	return buffer.String()
}
