package relayer

import (
	"bytes"
	"fmt"

	"github.com/0xPolygon/polygon-gateway/command/helper"
	"github.com/0xPolygon/polygon-gateway/types"
)

type result struct {
	Domain   types.Domain    `json:"domain"`
	Relayers []types.Address `json:"relayers"`
}

func (r *result) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString(fmt.Sprintf("\n[RELAYERS OF %s]\n", r.Domain))

	rows := make([]string, len(r.Relayers))
	for i, relayer := range r.Relayers {
		rows[i] = relayer.String()
	}

	buffer.WriteString(helper.FormatList(rows))
	buffer.WriteString("\n")

	return buffer.String()
}
