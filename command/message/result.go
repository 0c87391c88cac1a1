package message

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/0xPolygon/polygon-gateway/command/helper"
	"github.com/0xPolygon/polygon-gateway/types"
)

type receiveResult struct {
	Domain        types.Domain     `json:"domain"`
	Hash          types.Hash       `json:"hash"`
	Confirmations []types.RouterID `json:"confirmations"`
	Nonces        []types.Nonce    `json:"nonces"`
}

func (r *receiveResult) GetOutput() string {
	var buffer bytes.Buffer

	status := "pending"
	if len(r.Nonces) > 0 {
		status = "submitted"
	}

	buffer.WriteString("\n[MESSAGE RECEIVED]\n")
	buffer.WriteString(helper.FormatKV([]string{
		fmt.Sprintf("Domain|%s", r.Domain),
		fmt.Sprintf("Hash|%s", r.Hash),
		fmt.Sprintf("Status|%s", status),
		fmt.Sprintf("Confirmations|%s", joinRouters(r.Confirmations)),
		fmt.Sprintf("Nonces|%v", r.Nonces),
	}))
	buffer.WriteString("\n")

	return buffer.String()
}

type sendResult struct {
	Domain types.Domain `json:"domain"`
	// Dispatched is the hash the routers carry, the pack hash when several payloads were sent
	Dispatched types.Hash   `json:"dispatched"`
	Hashes     []types.Hash `json:"hashes"`
}

func (r *sendResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString(fmt.Sprintf("\n[MESSAGES SENT TO %s]\n", r.Domain))
	buffer.WriteString(helper.FormatKV([]string{
		fmt.Sprintf("Dispatched hash|%s", r.Dispatched),
	}))
	buffer.WriteString("\n\n[PAYLOAD HASHES]\n")

	rows := make([]string, len(r.Hashes))
	for i, hash := range r.Hashes {
		rows[i] = hash.String()
	}

	buffer.WriteString(helper.FormatList(rows))
	buffer.WriteString("\n")

	return buffer.String()
}

type purgeResult struct {
	Domain types.Domain `json:"domain"`
	Hash   types.Hash   `json:"hash"`
}

func (r *purgeResult) GetOutput() string {
	return fmt.Sprintf("\n[PENDING MATCH PURGED]\n%s\n", helper.FormatKV([]string{
		fmt.Sprintf("Domain|%s", r.Domain),
		fmt.Sprintf("Hash|%s", r.Hash),
	}))
}

type pendingMatch struct {
	Hash          types.Hash       `json:"hash"`
	Confirmations []types.RouterID `json:"confirmations"`
	HasBody       bool             `json:"hasBody"`
}

type showResult struct {
	Domain  types.Domain   `json:"domain"`
	Matches []pendingMatch `json:"matches"`
}

func (r *showResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString(fmt.Sprintf("\n[PENDING MATCHES OF %s]\n", r.Domain))

	rows := make([]string, len(r.Matches)+1)
	rows[0] = "Hash|Body|Confirmations"

	for i, match := range r.Matches {
		rows[i+1] = fmt.Sprintf("%s|%t|%s", match.Hash, match.HasBody, joinRouters(match.Confirmations))
	}

	buffer.WriteString(helper.FormatList(rows))
	buffer.WriteString("\n")

	return buffer.String()
}

func joinRouters(ids []types.RouterID) string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}

	return strings.Join(out, ",")
}
