package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/0xPolygon/polygon-gateway/gateway"
	"github.com/0xPolygon/polygon-gateway/gateway/message"
	"github.com/0xPolygon/polygon-gateway/helper/hex"
	"github.com/0xPolygon/polygon-gateway/types"
	"github.com/hashicorp/go-hclog"
)

const maxErrorBodySize = 1024

var (
	_ gateway.InboundMessageHandler = (*webhookHandler)(nil)
	_ gateway.InboundMessageHandler = (*logHandler)(nil)
)

// WebhookRequest is the body posted to the inbound handler url for every executed message
type WebhookRequest struct {
	Domain  types.Domain `json:"domain"`
	Hash    types.Hash   `json:"hash"`
	Kind    string       `json:"kind"`
	Payload string       `json:"payload"`
}

// webhookHandler executes messages by posting them to an http endpoint.
// Any non 2xx response fails the execution.
type webhookHandler struct {
	url    string
	client *http.Client
	logger hclog.Logger
}

func newWebhookHandler(url string, timeout time.Duration, logger hclog.Logger) *webhookHandler {
	return &webhookHandler{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.Named("webhook"),
	}
}

func (h *webhookHandler) Handle(ctx context.Context, domain types.Domain, msg *message.Message) error {
	body, err := json.Marshal(&WebhookRequest{
		Domain:  domain,
		Hash:    msg.Hash(),
		Kind:    msg.Kind.String(),
		Payload: hex.EncodeToHex(msg.Payload),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("inbound handler request failed: %w", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		reason, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))

		return fmt.Errorf("inbound handler responded %d: %s", resp.StatusCode, bytes.TrimSpace(reason))
	}

	h.logger.Debug("message delivered", "domain", domain, "hash", msg.Hash())

	return nil
}

// logHandler accepts every message and only logs it
type logHandler struct {
	logger hclog.Logger
}

func (h *logHandler) Handle(_ context.Context, domain types.Domain, msg *message.Message) error {
	h.logger.Info("message executed", "domain", domain, "hash", msg.Hash(), "size", len(msg.Payload))

	return nil
}

// NewInboundHandler creates the handler described by config
func NewInboundHandler(config *InboundHandler, logger hclog.Logger) gateway.InboundMessageHandler {
	if config == nil || config.URL == "" {
		return &logHandler{logger: logger.Named("inbound")}
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}

	return newWebhookHandler(config.URL, timeout, logger)
}
