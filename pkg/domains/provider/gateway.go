package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/zapdesk/pkg/config"
	"github.com/zapdesk/pkg/entities"
)

// GatewayClient talks to the externally-hosted WhatsApp gateway over
// HTTP. Every call carries a short timeout so a dead gateway never
// blocks the event path.
type GatewayClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewGatewayClient(cfg config.Gateway) *GatewayClient {
	return &GatewayClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout()},
	}
}

type gatewaySendRequest struct {
	Number   string `json:"number"`
	Text     string `json:"text,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Caption  string `json:"caption,omitempty"`
	QuotedID string `json:"quoted_id,omitempty"`
}

type gatewaySendResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
	MessageTimestamp int64 `json:"messageTimestamp"`
}

func (g *GatewayClient) SendText(ctx context.Context, instance *entities.Instance, toJID, content, quotedID string) (Result, error) {
	return g.post(ctx, instance, "/message/sendText", gatewaySendRequest{
		Number:   toJID,
		Text:     content,
		QuotedID: quotedID,
	})
}

func (g *GatewayClient) SendMedia(ctx context.Context, instance *entities.Instance, toJID string, media Media) (Result, error) {
	return g.post(ctx, instance, "/message/sendMedia", gatewaySendRequest{
		Number:   toJID,
		MediaURL: media.URL,
		MimeType: media.MimeType,
		FileName: media.FileName,
		Caption:  media.Caption,
	})
}

func (g *GatewayClient) MarkRead(ctx context.Context, instance *entities.Instance, remoteJID string, messageIDs []string) error {
	body := map[string]any{
		"remote_jid":  remoteJID,
		"message_ids": messageIDs,
	}
	_, err := g.request(ctx, instance, "/chat/markMessageAsRead", body)
	return err
}

// CreateSession provisions the instance on the hosted gateway and
// returns its external identifier.
func (g *GatewayClient) CreateSession(ctx context.Context, instance *entities.Instance, webhookURL string) (string, error) {
	raw, err := g.request(ctx, instance, "/instance/create", map[string]any{
		"instance_name": instance.Name,
		"webhook_url":   webhookURL,
	})
	if err != nil {
		return "", err
	}
	var resp struct {
		InstanceID string `json:"instance_id"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("failed to decode gateway response: %v", err)
	}
	return resp.InstanceID, nil
}

// DeleteSession removes the instance session from the hosted gateway.
func (g *GatewayClient) DeleteSession(ctx context.Context, instance *entities.Instance) error {
	_, err := g.request(ctx, instance, "/instance/delete", map[string]any{
		"instance_id": instance.ExternalID,
	})
	return err
}

func (g *GatewayClient) post(ctx context.Context, instance *entities.Instance, path string, body gatewaySendRequest) (Result, error) {
	raw, err := g.request(ctx, instance, path, body)
	if err != nil {
		return Result{}, err
	}

	var resp gatewaySendResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Result{}, fmt.Errorf("failed to decode gateway response: %v", err)
	}
	if resp.Key.ID == "" {
		return Result{}, fmt.Errorf("gateway returned no message id")
	}

	ts := time.Now()
	if resp.MessageTimestamp > 0 {
		ts = time.Unix(resp.MessageTimestamp, 0)
	}
	return Result{ProviderMessageID: resp.Key.ID, Timestamp: ts}, nil
}

func (g *GatewayClient) request(ctx context.Context, instance *entities.Instance, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s%s/%s", g.baseURL, path, instance.ExternalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", g.apiKey)

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %v", err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}
