package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zapdesk/pkg/config"
	"github.com/zapdesk/pkg/entities"
)

func gatewayFixture(t *testing.T, handler http.HandlerFunc) (*GatewayClient, *entities.Instance) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewGatewayClient(config.Gateway{
		BaseURL:    server.URL,
		APIKey:     "test-key",
		TimeoutSec: 5,
	})
	return client, &entities.Instance{Name: "hosted", ExternalID: "ext-1"}
}

func TestGatewaySendText(t *testing.T) {
	client, instance := gatewayFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/message/sendText/ext-1", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("apikey"))

		var body gatewaySendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "5511999998888@s.whatsapp.net", body.Number)
		assert.Equal(t, "olá", body.Text)

		json.NewEncoder(w).Encode(map[string]any{
			"key":              map[string]string{"id": "GW-MSG-1"},
			"messageTimestamp": 1700000000,
		})
	})

	result, err := client.SendText(context.Background(), instance, "5511999998888@s.whatsapp.net", "olá", "")
	require.NoError(t, err)
	assert.Equal(t, "GW-MSG-1", result.ProviderMessageID)
	assert.Equal(t, time.Unix(1700000000, 0), result.Timestamp)
}

func TestGatewaySendMediaCarriesCaption(t *testing.T) {
	client, instance := gatewayFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/message/sendMedia/ext-1", r.URL.Path)

		var body gatewaySendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://cdn.example.com/a.jpg", body.MediaURL)
		assert.Equal(t, "legenda", body.Caption)

		json.NewEncoder(w).Encode(map[string]any{"key": map[string]string{"id": "GW-MEDIA-1"}})
	})

	result, err := client.SendMedia(context.Background(), instance, "5511999998888@s.whatsapp.net", Media{
		URL:      "https://cdn.example.com/a.jpg",
		MimeType: "image/jpeg",
		Caption:  "legenda",
	})
	require.NoError(t, err)
	assert.Equal(t, "GW-MEDIA-1", result.ProviderMessageID)
}

func TestGatewaySendRejectsMissingMessageID(t *testing.T) {
	client, instance := gatewayFixture(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"key": map[string]string{}})
	})

	_, err := client.SendText(context.Background(), instance, "jid", "olá", "")
	assert.Error(t, err)
}

func TestGatewayErrorStatusSurfacesBody(t *testing.T) {
	client, instance := gatewayFixture(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream down"))
	})

	_, err := client.SendText(context.Background(), instance, "jid", "olá", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestGatewayCreateSession(t *testing.T) {
	client, instance := gatewayFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/create/ext-1", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hosted", body["instance_name"])
		assert.Equal(t, "https://app.example.com/api/v1/webhook/9", body["webhook_url"])

		json.NewEncoder(w).Encode(map[string]string{"instance_id": "ext-created"})
	})

	externalID, err := client.CreateSession(context.Background(), instance, "https://app.example.com/api/v1/webhook/9")
	require.NoError(t, err)
	assert.Equal(t, "ext-created", externalID)
}

func TestGatewayMarkRead(t *testing.T) {
	var received map[string]any
	client, instance := gatewayFixture(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/markMessageAsRead/ext-1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte("{}"))
	})

	err := client.MarkRead(context.Background(), instance, "5511999998888@s.whatsapp.net", []string{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, "5511999998888@s.whatsapp.net", received["remote_jid"])
	assert.Len(t, received["message_ids"], 2)
}
