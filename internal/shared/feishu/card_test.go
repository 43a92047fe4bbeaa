package feishu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOutboundCard(t *testing.T) {
	card := NewOutboundCard(OutboundCardInfo{Event: "return", DeviceName: "魔镜-05", Destination: "上海展厅", Operator: "孙七", Summary: "纸张 EPSON-L8058 A4 x25"})
	require.NotNil(t, card.Header)
	assert.Equal(t, "green", card.Header.Template)
	assert.Len(t, card.Elements, 3)

	card = NewOutboundCard(OutboundCardInfo{Event: "create", DeviceName: "魔镜-05"})
	assert.Equal(t, "blue", card.Header.Template)
	assert.Len(t, card.Elements, 1)
}

func TestSendCard(t *testing.T) {
	var tokenCalls int32
	var gotChat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/app_access_token/internal"):
			atomic.AddInt32(&tokenCalls, 1)
			w.Write([]byte(`{"code":0,"msg":"ok","app_access_token":"t-123","expire":7200}`))
		case r.URL.Path == "/open-apis/im/v1/messages":
			if r.Header.Get("Authorization") != "Bearer t-123" {
				w.Write([]byte(`{"code":99991663,"msg":"invalid token"}`))
				return
			}
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			gotChat, _ = body["receive_id"].(string)
			w.Write([]byte(`{"code":0,"msg":"ok","data":{"message_id":"om_1"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient("cli_x", "secret")
	client.SetBaseURL(srv.URL)

	card := NewOutboundCard(OutboundCardInfo{Event: "create", DeviceName: "魔镜-05"})
	require.NoError(t, client.SendCard(context.Background(), "oc_ops", card))
	require.NoError(t, client.SendCard(context.Background(), "oc_ops", card))

	assert.Equal(t, "oc_ops", gotChat)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

func TestSendCardAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/app_access_token/internal") {
			w.Write([]byte(`{"code":0,"app_access_token":"t-1","expire":7200}`))
			return
		}
		w.Write([]byte(`{"code":230002,"msg":"bot not in chat"}`))
	}))
	defer srv.Close()

	client := NewClient("cli_x", "secret")
	client.SetBaseURL(srv.URL)

	err := client.SendCard(context.Background(), "oc_ops", InteractiveCard{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "230002")
}
