package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"spx-studio/internal/plans"
	"spx-studio/internal/websocket"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestServeWsHandler_RejectsMissingOrBadToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rr := httptest.NewRecorder()
	testServer.ServeWsHandler(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/ws?token=not-a-jwt", nil)
	rr = httptest.NewRecorder()
	testServer.ServeWsHandler(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestServeWsHandler_PushesEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	srv := *testServer
	srv.wsHub = hub

	ts := httptest.NewServer(http.HandlerFunc(srv.ServeWsHandler))
	defer ts.Close()

	u := newTestUser(t, plans.Free)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "?token=" + u.Token
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount(u.User.ID) == 1 }, 2*time.Second, 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/storage/folders", jsonBody(t, CreateFolderRequest{Path: "/live"}))
	rr := serve(&srv, http.MethodPost, "/api/v1/storage/folders", srv.CreateFolderHandler, authed(req, u))
	require.Equal(t, http.StatusCreated, rr.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var event struct {
		EventType string           `json:"event_type"`
		Payload   ItemEventPayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg, &event))
	require.Equal(t, "item_created", event.EventType)
	require.Equal(t, "/live", event.Payload.Path)
}
