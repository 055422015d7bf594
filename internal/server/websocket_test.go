package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/qrscan/internal/testutil"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestWebSocket(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/detect/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readWSResponse(t *testing.T, conn *websocket.Conn) WSDetectResponse {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var resp WSDetectResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

func TestWebSocketDetect(t *testing.T) {
	srv := newTestServer(t)
	conn := dialTestWebSocket(t, srv)

	img := testutil.RenderQR(t, "ws-payload", 200)
	req := WSDetectRequest{Type: "detect", Image: encodePNG(t, img)}
	require.NoError(t, conn.WriteJSON(req))

	// Progress events stream first, the completed message ends the
	// exchange.
	sawProgress := false
	for {
		resp := readWSResponse(t, conn)
		require.NotEqual(t, "error", resp.Type, "unexpected error: %s", resp.Error)

		if resp.Status == "processing" {
			sawProgress = true
			assert.LessOrEqual(t, resp.Progress, 1.0)
			continue
		}

		require.Equal(t, "completed", resp.Status)
		require.NotNil(t, resp.Result)

		result, ok := resp.Result.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, true, result["detected"])
		assert.Equal(t, "ws-payload", result["payload"])
		break
	}
	assert.True(t, sawProgress)
}

func TestWebSocketHasCode(t *testing.T) {
	srv := newTestServer(t)
	conn := dialTestWebSocket(t, srv)

	img := testutil.RenderQR(t, "ws-presence", 200)
	req := WSDetectRequest{Type: "has_code", Image: encodePNG(t, img)}
	require.NoError(t, conn.WriteJSON(req))

	resp := readWSResponse(t, conn)
	require.Equal(t, "completed", resp.Status)

	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, result["has_code"])
}

func TestWebSocketInvalidRequest(t *testing.T) {
	srv := newTestServer(t)
	conn := dialTestWebSocket(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	resp := readWSResponse(t, conn)
	assert.Equal(t, "error", resp.Type)
	assert.Equal(t, "invalid_request", resp.ErrorType)
}

func TestWebSocketMissingImage(t *testing.T) {
	srv := newTestServer(t)
	conn := dialTestWebSocket(t, srv)

	require.NoError(t, conn.WriteJSON(WSDetectRequest{Type: "detect"}))

	resp := readWSResponse(t, conn)
	assert.Equal(t, "error", resp.Type)
	assert.Contains(t, resp.Error, "No image data")
}

func TestWebSocketUnsupportedType(t *testing.T) {
	srv := newTestServer(t)
	conn := dialTestWebSocket(t, srv)

	img := testutil.RenderQR(t, "x", 100)
	require.NoError(t, conn.WriteJSON(WSDetectRequest{Type: "pdf", Image: encodePNG(t, img)}))

	resp := readWSResponse(t, conn)
	assert.Equal(t, "error", resp.Type)
	assert.Contains(t, resp.Error, "Unsupported request type")
}
