package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"
)

// TopicFunc maps a request to the topic its connection subscribes to.
// Returning false rejects the upgrade with 401.
type TopicFunc func(r *http.Request) (string, bool)

// HandleWebSocket upgrades authenticated requests and runs them as hub
// clients. originPatterns are passed to the library's origin check; empty
// means same-origin only.
func HandleWebSocket(hub *Hub, topic TopicFunc, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := topic(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			hub.logger.Warn("Websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		NewClient(hub, conn, key).Run(r.Context())
	}
}
