package realtime

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
)

const Prefix = "/realtime"

// TokenVerifier checks an operator session token.
type TokenVerifier interface {
	Verify(token string) error
}

// NewHandler serves the SockJS endpoint under Prefix. Boards authenticate
// with the operator token, as a bearer header or the token query parameter.
// With a nil verifier every board is admitted.
func NewHandler(h *Hub, verifier TokenVerifier) http.Handler {
	return sockjs.NewHandler(Prefix, sockjs.DefaultOptions, func(session sockjs.Session) {
		if code, reason, ok := authorize(verifier, session.Request()); !ok {
			_ = session.Close(code, reason)
			return
		}

		client := &Client{ID: uuid.NewString(), Send: make(chan []byte, 16)}
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				h.UpdateSubscription(client, Subscription{})
				continue
			}
			h.UpdateSubscription(client, Subscription{Queue: parsed.Queue, EditionID: parsed.EditionID})
		}
	})
}

// authorize returns the close code and reason for a rejected session.
func authorize(verifier TokenVerifier, r *http.Request) (uint32, string, bool) {
	if verifier == nil {
		return 0, "", true
	}
	token := tokenFromRequest(r)
	if token == "" {
		return 4001, "missing token", false
	}
	if err := verifier.Verify(token); err != nil {
		return 4002, "invalid token", false
	}
	return 0, "", true
}

func tokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	if token := bearerToken(r.Header.Get("Authorization")); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func bearerToken(header string) string {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
