package jwt

import "ride-driver/internal/general/contracts"

// AuthFrame is the first frame a client sends over the realtime channel:
// { "type":"auth", "token":"Bearer <jwt>" }
func AuthFrame(token string) contracts.Frame {
	return contracts.Frame{Type: contracts.FrameAuth, Token: "Bearer " + StripBearer(token)}
}
