package signal

func (h *Hub) handlePing(conn *WsSignalConn) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	h.sendJSON(conn, resp)
}
