package wsutil

import "log/slog"

// SafeSend sends data to a client's send channel without panicking if the
// channel has been closed by the hub. Full or closed channels drop the
// message; a slow consumer must not stall the room.
func SafeSend(ch chan []byte, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("send to closed channel", "tag", "wsutil", "recovered", r)
		}
	}()
	select {
	case ch <- data:
	default:
	}
}
