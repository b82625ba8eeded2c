package bridge

import (
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/Conceptual-Machines/melody-bridge/internal/config"
	"github.com/Conceptual-Machines/melody-bridge/internal/logger"
	"github.com/Conceptual-Machines/melody-bridge/internal/osc"
)

const sendTimeout = 2 * time.Second

// Notifier sends one-shot datagrams to the controller. Nothing is retried
// and nothing is awaited beyond the local write.
type Notifier struct {
	addr   string
	format string
}

// NewNotifier targets addr ("host:port"). format selects how Send frames
// replies: config.ReplyFormatJSON writes raw JSON, config.ReplyFormatOSC
// wraps it in a /json packet.
func NewNotifier(addr, format string) *Notifier {
	return &Notifier{addr: addr, format: format}
}

// Addr returns the destination address.
func (n *Notifier) Addr() string {
	return n.addr
}

// Send marshals msg and writes it using the configured reply format.
func (n *Notifier) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	if n.format == config.ReplyFormatOSC {
		data = osc.Encode(osc.JSONAddress, string(data))
	}
	return n.write(data)
}

// Notify sends {"event": event, "data": data} as a /json packet, which is
// what the controller's udpreceive object expects for events.
func (n *Notifier) Notify(event string, data map[string]any) error {
	body, err := json.Marshal(map[string]any{"event": event, "data": data})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.write(osc.Encode(osc.JSONAddress, string(body)))
}

func (n *Notifier) write(data []byte) error {
	conn, err := net.Dial("udp", n.addr)
	if err != nil {
		return fmt.Errorf("send to controller at %s: %w", n.addr, err)
	}
	defer conn.Close()

	if err := conn.SetWriteDeadline(time.Now().Add(sendTimeout)); err != nil {
		return fmt.Errorf("send to controller at %s: %w", n.addr, err)
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("send to controller at %s: %w", n.addr, err)
	}

	logger.Debug("Datagram sent", logger.WithDatagram(conn.RemoteAddr(), len(data)))
	return nil
}
