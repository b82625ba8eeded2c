package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/Conceptual-Machines/melody-bridge/internal/logger"
)

// ReplayOptions select which captured datagrams are replayed.
type ReplayOptions struct {
	Port  int  // Destination UDP port to match; 0 matches every port
	Paced bool // Sleep between packets to honour capture timestamps
}

// ReplayPCAP feeds UDP payloads from a pcap or pcapng capture to handler as
// if they had arrived on the socket. It returns the number of datagrams
// delivered.
func ReplayPCAP(ctx context.Context, path string, handler DatagramHandler, opts ReplayOptions) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var source *gopacket.PacketSource
	if ng, err := pcapgo.NewNgReader(f, pcapgo.NgReaderOptions{}); err == nil {
		source = gopacket.NewPacketSource(ng, ng.LinkType())
	} else {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return 0, err
		}
		r, err := pcapgo.NewReader(f)
		if err != nil {
			return 0, fmt.Errorf("open capture %s: %w", path, err)
		}
		source = gopacket.NewPacketSource(r, r.LinkType())
	}

	delivered := 0
	var prevTS time.Time
	for {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}

		pkt, err := source.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return delivered, err
		}

		udp, ok := pkt.TransportLayer().(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if opts.Port != 0 && int(udp.DstPort) != opts.Port {
			continue
		}

		ts := pkt.Metadata().CaptureInfo.Timestamp
		if opts.Paced && !prevTS.IsZero() {
			if d := ts.Sub(prevTS); d > 0 {
				time.Sleep(d)
			}
		}
		prevTS = ts

		handler.HandleDatagram(ctx, udp.Payload, sourceAddr(pkt, udp))
		delivered++
	}

	logger.Info("Capture replay finished", logger.Fields{"path": path, "datagrams": delivered})
	return delivered, nil
}

func sourceAddr(pkt gopacket.Packet, udp *layers.UDP) net.Addr {
	addr := &net.UDPAddr{Port: int(udp.SrcPort)}
	switch ip := pkt.NetworkLayer().(type) {
	case *layers.IPv4:
		addr.IP = ip.SrcIP
	case *layers.IPv6:
		addr.IP = ip.SrcIP
	}
	return addr
}
