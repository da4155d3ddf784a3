package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/joshuafuller/httpu/internal/logging"
	"github.com/joshuafuller/httpu/transport"
)

func sendCmd(a *app) *cobra.Command {
	var (
		to          string
		port        uint16
		bind        string
		count       int
		interval    time.Duration
		payloadFile string
		wait        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a datagram through a UDP connector",
		Long: `Bind a connector, connect it to the destination and send the payload
as one datagram per repetition. Without --payload-file an SSDP M-SEARCH
for ssdp:all is sent.

With --wait, replies arriving on the bound port are printed until the
wait expires.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("to") {
				cfg.Send.Host = to
			}
			if flags.Changed("port") {
				cfg.Send.Port = port
			}
			if flags.Changed("bind") {
				cfg.Transport.Bind = bind
			}
			if flags.Changed("count") {
				cfg.Send.Count = count
			}
			if flags.Changed("interval") {
				cfg.Send.Interval = interval
			}
			if flags.Changed("payload-file") {
				cfg.Send.PayloadFile = payloadFile
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			payload, err := loadPayload(cfg.Send.PayloadFile, cfg.Send.Host, cfg.Send.Port)
			if err != nil {
				return err
			}

			stopMetrics := a.serveMetrics()
			defer stopMetrics()

			c, err := transport.NewUDPConnector(transport.HostPort(cfg.Transport.Bind), a.connectorOptions()...)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			local, err := c.LocalAddr()
			if err != nil {
				return err
			}
			mode, err := cfg.IPVersionMode()
			if err != nil {
				return err
			}
			if !mode.Matches(local) {
				return fmt.Errorf("bound address %s does not match ip_version %s", local, mode)
			}

			s, err := c.Connect(cfg.Send.Host, cfg.Send.Port)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()
			peer, _ := s.PeerAddr()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			limiter := rate.NewLimiter(rate.Every(cfg.Send.Interval), 1)
			for i := 0; i < cfg.Send.Count; i++ {
				if err := limiter.Wait(ctx); err != nil {
					return err
				}
				if err := transport.Send(s, transport.NewPacketBuffer(payload)); err != nil {
					return err
				}
				a.logger.Debug("datagram sent",
					logging.KeyLocalAddr, local.String(),
					logging.KeyRemoteAddr, peer.String(),
					logging.KeyBytes, len(payload),
					logging.KeyCount, i+1)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sent %d datagram(s) of %s from %s to %s\n",
				cfg.Send.Count, humanize.Bytes(uint64(len(payload))), local, peer)

			if wait > 0 {
				return printReplies(ctx, out, s, wait)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&to, "to", "", "Destination host (IP literal of the bound family)")
	flags.Uint16Var(&port, "port", transport.SSDPPort, "Destination port")
	flags.StringVar(&bind, "bind", "", "Local address to bind (host:port)")
	flags.IntVar(&count, "count", 1, "Number of datagrams to send")
	flags.DurationVar(&interval, "interval", time.Second, "Delay between datagrams")
	flags.StringVar(&payloadFile, "payload-file", "", "File whose contents are sent as the datagram")
	flags.DurationVar(&wait, "wait", 0, "Print replies for this long after sending")

	return cmd
}

func loadPayload(path, host string, port uint16) ([]byte, error) {
	if path == "" {
		return mSearch(host, port), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return data, nil
}

// mSearch builds a discovery request for every device and service.
func mSearch(host string, port uint16) []byte {
	return []byte("M-SEARCH * HTTP/1.1\r\n" +
		"HOST: " + net.JoinHostPort(host, strconv.Itoa(int(port))) + "\r\n" +
		"MAN: \"ssdp:discover\"\r\n" +
		"MX: 2\r\n" +
		"ST: ssdp:all\r\n" +
		"\r\n")
}

// printReplies prints datagrams read from s until wait elapses.
func printReplies(ctx context.Context, out io.Writer, s *transport.UDPSender, wait time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	for {
		packet, src, ifIndex, err := s.ReadPacket(ctx)
		if err != nil {
			if ctx.Err() != nil || isTimeout(err) {
				return nil
			}
			return err
		}
		printDatagram(out, packet, src, ifIndex)
	}
}
