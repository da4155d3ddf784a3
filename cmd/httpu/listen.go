package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuafuller/httpu/internal/errors"
	"github.com/joshuafuller/httpu/internal/logging"
	"github.com/joshuafuller/httpu/transport"
)

func listenCmd(a *app) *cobra.Command {
	var (
		bind  string
		group string
		iface string
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print datagrams received on a shared UDP port",
		Long: `Bind with address reuse, join the multicast group and print every
datagram that arrives until interrupted. The group is left again on
SIGINT or SIGTERM. An empty --group reads unicast traffic only.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			flags := cmd.Flags()
			if flags.Changed("bind") {
				cfg.Listen.Bind = bind
			}
			if flags.Changed("group") {
				cfg.Listen.Group = group
			}
			if flags.Changed("iface") {
				cfg.Listen.Interface = iface
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			stopMetrics := a.serveMetrics()
			defer stopMetrics()

			conn, err := transport.BindReuse(transport.HostPort(cfg.Listen.Bind))
			if err != nil {
				return err
			}
			local, err := transport.SockAddrFromUDPAddr(conn.LocalAddr().(*net.UDPAddr))
			if err != nil {
				_ = conn.Close()
				return err
			}

			// The receiver is addressed at the group so anything written to
			// it reaches the other members. Without a group it is never
			// written to.
			dest := local
			var groupAddr netip.Addr
			var ifAddr transport.SockAddr
			if cfg.Listen.Group != "" {
				if groupAddr, err = cfg.GroupAddr(); err == nil {
					ifAddr, err = cfg.InterfaceAddr(groupAddr.Is6())
				}
				if err != nil {
					_ = conn.Close()
					return err
				}
				dest = transport.SockAddr{Addr: groupAddr, Port: local.Port, ScopeID: ifAddr.ScopeID}
			}

			r := transport.NewUDPSender(conn, dest)
			defer func() { _ = r.Close() }()

			if groupAddr.IsValid() {
				leave, err := a.join(conn, ifAddr, groupAddr)
				if err != nil {
					return err
				}
				defer leave()
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Unblock the pending read once a signal arrives.
			unblock := context.AfterFunc(ctx, func() {
				_ = r.SetReadDeadline(time.Now())
			})
			defer unblock()

			fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", local)
			return a.receive(ctx, cmd.OutOrStdout(), r)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&bind, "bind", "", "Local address to bind (host:port)")
	flags.StringVar(&group, "group", "", "Multicast group to join")
	flags.StringVar(&iface, "iface", "", "Interface address or name for the group membership")

	return cmd
}

// join joins group and returns a function that leaves it again.
func (a *app) join(conn *net.UDPConn, iface transport.SockAddr, group netip.Addr) (func(), error) {
	family := "ipv4"
	if group.Is6() {
		family = "ipv6"
	}
	m := a.metrics()

	if err := transport.JoinMulticast(conn, iface, group); err != nil {
		return nil, err
	}
	m.RecordMulticast("join", family)
	a.logger.Info("joined multicast group",
		logging.KeyGroup, group.String(),
		logging.KeyInterface, iface.String())

	return func() {
		if err := transport.LeaveMulticast(conn, iface, group); err != nil {
			a.logger.Warn("failed to leave multicast group",
				logging.KeyGroup, group.String(),
				logging.KeyError, err)
			return
		}
		m.RecordMulticast("leave", family)
		a.logger.Info("left multicast group", logging.KeyGroup, group.String())
	}, nil
}

// receive prints datagrams until ctx is done.
func (a *app) receive(ctx context.Context, out io.Writer, r *transport.UDPSender) error {
	m := a.metrics()
	for {
		packet, src, ifIndex, err := r.ReadPacket(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			m.RecordReceiveError()
			return err
		}
		m.RecordReceived(len(packet))
		printDatagram(out, packet, src, ifIndex)
	}
}

func printDatagram(out io.Writer, packet []byte, src net.Addr, ifIndex int) {
	via := "unknown interface"
	if ifIndex > 0 {
		via = fmt.Sprintf("interface %d", ifIndex)
		if ifi, err := net.InterfaceByIndex(ifIndex); err == nil {
			via = ifi.Name
		}
	}
	fmt.Fprintf(out, "--- %s from %s via %s\n%s\n", humanize.Bytes(uint64(len(packet))), src, via, packet)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.IsNetworkError(err) && stderrors.As(err, &netErr) && netErr.Timeout()
}
