package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuafuller/httpu/internal/logging"
	"github.com/joshuafuller/httpu/transport"
)

func resolveCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "resolve ADDR",
		Short: "Resolve an address the way the transport does",
		Long: `Resolve ADDR ("host:port") to a socket address. Only the first
candidate is used by the transport; --all lists every candidate.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := transport.HostPort(args[0])
			out := cmd.OutOrStdout()

			addr, err := transport.ResolveAddr(src)
			if err != nil {
				return err
			}
			mode, err := transport.IPVersionModeFromAddr(addr)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "address:    %s\n", addr)
			fmt.Fprintf(out, "ip_version: %s\n", mode)
			if addr.Is6() {
				fmt.Fprintf(out, "scope_id:   %d\n", addr.ScopeID)
			}

			if all {
				candidates, err := src.SockAddrs()
				if err != nil {
					return err
				}
				for i, c := range candidates {
					fmt.Fprintf(out, "candidate[%d]: %s\n", i, c)
				}
			}

			a.logger.Debug("address resolved", "input", args[0], logging.KeyRemoteAddr, addr.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "List every candidate address")

	return cmd
}
