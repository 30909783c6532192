package cmd

import (
	"fmt"
	"net"
	"runtime"
	"sync"
	"toolshed/internal/api"
	"toolshed/internal/netmon"

	"github.com/spf13/cobra"
)

var netmonPort int

var netmonCmd = &cobra.Command{
	Use:   "netmon",
	Short: "Track the devices on the local network",
	Long: `Read the system ARP table, remember every device seen in it, and flag
devices that show up for the first time. Run with elevated privileges for the
most complete ARP table.`,
}

var netmonScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the ARP table once and list the devices found",
	Args:  cobra.NoArgs,
	RunE:  runNetmonScan,
}

var netmonServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Scan periodically and serve the network monitor API",
	Args:  cobra.NoArgs,
	RunE:  runNetmonServe,
}

func init() {
	netmonServeCmd.Flags().IntVar(&netmonPort, "port", 0, "Port to listen on (default from config)")

	netmonCmd.AddCommand(netmonScanCmd)
	netmonCmd.AddCommand(netmonServeCmd)
}

func newNetworkScanner() (*netmon.Scanner, error) {
	source, err := netmon.SourceFor(runtime.GOOS)
	if err != nil {
		return nil, err
	}

	scanner := &netmon.Scanner{
		Store:  netmon.OpenDeviceStore(cfg.Network.DevicesFile, logger),
		Source: source,
		Logger: logger,
	}
	if cfg.Network.ResolveHostnames {
		scanner.Resolver = net.DefaultResolver
	}
	return scanner, nil
}

func runNetmonScan(cmd *cobra.Command, args []string) error {
	scanner, err := newNetworkScanner()
	if err != nil {
		return err
	}

	devices, err := scanner.Scan(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to scan network: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(devices) == 0 {
		fmt.Fprintln(out, "No devices found in the ARP table.")
		return nil
	}

	table := newTable(out, "IP", "MAC", "Hostname", "Vendor", "Name", "First Seen")
	for _, d := range devices {
		hostname := "-"
		if d.Hostname != nil {
			hostname = *d.Hostname
		}
		mac := d.MAC
		if d.IsNew {
			mac += " " + warnStyle.Render("new")
		}
		table.Append([]string{d.IP, mac, hostname, d.Vendor, d.CustomName, d.FirstSeen})
	}
	table.Render()

	stats := scanner.Store.Stats(cfg.Network.OnlineTimeout())
	fmt.Fprintf(out, "\n%d device(s) seen, %d known, %d new\n", len(devices), stats.Total, stats.New)
	return nil
}

func runNetmonServe(cmd *cobra.Command, args []string) error {
	scanner, err := newNetworkScanner()
	if err != nil {
		return err
	}

	netCfg := cfg.Network
	if netmonPort != 0 {
		netCfg.Port = netmonPort
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	if netCfg.AutoScan {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scanner.Run(ctx, netCfg.ScanInterval())
		}()
	}

	server := api.NewNetworkServer(ctx, netCfg, scanner.Store, scanner, logger)
	return serve(ctx, "netmon", netCfg.Port, server.Handler())
}
