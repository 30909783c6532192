package cmd

import (
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"toolshed/internal/api"
	"toolshed/internal/models"
	"toolshed/internal/ports"

	"github.com/spf13/cobra"
)

var (
	portsStart int
	portsEnd   int
	portsRange string
	portsPort  int
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Show which processes hold listening TCP ports",
	Long: `List the TCP ports in LISTEN state with the owning process, and compare
them with the expectations recorded in the port preferences file.`,
}

var portsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the listening ports",
	Args:  cobra.NoArgs,
	RunE:  runPortsList,
}

var portsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the port resolver API",
	Args:  cobra.NoArgs,
	RunE:  runPortsServe,
}

func init() {
	portsListCmd.Flags().IntVar(&portsStart, "start", 1, "Lowest port to show")
	portsListCmd.Flags().IntVar(&portsEnd, "end", 65535, "Highest port to show")
	portsListCmd.Flags().StringVar(&portsRange, "range", "", "Show only a configured scan range by name (e.g. Development)")
	portsServeCmd.Flags().IntVar(&portsPort, "port", 0, "Port to listen on (default from config)")

	portsCmd.AddCommand(portsListCmd)
	portsCmd.AddCommand(portsServeCmd)
}

func newPortScanner() (*ports.Scanner, error) {
	source, err := ports.SourceFor(runtime.GOOS)
	if err != nil {
		return nil, err
	}
	return &ports.Scanner{Source: source, Logger: logger}, nil
}

func findRange(name string) (models.PortRange, error) {
	for _, r := range cfg.Ports.ScanRanges {
		if r.Name == name {
			return r, nil
		}
	}
	return models.PortRange{}, fmt.Errorf("unknown scan range %q", name)
}

func runPortsList(cmd *cobra.Command, args []string) error {
	start, end := portsStart, portsEnd
	if portsRange != "" {
		r, err := findRange(portsRange)
		if err != nil {
			return err
		}
		start, end = r.Start, r.End
	}

	scanner, err := newPortScanner()
	if err != nil {
		return err
	}
	prefs, err := ports.OpenPreferences(cfg.Ports.PreferencesFile)
	if err != nil {
		return err
	}

	listening, err := scanner.Scan(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list ports: %w", err)
	}
	listening = ports.FilterRange(listening, start, end)

	out := cmd.OutOrStdout()
	if len(listening) == 0 {
		fmt.Fprintf(out, "No listening ports between %d and %d.\n", start, end)
		return nil
	}

	expected := make(map[int]models.PortConflict)
	for _, c := range ports.Conflicts(listening, prefs.All()) {
		expected[c.Actual.Port] = c
	}

	table := newTable(out, "Port", "PID", "Process", "User", "Expected")
	for _, p := range listening {
		note := ""
		if c, ok := expected[p.Port]; ok {
			note = c.Expected.Name
			if c.Mismatch {
				note = errStyle.Render(fmt.Sprintf("%s (wants %s)", c.Expected.Name, c.Expected.Process))
			}
		}
		table.Append([]string{strconv.Itoa(p.Port), strconv.Itoa(p.PID), p.Process, p.User, note})
	}
	table.Render()
	return nil
}

func runPortsServe(cmd *cobra.Command, args []string) error {
	scanner, err := newPortScanner()
	if err != nil {
		return err
	}
	prefs, err := ports.OpenPreferences(cfg.Ports.PreferencesFile)
	if err != nil {
		return err
	}

	portsCfg := cfg.Ports
	if portsPort != 0 {
		portsCfg.Port = portsPort
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner.Run(ctx, portsCfg.RefreshInterval())
	}()

	server := api.NewPortServer(portsCfg, scanner, prefs, logger)
	return serve(ctx, "ports", portsCfg.Port, server.Handler())
}
