package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/chemsync/internal/inventory"
)

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Check credentials for both services",
		Long: `Connect to ChemInventory and datalab with the configured API keys and
print which inventory the ChemInventory key belongs to. The same checks run
before every sync.`,
		RunE: runWhoami,
	}
}

// whoamiResult is the connection check outcome.
type whoamiResult struct {
	InventoryURL    string `json:"inventory_url" yaml:"inventory_url"`
	InventoryNumber int64  `json:"inventory_number" yaml:"inventory_number"`
	InventoryName   string `json:"inventory_name" yaml:"inventory_name"`
	RegistryURL     string `json:"registry_url" yaml:"registry_url"`
	RegistryLatency string `json:"registry_latency" yaml:"registry_latency"`
}

type detailer interface {
	Details(ctx context.Context) (*inventory.Details, error)
}

type infoer interface {
	Info(ctx context.Context) error
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if err := cc.Cfg.RequireCredentials(); err != nil {
		return err
	}

	session, err := NewSession(cc.Cfg.Config, cc.Cfg.InventoryAPIKey, cc.Cfg.RegistryAPIKey, cc.Logger)
	if err != nil {
		return err
	}

	res, err := whoami(cmd.Context(), session.Inventory, session.Registry)
	if err != nil {
		return err
	}

	res.InventoryURL = cc.Cfg.Inventory.APIURL
	res.RegistryURL = cc.Cfg.Registry.APIURL

	return printWhoami(os.Stdout, cc.Flags.Output, res)
}

// whoami checks both services in the order a sync run does.
func whoami(ctx context.Context, inv detailer, reg infoer) (*whoamiResult, error) {
	details, err := inv.Details(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to inventory: %w", err)
	}

	start := time.Now()
	if err := reg.Info(ctx); err != nil {
		return nil, fmt.Errorf("connecting to registry: %w", err)
	}

	return &whoamiResult{
		InventoryNumber: details.InventoryNumber,
		InventoryName:   details.InventoryName,
		RegistryLatency: formatDuration(time.Since(start)),
	}, nil
}

func printWhoami(w io.Writer, format string, res *whoamiResult) error {
	if format != outputText {
		return writeStructured(w, format, res)
	}

	fmt.Fprintf(w, "Inventory: %s (#%d) at %s\n", res.InventoryName, res.InventoryNumber, res.InventoryURL)
	fmt.Fprintf(w, "Registry:  %s (responded in %s)\n", res.RegistryURL, res.RegistryLatency)

	return nil
}
