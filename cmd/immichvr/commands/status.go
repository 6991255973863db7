package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Papyszoo/ImmichVR-sub001/pkg/apiclient"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check orchestrator health",
	Long: `Check the health of a running orchestrator.

Exit codes:
  0  server is healthy
  1  server is reachable but degraded
  2  server is unreachable

Examples:
  # Check the default address
  immichvr status

  # Check a remote instance
  immichvr status --server http://vr-host:3003`,
	Run: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) {
	client := apiclient.New(GetServerURL())

	report, err := client.Health()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Orchestrator unreachable at %s: %v\n", GetServerURL(), err)
		os.Exit(2)
	}

	fmt.Printf("Status: %s\n", report.Status)
	for key, value := range report.Detail {
		fmt.Printf("  %-12s %v\n", key, value)
	}

	if report.Status != "ok" {
		os.Exit(1)
	}
}
