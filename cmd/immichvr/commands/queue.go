package commands

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Papyszoo/ImmichVR-sub001/internal/cli/output"
	"github.com/Papyszoo/ImmichVR-sub001/pkg/apiclient"
)

var (
	queueListStatus string
	queueListLimit  int
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the processing queue (list, stats, cancel, retry, worker)",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List processing jobs",
	Long: `List processing jobs, optionally filtered by status.

Examples:
  # List all jobs
  immichvr queue list

  # List failed jobs
  immichvr queue list --status failed`,
	RunE: runQueueList,
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate queue counters",
	RunE:  runQueueStats,
}

var queueCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a job still waiting in the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := apiclient.New(GetServerURL())
		if err := client.CancelJob(args[0]); err != nil {
			return err
		}
		fmt.Printf("Job %s cancelled\n", args[0])
		return nil
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Requeue a failed job with its attempts reset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := apiclient.New(GetServerURL())
		if err := client.RetryJob(args[0]); err != nil {
			return err
		}
		fmt.Printf("Job %s requeued\n", args[0])
		return nil
	},
}

var queueWorkerCmd = &cobra.Command{
	Use:   "worker <start|stop|status>",
	Short: "Control the background worker",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueWorker,
}

func init() {
	queueListCmd.Flags().StringVar(&queueListStatus, "status", "", "Filter by job status (queued, processing, completed, failed, cancelled)")
	queueListCmd.Flags().IntVar(&queueListLimit, "limit", 50, "Maximum number of jobs to list")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueStatsCmd)
	queueCmd.AddCommand(queueCancelCmd)
	queueCmd.AddCommand(queueRetryCmd)
	queueCmd.AddCommand(queueWorkerCmd)
}

func runQueueList(cmd *cobra.Command, args []string) error {
	client := apiclient.New(GetServerURL())

	jobs, err := client.ListJobs(queueListStatus, queueListLimit, 0)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	table := output.NewTableData("ID", "MEDIA", "STATUS", "ATTEMPTS", "QUEUED", "ERROR")
	for _, job := range jobs {
		table.AddRow(
			job.ID,
			job.MediaID,
			job.Status,
			fmt.Sprintf("%d/%d", job.Attempts, job.MaxAttempts),
			job.QueuedAt.Local().Format(time.RFC3339),
			truncate(job.LastError, 48),
		)
	}
	return output.PrintTable(os.Stdout, table)
}

func runQueueStats(cmd *cobra.Command, args []string) error {
	client := apiclient.New(GetServerURL())

	stats, err := client.QueueStats()
	if err != nil {
		return err
	}

	table := output.NewTableData("STATUS", "COUNT")
	table.AddRow("queued", strconv.FormatInt(stats.Queued, 10))
	table.AddRow("processing", strconv.FormatInt(stats.Processing, 10))
	table.AddRow("completed", strconv.FormatInt(stats.Completed, 10))
	table.AddRow("failed", strconv.FormatInt(stats.Failed, 10))
	table.AddRow("cancelled", strconv.FormatInt(stats.Cancelled, 10))
	table.AddRow("total", strconv.FormatInt(stats.Total, 10))
	return output.PrintTable(os.Stdout, table)
}

func runQueueWorker(cmd *cobra.Command, args []string) error {
	client := apiclient.New(GetServerURL())

	var status *apiclient.WorkerStatus
	var err error
	switch args[0] {
	case "start":
		status, err = client.StartWorker()
	case "stop":
		status, err = client.StopWorker()
	case "status":
		status, err = client.WorkerStatus()
	default:
		return fmt.Errorf("unknown worker action: %s (expected start, stop or status)", args[0])
	}
	if err != nil {
		return err
	}

	if status.Running {
		if status.CurrentJobID != "" {
			fmt.Printf("Worker running (processing job %s)\n", status.CurrentJobID)
		} else {
			fmt.Println("Worker running (idle)")
		}
	} else {
		fmt.Println("Worker stopped")
	}
	return nil
}

// truncate shortens a string for table display.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
