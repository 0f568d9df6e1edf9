package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewJobCmd создаёт группу команд для управления jobs.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage jobs",
	}

	cmd.AddCommand(
		newJobSubmitCmd(clientFn, outputFn),
		newJobStatusCmd(clientFn, outputFn),
		newJobListCmd(clientFn, outputFn),
		newJobWatchCmd(clientFn, outputFn),
	)

	return cmd
}

func newJobSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "submit USERNAME",
		Short: "Submit a new job for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			sr, err := client.Submit(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job submitted: %s", sr.JobID))
			out.Record([][2]string{
				{"JOB_ID", sr.JobID},
				{"STATUS_URL", sr.StatusURL},
			}, sr)
			return nil
		},
	}
}

func newJobStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status USERNAME JOB_ID",
		Short: "Show job status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.Status(args[0], args[1])
			if err != nil {
				return err
			}

			out.Record(jobFields(job), job)
			return nil
		},
	}
}

// jobFields собирает вертикальное представление одного job.
// RESULT присутствует только у COMPLETED, ERROR — только у FAILED;
// Record опускает пустые поля сам.
func jobFields(job *JobResponse) [][2]string {
	return [][2]string{
		{"JOB_ID", job.JobID},
		{"STATUS", job.Status},
		{"RESULT", string(job.Result)},
		{"ERROR", job.Error},
		{"CREATED", job.CreatedAt},
		{"UPDATED", job.UpdatedAt},
	}
}

func newJobListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list USERNAME",
		Short: "List jobs for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			lr, err := client.ListJobs(args[0])
			if err != nil {
				return err
			}

			headers := []string{"JOB_ID", "STATUS", "CREATED", "UPDATED"}
			rows := make([][]string, len(lr.Jobs))
			for i, j := range lr.Jobs {
				rows[i] = []string{j.JobID, j.Status, j.CreatedAt, j.UpdatedAt}
			}

			out.Table(headers, rows, lr)
			out.Success(fmt.Sprintf("Total: %s", strconv.Itoa(lr.Total)))
			return nil
		},
	}
}

func newJobWatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch USERNAME JOB_ID",
		Short: "Poll a job until it reaches a terminal status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			for {
				job, err := client.Status(args[0], args[1])
				if err != nil {
					return err
				}

				out.Success(fmt.Sprintf("%s  %s", time.Now().Format(time.TimeOnly), job.Status))

				if job.Status == "COMPLETED" || job.Status == "FAILED" {
					out.Record(jobFields(job), job)
					if job.Status == "FAILED" {
						return fmt.Errorf("job %s failed: %s", job.JobID, job.Error)
					}
					return nil
				}

				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(interval):
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")

	return cmd
}
