package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/innovites/cableaudit/internal/bootstrap"
	"github.com/innovites/cableaudit/internal/domain/model"
)

func (a *app) submitCommand() *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Create a validation job, exactly as POST /design-validations would",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := in.request(cmd.InOrStdin())
			if err != nil {
				return err
			}
			svc, db, err := jobService(a.logger, &a.cfg)
			if err != nil {
				return err
			}
			defer closeQuietly(a.logger, "database", db)

			resp, err := svc.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	in.register(cmd)
	return cmd
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Print the status view of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, db, err := jobService(a.logger, &a.cfg)
			if err != nil {
				return err
			}
			defer closeQuietly(a.logger, "database", db)

			resp, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func (a *app) statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print job counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, db, err := jobService(a.logger, &a.cfg)
			if err != nil {
				return err
			}
			defer closeQuietly(a.logger, "database", db)

			stats, err := svc.Stats(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STATUS\tCOUNT")
			fmt.Fprintf(tw, "PENDING\t%d\n", stats.Pending)
			fmt.Fprintf(tw, "SUCCESS\t%d\n", stats.Success)
			fmt.Fprintf(tw, "FAILED\t%d\n", stats.Failed)
			return tw.Flush()
		},
	}
}

func (a *app) reapCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Run a single reaper pass: fail stale pending jobs and prune old results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := connectDB(a.logger, &a.cfg)
			if err != nil {
				return err
			}
			defer closeQuietly(a.logger, "database", db)

			runner, err := bootstrap.NewReaperRunner(bootstrap.ReaperConfig{
				DB:     db,
				Logger: a.logger,
				Config: a.cfg.Reaper,
			})
			if err != nil {
				return err
			}
			res, err := runner.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"failed stale pending: %d\ndeleted succeeded: %d\ndeleted failed: %d\n",
				res.FailedPending, res.DeletedSucceeded, res.DeletedFailed)
			return err
		},
	}
}

func (a *app) listCommand() *cobra.Command {
	var (
		status string
		mode   string
		limit  int
		offset int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var opts model.JobListOptions
			if status != "" {
				s := model.JobStatus(strings.ToUpper(status))
				opts.Status = &s
			}
			if mode != "" {
				m := model.InputMode(strings.ToLower(mode))
				opts.InputMode = &m
			}
			opts.Limit = limit
			opts.Offset = offset

			svc, db, err := jobService(a.logger, &a.cfg)
			if err != nil {
				return err
			}
			defer closeQuietly(a.logger, "database", db)

			jobs, err := svc.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			return printJobTable(cmd.OutOrStdout(), jobs)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status: PENDING, SUCCESS, FAILED")
	cmd.Flags().StringVar(&mode, "mode", "", "filter by input mode: free_text, structured")
	cmd.Flags().IntVar(&limit, "limit", model.DefaultJobListLimit, "maximum rows to print")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func printJobTable(w io.Writer, jobs []model.JobSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODE\tSTATUS\tATTEMPTS\tCREATED\tERROR")
	for _, j := range jobs {
		errMsg := "-"
		if j.Error != nil {
			errMsg = *j.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			j.JobID, j.InputMode, j.JobStatus, j.AttemptCount, j.CreatedAt.Format(time.RFC3339), errMsg)
	}
	return tw.Flush()
}
