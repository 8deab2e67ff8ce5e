package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskquest/taskquest-bot/internal/app"
	"github.com/taskquest/taskquest-bot/internal/infrastructure/scheduler"
)

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and run scheduled jobs",
	}
	cmd.AddCommand(jobsListCmd(), jobsRunCmd())
	return cmd
}

func jobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered jobs with their schedules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer env.close()

			sched, err := buildScheduler(env)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tSCHEDULE\tNEXT RUN\tDESCRIPTION")
			for _, j := range sched.ListJobs() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", j.Name, j.Schedule, j.NextRun.Format(time.DateTime), j.Description)
			}
			return w.Flush()
		},
	}
}

func jobsRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <name>",
		Short: "Run a job once, now",
		Example: `  taskctl jobs run daily_summary
  taskctl jobs run check_overdue_tasks`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer env.close()

			sched, err := buildScheduler(env)
			if err != nil {
				return err
			}
			res, err := sched.RunNow(cmd.Context(), args[0])
			if res.RunID != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "job %s run %s finished in %s\n", res.JobName, res.RunID, res.Duration.Round(time.Millisecond))
			}
			return err
		},
	}
}

func buildScheduler(env *environment) (*scheduler.Scheduler, error) {
	return app.NewScheduler(env.cfg, env.stores, env.svc, app.NewTelegramClient(env.cfg, env.log), env.log)
}
