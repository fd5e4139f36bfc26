package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xenking/chezflora/internal/app"
	"github.com/xenking/chezflora/internal/jobs"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run a maintenance job once",
}

func init() {
	for _, name := range []string{"low-stock", "cleanup-tokens"} {
		jobsCmd.AddCommand(&cobra.Command{
			Use:   name,
			Short: "Run the " + name + " job now",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runJob(cmd.Context(), name)
			},
		})
	}
	rootCmd.AddCommand(jobsCmd)
}

func runJob(ctx context.Context, name string) error {
	repos, pool, err := openRepositories(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	queue, err := app.NewMailQueue(lg, cfg.Mail)
	if err != nil {
		return err
	}
	queueCtx, stopQueue := context.WithCancel(context.WithoutCancel(ctx))
	queueDone := make(chan error, 1)
	go func() { queueDone <- queue.Run(queueCtx) }()

	var job *jobs.Job
	for _, j := range app.MaintenanceJobs(lg, repos, queue, cfg.Jobs) {
		if j.Name == name {
			job = &j
			break
		}
	}
	if job == nil {
		stopQueue()
		return errors.Errorf("unknown job %q", name)
	}

	runErr := job.Run(ctx)

	// Stopping the queue drains pending emails before Run returns.
	stopQueue()
	if err := <-queueDone; err != nil {
		lg.Error("Mail queue", zap.Error(err))
	}
	sent, failed, dropped := queue.Stats()
	lg.Info("Job finished",
		zap.String("job", name),
		zap.Int64("emails_sent", sent),
		zap.Int64("emails_failed", failed),
		zap.Int64("emails_dropped", dropped),
	)
	return errors.Wrapf(runErr, "job %s", name)
}
