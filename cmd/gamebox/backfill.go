package main

import (
	"context"
	"log/slog"

	"github.com/gamdit/gamebox/internal/dto"
	"github.com/urfave/cli/v2"
)

type job func(ctx context.Context, rt *runtime, limit int) (*dto.JobResult, error)

func jobParents(ctx context.Context, rt *runtime, limit int) (*dto.JobResult, error) {
	return rt.backfill.LinkParents(ctx, limit)
}

func jobSummaries(ctx context.Context, rt *runtime, limit int) (*dto.JobResult, error) {
	return rt.backfill.EnrichSummaries(ctx, limit)
}

// backfill runs one maintenance job against the configured database and exits.
func backfill(run job) cli.ActionFunc {
	return func(c *cli.Context) error {
		rt, err := newRuntime(c.Context)
		if err != nil {
			return err
		}
		defer rt.Close()

		res, err := run(c.Context, rt, c.Int("limit"))
		if err != nil {
			return err
		}
		slog.Info("backfill finished", "job", c.Command.Name, "processed", res.Processed, "updated", res.Updated)
		return nil
	}
}
