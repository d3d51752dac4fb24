package main

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/core/access"
	"github.com/trezcool/daftari/core/audit"
)

// startAuditPruner deletes audit entries older than conf.Audit.Retention on conf.Audit.PruneSchedule.
// A zero retention keeps everything.
func startAuditPruner(conf *core.Config, svc *audit.Service, logger core.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if conf.Audit.Retention <= 0 || conf.Audit.PruneSchedule == "" {
		return c, nil
	}

	_, err := c.AddFunc(conf.Audit.PruneSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		before := time.Now().UTC().Add(-conf.Audit.Retention)
		n, err := svc.Prune(ctx, access.System("cron"), before)
		if err != nil {
			logger.Error(fmt.Sprintf("pruning audit trail: %v", err), err)
			return
		}
		logger.Info(fmt.Sprintf("pruned %d audit entries older than %s", n, before.Format(time.RFC3339)))
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
