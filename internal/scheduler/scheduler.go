package scheduler

import (
	"context"
	"time"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/padbank/internal/blobstore"
	"github.com/mdouchement/padbank/internal/database"
	"github.com/mdouchement/padbank/internal/storage"
	"github.com/robfig/cron/v3"
)

// DefaultGrace is the age under which an unreferenced blob is kept,
// leaving in-flight imports the time to insert their bank.
const DefaultGrace = time.Hour

// A Controller is an Iversion Of Control pattern used to init the scheduler package.
type Controller struct {
	Logger        logger.Logger
	Database      database.Client
	Blobs         *blobstore.Store
	Storage       storage.Backend
	Specification string
	Grace         time.Duration
}

// A Report summarizes a maintenance run.
type Report struct {
	Swept int
	Usage int64
}

// Start lauches the scheduler asynchronously. The returned cron must be stopped by the caller.
func Start(c Controller) *cron.Cron {
	cron := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))

	log := c.Logger.WithPrefix("[scheduler]")

	_, err := cron.AddFunc(c.Specification, func() {
		if _, err := Maintain(context.Background(), c); err != nil {
			log.Error(err)
		}
	})
	if err != nil {
		panic(err)
	}
	log.Info("Maintenance task registred")

	cron.Start()
	log.Info("Scheduler is running")
	return cron
}

// Maintain sweeps orphan blobs, reconciles the quota ledger and cleans the archive storage.
func Maintain(ctx context.Context, c Controller) (*Report, error) {
	log := c.Logger.WithPrefix("[maintenance]")
	report := &Report{}

	grace := c.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}

	var err error
	report.Swept, err = Sweep(ctx, c.Database, c.Blobs, grace)
	if err != nil {
		return report, err
	}
	if report.Swept > 0 {
		log.Infof("Removed %d orphan blob(s)", report.Swept)
	}

	report.Usage, err = c.Blobs.Reconcile()
	if err != nil {
		return report, err
	}

	if c.Storage != nil {
		log.Info("Storage cleanup")
		if err = c.Storage.Cleanup(ctx); err != nil {
			return report, err
		}
	}
	return report, nil
}

// Sweep deletes the blobs no pad references anymore and older than grace.
func Sweep(ctx context.Context, db database.Client, blobs *blobstore.Store, grace time.Duration) (int, error) {
	banks, err := db.ListBanks()
	if err != nil {
		return 0, err
	}

	referenced := map[string]bool{}
	for _, bank := range banks {
		for _, pad := range bank.Pads {
			referenced[pad.AudioRef] = true
			referenced[pad.ImageRef] = true
		}
	}

	records, err := db.AllBlobs()
	if err != nil {
		return 0, err
	}

	deadline := time.Now().Add(-grace)
	swept := 0
	for _, blob := range records {
		if err = ctx.Err(); err != nil {
			return swept, err
		}
		if referenced[blob.OwnerID] {
			continue
		}
		if blob.CreatedAt != nil && blob.CreatedAt.After(deadline) {
			continue
		}

		if err = blobs.Delete(blob.OwnerID, blob.Kind); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}
