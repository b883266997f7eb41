package main

import (
	"errors"

	"github.com/iliria/erp-backend/internal/media"
	"github.com/iliria/erp-backend/pkg/bootstrap"
	"github.com/iliria/erp-backend/pkg/pubsub"
	"github.com/iliria/erp-backend/pkg/storage/gcs"
)

// media-worker deletes product images from the bucket once the product row
// is gone.
func main() {
	proc := bootstrap.Start("media-worker")
	ctx, cfg, logg := proc.Context(), proc.Config, proc.Log

	gcsClient, err := gcs.NewClient(ctx, cfg.GCS, cfg.GCP, logg)
	proc.Must("connect storage", err)
	proc.Defer("storage", gcsClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	proc.Must("connect pubsub", err)
	proc.Defer("pubsub", pubsubClient.Close)
	subscription := pubsubClient.MediaSubscription()
	if subscription == nil {
		proc.Must("resolve media subscription", errors.New("ILIRIA_PUBSUB_MEDIA_SUBSCRIPTION is empty"))
	}

	cleanup, err := media.NewImageCleanup(subscription, gcsClient, logg)
	proc.Must("build image cleanup", err)

	logg.Info(logg.WithField(ctx, "bucket", gcsClient.DefaultBucket()), "starting media worker")
	proc.Exit(cleanup.Run(ctx))
}
