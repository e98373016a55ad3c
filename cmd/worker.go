package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/backstage/services/analytics/internal/messaging"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that ingests records from Azure Service Bus and keeps the aggregate cache warm`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := newComponents(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Azure.QueueConnStr != "" {
		consumer, err := messaging.NewConsumer(cfg.Azure, c.metrics)
		if err != nil {
			return err
		}
		defer func() {
			if err := consumer.Close(context.Background()); err != nil {
				log.Warn().Err(err).Msg("Failed to close Service Bus client")
			}
		}()

		processor := messaging.NewProcessor(c.ingest)
		g.Go(func() error {
			return consumer.Run(ctx, processor)
		})
	} else {
		log.Warn().Msg("Azure Service Bus connection string not set, queue ingestion disabled")
	}

	if c.cache.Enabled() && cfg.Worker.WarmupInterval > 0 {
		g.Go(func() error {
			scheduler, err := gocron.NewScheduler()
			if err != nil {
				return err
			}

			_, err = scheduler.NewJob(
				gocron.DurationJob(cfg.Worker.WarmupInterval),
				gocron.NewTask(func() {
					if err := c.analytics.WarmCache(ctx); err != nil {
						log.Error().Err(err).Msg("Failed to warm aggregate cache")
					}
				}),
				gocron.WithStartAt(gocron.WithStartImmediately()),
				gocron.WithSingletonMode(gocron.LimitModeReschedule),
			)
			if err != nil {
				return err
			}

			log.Info().Dur("interval", cfg.Worker.WarmupInterval).Msg("Starting cache warm-up job")
			scheduler.Start()

			<-ctx.Done()
			return scheduler.Shutdown()
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
