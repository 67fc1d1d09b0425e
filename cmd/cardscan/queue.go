package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/CardScan/internal/config"
	"github.com/dharsanguruparan/CardScan/internal/database"
	"github.com/dharsanguruparan/CardScan/internal/model"
	"github.com/dharsanguruparan/CardScan/internal/qr"
	"github.com/dharsanguruparan/CardScan/internal/queue"
	"github.com/dharsanguruparan/CardScan/internal/repository"
	"github.com/dharsanguruparan/CardScan/internal/s3storage"
)

func newSubmitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <image>",
		Short: "Upload a card image and queue it for the decode worker",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, log, err := setup(opts)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			path := args[0]
			mtype, err := mimetype.DetectFile(path)
			if err != nil {
				return fmt.Errorf("detect content type: %w", err)
			}
			if !qr.IsImage(mtype) {
				return fmt.Errorf("%s is %s, not an image", path, mtype.String())
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open image: %w", err)
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return fmt.Errorf("stat image: %w", err)
			}

			store, err := s3storage.New(cfg)
			if err != nil {
				return err
			}
			if err := store.EnsureBuckets(ctx); err != nil {
				return err
			}
			repo, closeRepo, err := openRepository(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeRepo()

			scanID := uuid.NewString()
			objectKey := fmt.Sprintf("scans/%s/%s", scanID, filepath.Base(path))
			if err := store.UploadRaw(ctx, objectKey, f, info.Size(), mtype.String()); err != nil {
				return err
			}
			scan := &model.Scan{ID: scanID, FileName: filepath.Base(path), ObjectKey: objectKey}
			if err := repo.Create(ctx, scan); err != nil {
				return err
			}

			client := asynq.NewClient(redisOpt(cfg))
			defer client.Close()
			payload := queue.DecodePayload{
				ScanID:          scanID,
				ObjectKey:       objectKey,
				FileName:        scan.FileName,
				ContinueOnError: cfg.ContinueOnError || opts.continueOnError,
			}
			if err := queue.EnqueueDecode(ctx, client, payload); err != nil {
				return err
			}
			log.Info("scan queued", zap.String("scan_id", scanID), zap.String("object_key", objectKey))
			fmt.Fprintln(cmd.OutOrStdout(), scanID)
			return nil
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	var linkTTL time.Duration
	cmd := &cobra.Command{
		Use:   "status <scan-id>",
		Short: "Show the state of a submitted scan and its report",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(opts)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			repo, closeRepo, err := openRepository(cmd, cfg)
			if err != nil {
				return err
			}
			defer closeRepo()
			scan, err := repo.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s (%s)\n", scan.ID, scan.Status, scan.FileName)
			switch scan.Status {
			case model.StatusCompleted:
				fmt.Fprint(out, scan.Report)
				if linkTTL > 0 && scan.ProcessedKey != nil {
					store, err := s3storage.New(cfg)
					if err != nil {
						return err
					}
					link, err := store.PresignProcessedURL(cmd.Context(), *scan.ProcessedKey, linkTTL)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, link)
				}
			case model.StatusFailed:
				if scan.ErrorMessage != nil {
					return fmt.Errorf("scan %s failed: %s", scan.ID, *scan.ErrorMessage)
				}
				return fmt.Errorf("scan %s failed", scan.ID)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&linkTTL, "link", 0, "Also print a presigned download link for the report, valid this long")
	return cmd
}

func openRepository(cmd *cobra.Command, cfg *config.Config) (*repository.ScanRepository, func(), error) {
	pool, err := database.Connect(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := database.EnsureSchema(cmd.Context(), pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repository.NewScanRepository(pool), pool.Close, nil
}

func redisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}
