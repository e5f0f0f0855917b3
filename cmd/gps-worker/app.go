package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rafiff23/Mahligai-GPS/config"
	"github.com/rafiff23/Mahligai-GPS/internal/blobstore"
	"github.com/rafiff23/Mahligai-GPS/internal/blobstore/diskblob"
	"github.com/rafiff23/Mahligai-GPS/internal/services/reconcile"
	"github.com/rafiff23/Mahligai-GPS/internal/storage/pgfleet"
)

type workerFactories struct {
	newStorage   func(cfg *config.Config) (repo reconcile.Repository, closeFn func(), err error)
	newBlobStore func(cfg *config.Config) (blobstore.Store, error)
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (reconcile.Repository, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgfleet.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newBlobStore: func(cfg *config.Config) (blobstore.Store, error) {
			dir := cfg.Blob.Dir
			if dir == "" {
				dir = "./blobs"
			}
			return diskblob.New(dir)
		},
	}
}

func RunGPSWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	scanInterval := time.Duration(cfg.GPS.WorkerScanIntervalSeconds) * time.Second
	if scanInterval <= 0 {
		scanInterval = 10 * time.Minute
	}
	minAge := time.Duration(cfg.GPS.WorkerOrphanMinAgeSeconds) * time.Second
	if minAge <= 0 {
		minAge = 30 * time.Minute
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	blobs, err := f.newBlobStore(cfg)
	if err != nil {
		return err
	}

	rec := reconcile.New(repo, blobs).WithSettings(scanInterval, minAge)

	httpAddr := cfg.GPS.WorkerHTTPAddr
	if httpAddr == "" {
		httpAddr = ":8082"
	}
	go func() {
		err := runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    httpAddr,
			swaggerPath: os.Getenv("swaggerPath"),
			rec:         rec,
			cfg:         cfg,
		})
		if err != nil && err != context.Canceled {
			slog.Error("worker http server stopped", "err", err)
		}
	}()

	return rec.Run(ctx)
}
