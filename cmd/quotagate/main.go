package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/mdouchement/logger"
	"github.com/mdouchement/quotagate/internal/database"
	"github.com/mdouchement/quotagate/internal/quota"
	"github.com/mdouchement/quotagate/internal/scheduler"
	"github.com/mdouchement/quotagate/internal/signer"
	"github.com/mdouchement/quotagate/internal/storage"
	"github.com/mdouchement/quotagate/internal/sweeper"
	"github.com/mdouchement/quotagate/internal/webserver"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const dbname = "quotagate.db"

// 10 GiB default ceiling.
const defaultLimitBytes int64 = 10 << 30

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	binding string
	port    string
)

func main() {
	c := &cobra.Command{
		Use:     "quotagate",
		Short:   "Quota-enforced object-storage gateway",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    cobra.ExactArgs(0),
	}
	c.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Version for quotagate",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(c.Version)
		},
	})
	c.AddCommand(initCmd)
	c.AddCommand(reindexCmd)
	c.AddCommand(sweepCmd)

	serverCmd.Flags().StringVarP(&binding, "binding", "b", "0.0.0.0", "Server's binding")
	serverCmd.Flags().StringVarP(&port, "port", "p", "5000", "Server's port")
	c.AddCommand(serverCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

var (
	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			return database.StormInit(nameWithEnv("DATABASE_PATH", dbname))
		},
	}

	//

	reindexCmd = &cobra.Command{
		Use:   "reindex",
		Short: "Reindex the database and rebuild the usage counter",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := database.StormReIndex(nameWithEnv("DATABASE_PATH", dbname)); err != nil {
				return err
			}

			log, db, backend, err := dependencies()
			if err != nil {
				return err
			}
			defer db.Close()

			used, err := quota.NewCounter(db, backend, log).Rebuild()
			if err != nil {
				return errors.Wrap(err, "could not rebuild counter")
			}
			log.Infof("usage counter: %d bytes", used)
			return nil
		},
	}

	//

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Run one retention sweep pass",
		Args:  cobra.ExactArgs(0),
		RunE: func(_ *cobra.Command, _ []string) error {
			log, db, backend, err := dependencies()
			if err != nil {
				return err
			}
			defer db.Close()

			counter := quota.NewCounter(db, backend, log)
			result, err := sweeper.New(db, backend, counter, log).Sweep(time.Now())
			if err != nil {
				return errors.Wrap(err, "could not sweep")
			}

			log.Infof("retention sweep: %d objects, %d bytes freed", result.Deleted, result.FreedBytes)
			return nil
		},
	}

	//

	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Start server",
		Args:  cobra.ExactArgs(0),
		RunE: func(c *cobra.Command, _ []string) error {
			log, db, backend, err := dependencies()
			if err != nil {
				return err
			}
			defer db.Close()

			//

			limit, err := strconv.ParseInt(envORdefault("QUOTA_LIMIT_BYTES", strconv.FormatInt(defaultLimitBytes, 10)), 10, 64)
			if err != nil {
				return errors.Wrap(err, "QUOTA_LIMIT_BYTES")
			}

			counter := quota.NewCounter(db, backend, log)
			swp := sweeper.New(db, backend, counter, log)

			ctrl := webserver.Controller{
				Version:  c.Parent().Version,
				Logger:   log,
				Database: db,
				Storage:  backend,
				Counter:  counter,
				Gate:     quota.NewGate(counter, limit),
				Signer: &signer.Signer{
					AccessKey: os.Getenv("SIGNING_ACCESS_KEY"),
					SecretKey: os.Getenv("SIGNING_SECRET_KEY"),
					Region:    envORdefault("SIGNING_REGION", "auto"),
				},
				Sweeper: swp,
				//
				SweepToken: envORdefault("SWEEP_TOKEN", "cron"),
			}

			//

			scheduler.Start(scheduler.Controller{
				Logger:        log,
				Sweeper:       swp,
				Specification: envORdefault("SWEEP_SCHEDULE", "@every 1h"),
			})

			//

			engine := webserver.EchoEngine(ctrl)
			webserver.PrintRoutes(engine)

			listen := fmt.Sprintf("%s:%s", binding, port)
			log.Infof("Server listening on %s", listen)
			return errors.Wrap(
				engine.Start(listen),
				"could not run server",
			)
		},
	}
)

func dependencies() (logger.Logger, database.Client, storage.Backend, error) {
	l := logrus.New()
	l.SetFormatter(&logger.LogrusTextFormatter{
		DisableColors:   false,
		ForceColors:     true,
		ForceFormatting: true,
		PrefixRE:        regexp.MustCompile(`^(\[.*?\])\s`),
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log := logger.WrapLogrus(l)

	//

	db, err := database.StormOpen(nameWithEnv("DATABASE_PATH", dbname))
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "could not open database")
	}

	//

	backend, err := newBackend()
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}

	return log, db, backend, nil
}

func newBackend() (storage.Backend, error) {
	switch envORdefault("STORAGE_BACKEND", "file_system") {
	case "s3":
		return storage.NewS3(storage.S3Options{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			Region:    envORdefault("S3_REGION", "us-east-1"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    envORdefault("S3_BUCKET", "quotagate"),
		})
	default:
		return storage.NewFileSystem(envORdefault("STORAGE_PATH", "storage")), nil
	}
}

func nameWithEnv(env, name string) string {
	p := os.Getenv(env)
	if len(p) == 0 {
		return name
	}
	return filepath.Join(p, name)
}

func envORdefault(name, fallback string) string {
	p := os.Getenv(name)
	if len(p) == 0 {
		return fallback
	}
	return p
}
