// Package app builds the configured storage backend, doctor cache and
// notification channel. It is shared by the server and the seeder.
package app

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/sirupsen/logrus"

	"hospital-booking-api/internal/cache"
	"hospital-booking-api/internal/config"
	"hospital-booking-api/internal/notify"
	"hospital-booking-api/internal/store"
	"hospital-booking-api/internal/store/dynamo"
	"hospital-booking-api/internal/store/postgres"
	"hospital-booking-api/internal/store/sqlite"
)

// OpenStore connects to the backend named by cfg.StoreDriver. SQL backends
// are migrated on open.
func OpenStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (store.Backend, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Info("connected to postgres")
		return st, nil

	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.WithField("path", cfg.SQLitePath).Info("opened sqlite")
		return st, nil

	case config.DriverDynamo:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		st := dynamo.New(dynamodb.NewFromConfig(awsCfg), dynamo.Tables{
			Users:        cfg.UsersTable,
			Doctors:      cfg.DoctorsTable,
			Appointments: cfg.AppointmentsTable,
		})
		if err := st.Ping(ctx); err != nil {
			return nil, err
		}
		log.WithField("region", cfg.AWSRegion).Info("connected to dynamodb")
		return st, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// DoctorStore puts the Redis cache in front of st when REDIS_URL is set.
// Writers must go through it too so upserts invalidate cached entries.
// The returned func closes the cache connection.
func DoctorStore(st store.DoctorStore, cfg *config.Config, log *logrus.Logger) (store.DoctorStore, func()) {
	if cfg.RedisURL == "" {
		return st, func() {}
	}
	c, err := cache.NewRedisCache(cfg.RedisURL)
	if err != nil {
		// the directory works without the cache
		log.WithError(err).Warn("redis unavailable, doctor cache disabled")
		return st, func() {}
	}
	log.Info("doctor cache enabled")
	return cache.NewDoctorStore(st, c, cfg.DoctorCacheTTL, log), func() { _ = c.Close() }
}

// NewSender builds the notification channel named by cfg.Notifier.
func NewSender(ctx context.Context, cfg *config.Config, log *logrus.Logger) (notify.Sender, error) {
	switch cfg.Notifier {
	case config.NotifierLog:
		log.Info("notifications are logged only")
		return notify.NewLogSender(log), nil

	case config.NotifierNATS:
		s, err := notify.NewNatsSender(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			return nil, err
		}
		log.WithField("subject", cfg.NATSSubject).Info("publishing notifications to nats")
		return s, nil

	case config.NotifierSNS:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("aws config: %w", err)
		}
		log.WithField("topic", cfg.SNSTopicARN).Info("publishing notifications to sns")
		return notify.NewSNSSender(sns.NewFromConfig(awsCfg), cfg.SNSTopicARN), nil
	}
	return nil, fmt.Errorf("unknown notifier %q", cfg.Notifier)
}
