// Package cache puts an optional Redis read-through cache in front of the
// doctor directory. Redis failures degrade to the backing store.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"hospital-booking-api/internal/metrics"
	"hospital-booking-api/internal/model"
	"hospital-booking-api/internal/store"
)

const (
	allDoctorsKey = "doctors:all"
	doctorKey     = "doctors:"

	// bounds a shared load once detached from the caller that started it
	loadTimeout = 10 * time.Second
)

type doctorStore struct {
	next  store.DoctorStore
	cache Cache
	ttl   time.Duration
	sf    singleflight.Group
	log   *logrus.Logger
}

// NewDoctorStore wraps next with cache. Lookups that miss are collapsed per
// key so a cold cache sends one query per key to the store.
func NewDoctorStore(next store.DoctorStore, cache Cache, ttl time.Duration, log *logrus.Logger) store.DoctorStore {
	return &doctorStore{next: next, cache: cache, ttl: ttl, log: log}
}

func (d *doctorStore) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	var cached []model.Doctor
	if d.lookup(ctx, allDoctorsKey, &cached) {
		if cached == nil {
			cached = []model.Doctor{}
		}
		return cached, nil
	}

	v, err := d.shared(ctx, allDoctorsKey, func(ctx context.Context) (interface{}, error) {
		list, err := d.next.ListDoctors(ctx)
		if err != nil {
			return nil, err
		}
		d.fill(ctx, allDoctorsKey, list)
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Doctor), nil
}

func (d *doctorStore) DoctorByID(ctx context.Context, id string) (*model.Doctor, error) {
	key := doctorKey + id
	var cached model.Doctor
	if d.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	v, err := d.shared(ctx, key, func(ctx context.Context) (interface{}, error) {
		doc, err := d.next.DoctorByID(ctx, id)
		if err != nil {
			// absence is not cached; the seeder may add the doctor later
			return nil, err
		}
		d.fill(ctx, key, doc)
		return doc, nil
	})
	if err != nil {
		return nil, err
	}
	doc := *v.(*model.Doctor)
	return &doc, nil
}

func (d *doctorStore) UpsertDoctor(ctx context.Context, doc *model.Doctor) error {
	if err := d.next.UpsertDoctor(ctx, doc); err != nil {
		return err
	}
	if err := d.cache.Delete(ctx, allDoctorsKey, doctorKey+doc.ID); err != nil {
		d.log.WithError(err).WithField("doctor_id", doc.ID).Warn("doctor cache invalidation failed")
	}
	return nil
}

// shared runs load once per key for all concurrent callers. The load does
// not inherit the first caller's cancellation, so one client going away
// cannot fail the others; each caller still stops waiting on its own ctx.
func (d *doctorStore) shared(ctx context.Context, key string, load func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := d.sf.DoChan(key, func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return load(lctx)
	})
	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// lookup reports a hit. Errors other than a miss are logged and treated as
// a miss.
func (d *doctorStore) lookup(ctx context.Context, key string, dest interface{}) bool {
	err := d.cache.GetJSON(ctx, key, dest)
	switch {
	case err == nil:
		metrics.DoctorCacheRequests.WithLabelValues("hit").Inc()
		return true
	case errors.Is(err, ErrMiss):
		metrics.DoctorCacheRequests.WithLabelValues("miss").Inc()
	default:
		metrics.DoctorCacheRequests.WithLabelValues("error").Inc()
		d.log.WithError(err).WithField("key", key).Warn("doctor cache read failed")
	}
	return false
}

func (d *doctorStore) fill(ctx context.Context, key string, value interface{}) {
	if err := d.cache.SetJSON(ctx, key, value, d.ttl); err != nil {
		d.log.WithError(err).WithField("key", key).Warn("doctor cache write failed")
	}
}
