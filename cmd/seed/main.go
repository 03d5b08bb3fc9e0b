// Command seed loads the doctor directory from a JSON file into the
// configured store. Existing doctors are updated in place.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"hospital-booking-api/internal/app"
	"hospital-booking-api/internal/config"
	"hospital-booking-api/internal/logging"
	"hospital-booking-api/internal/model"
	"hospital-booking-api/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	file := flag.String("file", "data/doctors.json", "doctors JSON file")
	flag.Parse()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	st, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Errorf("store: %v", err)
		return 1
	}
	defer st.Close()

	// writing through the cache drops stale directory entries
	doctors, closeCache := app.DoctorStore(st, cfg, log)
	defer closeCache()

	n, err := seed(ctx, doctors, *file, log)
	if err != nil {
		log.Errorf("seed: %v", err)
		return 1
	}
	fmt.Printf("Successfully seeded %d doctors into %s\n", n, st.Name())
	return 0
}

func seed(ctx context.Context, st store.DoctorStore, path string, log *logrus.Logger) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	var doctors []model.Doctor
	if err := json.Unmarshal(raw, &doctors); err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}

	for i := range doctors {
		d := &doctors[i]
		if d.ID == "" {
			return i, fmt.Errorf("doctor #%d has no doctor_id", i+1)
		}
		if err := st.UpsertDoctor(ctx, d); err != nil {
			return i, fmt.Errorf("upsert %s: %w", d.ID, err)
		}
		log.WithField("doctor_id", d.ID).Infof("added Dr. %s", d.Name)
	}
	return len(doctors), nil
}
