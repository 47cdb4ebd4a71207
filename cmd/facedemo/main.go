// Command facedemo exercises the library against real providers. It loads
// credentials from the environment (or a .env file), enables every provider
// that is configured, then runs an availability check and both create flows
// on the image file given as the first argument.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/atticlab/libface"
	"github.com/atticlab/libface/config"
	"github.com/atticlab/libface/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load(".env")

	if len(os.Args) < 2 {
		return fmt.Errorf("usage: facedemo <image file>")
	}

	logger, err := observability.New(getEnv("LOG_LEVEL", "debug"), getEnv("LOG_FORMAT", "text"))
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	rec := libface.New(logger)

	if appID := os.Getenv("KAIROS_APP_ID"); appID != "" {
		err := rec.EnableKairos(config.Kairos{
			ApplicationID:  appID,
			ApplicationKey: os.Getenv("KAIROS_APP_KEY"),
			GalleryName:    getEnv("KAIROS_GALLERY", "default"),
			Limit:          getEnvInt("KAIROS_LIMIT", 10),
		})
		if err != nil {
			return fmt.Errorf("enable kairos: %w", err)
		}
	}

	if token := os.Getenv("VISIONLABS_TOKEN"); token != "" {
		err := rec.EnableVisionLabs(config.VisionLabs{
			Token:            token,
			DescriptorListID: os.Getenv("VISIONLABS_DESCRIPTOR_LIST"),
			PersonListID:     os.Getenv("VISIONLABS_PERSON_LIST"),
			Limit:            getEnvInt("VISIONLABS_LIMIT", 10),
		})
		if err != nil {
			return fmt.Errorf("enable visionlabs: %w", err)
		}
	}

	if token := os.Getenv("FINDFACE_TOKEN"); token != "" {
		err := rec.EnableFindFace(config.FindFace{
			Token:       token,
			GalleryName: getEnv("FINDFACE_GALLERY", "default"),
			Limit:       getEnvInt("FINDFACE_LIMIT", 10),
		})
		if err != nil {
			return fmt.Errorf("enable findface: %w", err)
		}
	}

	if len(rec.ServiceIDs()) == 0 {
		return fmt.Errorf("no providers configured, set KAIROS_APP_ID, VISIONLABS_TOKEN or FINDFACE_TOKEN")
	}

	raw, err := os.ReadFile(os.Args[1])
	if err != nil {
		return err
	}
	image := base64.StdEncoding.EncodeToString(raw)

	ctx := context.Background()

	for id, up := range rec.CheckServicesAvailability(ctx) {
		name, _ := rec.ServiceNameByID(id)
		logger.Info("availability", zap.String("service", name), zap.Bool("up", up))
	}

	responses, err := rec.Create(ctx, image)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	for id, resp := range responses {
		name, _ := rec.ServiceNameByID(id)
		logger.Info("created", zap.String("service", name), zap.String("face_id", resp.FaceID))
	}

	async, err := rec.CreateAsync(ctx, image)
	if err != nil {
		return fmt.Errorf("create async: %w", err)
	}
	for id, resp := range async {
		name, _ := rec.ServiceNameByID(id)
		logger.Info("recognized concurrently",
			zap.String("service", name), zap.String("face_id", resp.FaceID))
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
