package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"go-vision-lens/internal/config"
	"go-vision-lens/internal/factory"
	"go-vision-lens/internal/ingest"
	"go-vision-lens/internal/logger"
	"go-vision-lens/internal/observer"
	"go-vision-lens/internal/presenter"
	"go-vision-lens/internal/service"
	"go-vision-lens/internal/session"
	"go-vision-lens/internal/strategy"
	"go-vision-lens/internal/vision"
)

func main() {
	var in, model, mode string
	var asJSON bool

	flag.StringVar(&in, "in", "", "input image path (jpg/png/gif/bmp/tiff/webp)")
	flag.StringVar(&model, "model", "", "model key from the registry (default from DEFAULT_MODEL)")
	flag.StringVar(&mode, "mode", "", "instruction mode: json|text (default from INSTRUCTION_MODE)")
	flag.BoolVar(&asJSON, "json", false, "print the result view as JSON")
	flag.Parse()

	if in == "" {
		log.Fatalf("usage: %s -in photo.jpg [-model flash|pro] [-mode json|text] [-json]", filepath.Base(os.Args[0]))
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.Configure(cfg.LogLevel)
	if !cfg.HasAPIKey() {
		log.Fatal("GEMINI_API_KEY must be set in the environment or .env")
	}
	if mode == "" {
		mode = cfg.InstructionMode
	}

	data, err := os.ReadFile(in)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", in, err)
	}

	registry, err := vision.NewRegistry(cfg.Models, cfg.DefaultModel)
	if err != nil {
		log.Fatal(err)
	}
	if model != "" && !registry.Has(model) {
		log.Fatalf("Unknown model %q", model)
	}

	instruction, err := factory.NewInstructionFactory().CreateInstruction(mode)
	if err != nil {
		log.Fatal(err)
	}

	client, err := vision.NewClient(vision.ClientOptions{
		BaseURL:    cfg.VisionBaseURL,
		APIVersion: cfg.VisionAPIVersion,
		Timeout:    cfg.AnalysisTimeout,
	})
	if err != nil {
		log.Fatal(err)
	}

	publisher := observer.NewEventPublisher()
	publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))

	svc, err := service.NewAnalysisService(service.Dependencies{
		Ingester: ingest.NewIngester(ingest.DefaultOptions().
			WithMaxSize(cfg.ImageMaxWidth, cfg.ImageMaxHeight).
			WithQuality(cfg.JPEGQuality)),
		Client:        client,
		Registry:      registry,
		Instructions:  strategy.NewInstructionContext(instruction),
		Publisher:     publisher,
		EnvCredential: cfg.GeminiAPIKey,
		Timeout:       cfg.AnalysisTimeout,
	})
	if err != nil {
		log.Fatal(err)
	}

	sess := session.NewManager(time.Hour, registry.DefaultKey()).Create()
	if model != "" {
		sess.SetModel(model)
	}

	view, analyzeErr := svc.Analyze(context.Background(), sess, data)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(view); err != nil {
			log.Fatal(err)
		}
	} else if err := presenter.RenderText(os.Stdout, view); err != nil {
		log.Fatal(err)
	}

	if analyzeErr != nil {
		fmt.Fprintln(os.Stderr, "analysis failed")
		os.Exit(1)
	}
}
