package main

import (
	"log"
	"log/slog"

	"wastewatch/internal/config"
	"wastewatch/internal/logging"
	"wastewatch/internal/photostore/local"
	"wastewatch/internal/service"
	"wastewatch/internal/store"
	"wastewatch/internal/vision"
	claudevision "wastewatch/internal/vision/claude"
	ollamavision "wastewatch/internal/vision/ollama"
	"wastewatch/internal/web"
)

func main() {
	cfg := config.Load()

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	entryStore, err := store.Open(cfg.DataPath, logger)
	if err != nil {
		logger.Error("failed to open entry store", "path", cfg.DataPath, "error", err)
		return
	}

	imageStore, err := local.NewLocalPhotoStore(cfg.ImagePath)
	if err != nil {
		logger.Error("failed to initialize image store", "error", err)
		return
	}

	analyzer := newVisionAnalyzer(cfg, logger)
	if analyzer == nil {
		return
	}

	wasteService := service.NewWasteService(entryStore, analyzer, imageStore, logger)
	server := web.NewServer(wasteService, logger, int64(cfg.MaxUploadMB)*1024*1024)

	if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
		logger.Error("server error", "error", err)
	}
}

func newVisionAnalyzer(cfg *config.Config, logger *slog.Logger) vision.Analyzer {
	switch cfg.VisionBackend {
	case "ollama":
		logger.Info("using Ollama vision backend", "model", cfg.OllamaModel)
		return ollamavision.NewOllamaAnalyzer(cfg.OllamaHost, cfg.OllamaModel)
	default:
		if cfg.ClaudeAPIKey == "" {
			logger.Error("CLAUDE_API_KEY is required when VISION_BACKEND=claude")
			return nil
		}
		logger.Info("using Claude vision backend", "model", cfg.ClaudeModel)
		return claudevision.NewClaudeAnalyzer(cfg.ClaudeAPIKey, cfg.ClaudeModel)
	}
}
