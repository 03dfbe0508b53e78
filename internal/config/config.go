package config

import (
	"os"
	"strconv"
)

const defaultMaxUploadMB = 50

type Config struct {
	ListenAddr    string
	DataPath      string
	ImagePath     string
	VisionBackend string
	ClaudeAPIKey  string
	ClaudeModel   string
	OllamaHost    string
	OllamaModel   string
	MaxUploadMB   int
	LogLevel      string
	LogFile       string
}

func Load() *Config {
	return &Config{
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
		DataPath:      getEnv("DATA_PATH", "/data/wastewatch.json"),
		ImagePath:     getEnv("IMAGE_PATH", "/data/images"),
		VisionBackend: getEnv("VISION_BACKEND", "claude"),
		ClaudeAPIKey:  getEnv("CLAUDE_API_KEY", ""),
		ClaudeModel:   getEnv("CLAUDE_MODEL", "claude-opus-4-6"),
		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "moondream"),
		MaxUploadMB:   getEnvInt("MAX_UPLOAD_MB", defaultMaxUploadMB),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFile:       getEnv("LOG_FILE", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

// getEnvInt falls back to defaultVal when the variable is unset,
// non-numeric, or not positive.
func getEnvInt(key string, defaultVal int) int {
	val, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}
