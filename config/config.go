package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the RAG engine.
type Config struct {
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	Rerank      RerankConfig      `yaml:"rerank"`
	Files       FilesConfig       `yaml:"files"`
	Retrieve    RetrieveConfig    `yaml:"retrieve"`
	Link        LinkConfig        `yaml:"link"`
	Timeouts    TimeoutsConfig    `yaml:"timeouts"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// VectorStoreConfig selects the vector database backend.
type VectorStoreConfig struct {
	Provider string       `yaml:"provider" validate:"oneof=bolt qdrant"`
	BoltPath string       `yaml:"bolt_path"` // Relative to the data dir unless absolute
	Qdrant   QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds connection details for a Qdrant server (gRPC port).
type QdrantConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port" validate:"min=0,max=65535"`
	APIKeyEnv string `yaml:"api_key_env"`
	UseTLS    bool   `yaml:"use_tls"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider          string  `yaml:"provider" validate:"oneof=ollama openai mock"`
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Dimension         int     `yaml:"dimension" validate:"min=1"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"` // 0 = unthrottled
}

// LLMConfig holds answer generation configuration.
type LLMConfig struct {
	Provider    string  `yaml:"provider" validate:"oneof=ollama openai extractive"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature" validate:"min=0,max=2"`
}

// RerankConfig holds reranker configuration.
type RerankConfig struct {
	Provider  string  `yaml:"provider" validate:"oneof=none cohere simple mmr"`
	Model     string  `yaml:"model"`
	APIKeyEnv string  `yaml:"api_key_env"`
	MMRLambda float64 `yaml:"mmr_lambda" validate:"min=0,max=1"`
}

// FilesConfig holds file store configuration.
type FilesConfig struct {
	UploadDir string   `yaml:"upload_dir"`
	IndexPath string   `yaml:"index_path"`
	Includes  []string `yaml:"includes"`
	Excludes  []string `yaml:"excludes"`
}

// RetrieveConfig holds query pipeline configuration.
type RetrieveConfig struct {
	Limit              int           `yaml:"limit" validate:"min=1"`
	RelevanceThreshold float64       `yaml:"relevance_threshold" validate:"gt=0,max=1"` // 0 would admit every hit
	MaxChunks          int           `yaml:"max_chunks" validate:"min=1"`
	ChunkChars         int           `yaml:"chunk_chars" validate:"min=1"`
	CacheSize          int           `yaml:"cache_size" validate:"min=0"` // 0 = disabled
	CacheTTL           time.Duration `yaml:"cache_ttl"`
}

// LinkConfig holds orchestrator configuration.
type LinkConfig struct {
	Concurrency int `yaml:"concurrency" validate:"min=1"`
}

// TimeoutsConfig bounds every call made through a port.
type TimeoutsConfig struct {
	Step time.Duration `yaml:"step"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=trace debug info warn error"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		VectorStore: VectorStoreConfig{
			Provider: "bolt",
			BoltPath: "vectors.db",
			Qdrant: QdrantConfig{
				Host:      "localhost",
				Port:      6334,
				APIKeyEnv: "QDRANT_API_KEY",
			},
		},
		Embedding: EmbeddingConfig{
			Provider:  "ollama",
			Model:     "mxbai-embed-large",
			BaseURL:   "http://localhost:11434",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1024,
		},
		LLM: LLMConfig{
			Provider:    "extractive",
			Model:       "llama3.2",
			BaseURL:     "http://localhost:11434",
			APIKeyEnv:   "OPENAI_API_KEY",
			Temperature: 0.0,
		},
		Rerank: RerankConfig{
			Provider:  "none",
			Model:     "rerank-english-v3.0",
			APIKeyEnv: "COHERE_API_KEY",
			MMRLambda: 0.7,
		},
		Files: FilesConfig{
			UploadDir: "uploads",
			IndexPath: "files.db",
			Includes:  []string{"**/*.md", "**/*.txt"},
			Excludes:  []string{"**/.git/**", "**/node_modules/**", "**/vendor/**"},
		},
		Retrieve: RetrieveConfig{
			Limit:              5,
			RelevanceThreshold: 0.5,
			MaxChunks:          3,
			ChunkChars:         150,
			CacheSize:          100,
			CacheTTL:           5 * time.Minute,
		},
		Link: LinkConfig{
			Concurrency: 4,
		},
		Timeouts: TimeoutsConfig{
			Step: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for rag.yaml).
// A .env file in the directory is loaded into the environment first so that
// api_key_env settings can resolve against it.
func LoadFromDir(dir string) (*Config, error) {
	if err := LoadEnv(dir); err != nil {
		return nil, err
	}

	// Try rag.yaml in the directory
	path := filepath.Join(dir, "rag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Try .rag/config.yaml
	path = filepath.Join(dir, ".rag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	// Return defaults
	return DefaultConfig(), nil
}

// LoadEnv loads dir/.env if present. Variables already set are not overridden.
func LoadEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration against its field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DataDir returns the directory holding local databases and uploads.
func DataDir(dir string) string {
	return filepath.Join(dir, ".rag")
}

// Resolve returns p unchanged when absolute, otherwise joined onto the data dir.
func Resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(DataDir(dir), p)
}

// EnsureDataDir ensures the .rag directory exists.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(DataDir(dir), 0755)
}
