package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ledgerscan/internal/normalize"
	"ledgerscan/internal/scoring"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Upload    UploadConfig
	Log       LogConfig
	Provider  ProvidersConfig
	Pipeline  PipelineConfig
	Scoring   ScoringConfig
	Normalize NormalizeConfig
	CORS      CORSConfig
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ProviderConfig holds settings for a single model backend.
type ProviderConfig struct {
	Provider     string `mapstructure:"provider"`
	APIKey       string `mapstructure:"api_key"`
	DefaultModel string `mapstructure:"default_model"`
	BaseURL      string `mapstructure:"base_url"`
	TimeoutSecs  int    `mapstructure:"timeout_secs"`
}

// ProvidersConfig holds the ordered backend chain.
type ProvidersConfig struct {
	Primary   ProviderConfig `mapstructure:"primary"`
	Secondary ProviderConfig `mapstructure:"secondary"`
	Tertiary  ProviderConfig `mapstructure:"tertiary"`
}

// PrimaryConfig returns the primary provider config.
func (p *ProvidersConfig) PrimaryConfig() *ProviderConfig {
	return &p.Primary
}

// SecondaryConfig returns the secondary provider config, or nil if not configured.
func (p *ProvidersConfig) SecondaryConfig() *ProviderConfig {
	if p.Secondary.Provider != "" {
		return &p.Secondary
	}
	return nil
}

// TertiaryConfig returns the tertiary provider config, or nil if not configured.
func (p *ProvidersConfig) TertiaryConfig() *ProviderConfig {
	if p.Tertiary.Provider != "" {
		return &p.Tertiary
	}
	return nil
}

// Chain returns the configured providers in fallback order.
func (p *ProvidersConfig) Chain() []*ProviderConfig {
	chain := []*ProviderConfig{p.PrimaryConfig()}
	if s := p.SecondaryConfig(); s != nil {
		chain = append(chain, s)
	}
	if t := p.TertiaryConfig(); t != nil {
		chain = append(chain, t)
	}
	return chain
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JWTConfig holds bearer token verification settings. An empty secret
// disables authentication outside production.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// StorageConfig selects the blob backend and the hash index.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // local | s3 | gcs
	Index   string `mapstructure:"index"`   // bolt | postgres
	Local   LocalStorageConfig
	S3      S3Config
	GCS     GCSConfig
}

// LocalStorageConfig holds filesystem storage settings.
type LocalStorageConfig struct {
	BasePath  string `mapstructure:"base_path"`
	IndexPath string `mapstructure:"index_path"`
}

// S3Config holds AWS S3 settings.
type S3Config struct {
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// GCSConfig holds Google Cloud Storage settings.
type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	CredentialsFile string `mapstructure:"credentials_file"`
	Endpoint        string `mapstructure:"endpoint"`
}

// UploadConfig holds upload validation limits.
type UploadConfig struct {
	MaxFileSizeMB int64 `mapstructure:"max_file_size_mb"`
}

// MaxBytes returns the upload size limit in bytes.
func (u UploadConfig) MaxBytes() int64 {
	return u.MaxFileSizeMB * 1024 * 1024
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PipelineConfig holds orchestrator and worker settings.
type PipelineConfig struct {
	MaxAttempts                      int           `mapstructure:"max_attempts"`
	BackoffBase                      time.Duration `mapstructure:"backoff_base"`
	BackoffMax                       time.Duration `mapstructure:"backoff_max"`
	ProviderTimeout                  time.Duration `mapstructure:"provider_timeout"`
	LeaseTTL                         time.Duration `mapstructure:"lease_ttl"`
	PollInterval                     time.Duration `mapstructure:"poll_interval"`
	Concurrency                      int           `mapstructure:"concurrency"`
	ProcessOnUpload                  bool          `mapstructure:"process_on_upload"`
	FallbackClassificationConfidence float64       `mapstructure:"fallback_classification_confidence"`
	WorkerID                         string        `mapstructure:"worker_id"`
}

// ScoringConfig holds the scoring constants exposed to operators.
type ScoringConfig struct {
	ProviderWeight            float64 `mapstructure:"provider_weight"`
	ValidityWeight            float64 `mapstructure:"validity_weight"`
	ConsistencyWeight         float64 `mapstructure:"consistency_weight"`
	FieldThreshold            float64 `mapstructure:"field_threshold"`
	DocumentThreshold         float64 `mapstructure:"document_threshold"`
	MandatoryThreshold        float64 `mapstructure:"mandatory_threshold"`
	MandatoryWeight           float64 `mapstructure:"mandatory_weight"`
	MissingProviderConfidence float64 `mapstructure:"missing_provider_confidence"`
}

// NormalizeConfig holds normalization defaults.
type NormalizeConfig struct {
	DefaultDateOrder string `mapstructure:"default_date_order"`
	DefaultCurrency  string `mapstructure:"default_currency"`
	MaskPII          bool   `mapstructure:"mask_pii"`
	MaskChar         string `mapstructure:"mask_char"`
	ShowLast         int    `mapstructure:"show_last"`
}

// ScoringConfig converts the operator settings into an immutable scorer config.
func (c *Config) ScoringConfig() scoring.Config {
	sc := scoring.DefaultConfig()
	sc.Default = scoring.Weights{
		Provider:    c.Scoring.ProviderWeight,
		Validity:    c.Scoring.ValidityWeight,
		Consistency: c.Scoring.ConsistencyWeight,
	}
	sc.FieldThreshold = c.Scoring.FieldThreshold
	sc.DocumentThreshold = c.Scoring.DocumentThreshold
	sc.MandatoryThreshold = c.Scoring.MandatoryThreshold
	sc.MandatoryWeight = c.Scoring.MandatoryWeight
	sc.MissingProviderConfidence = c.Scoring.MissingProviderConfidence
	return sc
}

// NormalizeOptions converts the normalization settings.
func (c *Config) NormalizeOptions() (normalize.Options, error) {
	order, err := normalize.ParseDateOrder(c.Normalize.DefaultDateOrder)
	if err != nil {
		return normalize.Options{}, err
	}
	opts := normalize.Options{
		DefaultDateOrder: order,
		DefaultCurrency:  strings.ToUpper(c.Normalize.DefaultCurrency),
		MaskPII:          c.Normalize.MaskPII,
		ShowLast:         c.Normalize.ShowLast,
	}
	if r := []rune(c.Normalize.MaskChar); len(r) > 0 {
		opts.MaskChar = r[0]
	}
	return opts, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	if err := c.ScoringConfig().Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if _, err := c.NormalizeOptions(); err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	if c.Normalize.DefaultCurrency != "" && !normalize.IsCurrencyCode(c.Normalize.DefaultCurrency) {
		return fmt.Errorf("normalize: unknown default currency %q", c.Normalize.DefaultCurrency)
	}
	if c.Server.Environment == "production" && c.JWT.Secret == "" {
		return fmt.Errorf("jwt: secret is required in production")
	}
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("pipeline: max attempts must be at least 1")
	}
	if c.Pipeline.LeaseTTL <= 0 {
		return fmt.Errorf("pipeline: lease ttl must be positive")
	}
	switch c.Storage.Backend {
	case "local", "s3", "gcs":
	default:
		return fmt.Errorf("storage: unknown backend %q", c.Storage.Backend)
	}
	switch c.Storage.Index {
	case "bolt", "postgres":
	default:
		return fmt.Errorf("storage: unknown index %q", c.Storage.Index)
	}
	return nil
}

// Load reads configuration from environment variables with the LEDGERSCAN_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEDGERSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "ledgerscan")
	v.SetDefault("db.password", "ledgerscan_secret")
	v.SetDefault("db.name", "ledgerscan_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// JWT defaults
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "ledgerscan")

	// Storage defaults
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.index", "bolt")
	v.SetDefault("storage.local.base_path", "./data/uploads")
	v.SetDefault("storage.local.index_path", "./data/index.db")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "ledgerscan-uploads")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.gcs.bucket", "ledgerscan-uploads")
	v.SetDefault("storage.gcs.credentials_file", "")
	v.SetDefault("storage.gcs.endpoint", "")

	v.SetDefault("upload.max_file_size_mb", 50)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// CORS defaults (localhost origins for development)
	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Provider defaults
	v.SetDefault("provider.primary.provider", "claude")
	v.SetDefault("provider.primary.api_key", "")
	v.SetDefault("provider.primary.default_model", "")
	v.SetDefault("provider.primary.base_url", "")
	v.SetDefault("provider.primary.timeout_secs", 120)
	v.SetDefault("provider.secondary.provider", "")
	v.SetDefault("provider.secondary.api_key", "")
	v.SetDefault("provider.secondary.default_model", "")
	v.SetDefault("provider.secondary.base_url", "")
	v.SetDefault("provider.secondary.timeout_secs", 120)
	v.SetDefault("provider.tertiary.provider", "")
	v.SetDefault("provider.tertiary.api_key", "")
	v.SetDefault("provider.tertiary.default_model", "")
	v.SetDefault("provider.tertiary.base_url", "")
	v.SetDefault("provider.tertiary.timeout_secs", 120)

	// Pipeline defaults
	v.SetDefault("pipeline.max_attempts", 3)
	v.SetDefault("pipeline.backoff_base", "2s")
	v.SetDefault("pipeline.backoff_max", "30s")
	v.SetDefault("pipeline.provider_timeout", "90s")
	v.SetDefault("pipeline.lease_ttl", "5m")
	v.SetDefault("pipeline.poll_interval", "10s")
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.process_on_upload", true)
	v.SetDefault("pipeline.fallback_classification_confidence", 0.5)
	v.SetDefault("pipeline.worker_id", "")

	// Scoring defaults
	def := scoring.DefaultConfig()
	v.SetDefault("scoring.provider_weight", def.Default.Provider)
	v.SetDefault("scoring.validity_weight", def.Default.Validity)
	v.SetDefault("scoring.consistency_weight", def.Default.Consistency)
	v.SetDefault("scoring.field_threshold", def.FieldThreshold)
	v.SetDefault("scoring.document_threshold", def.DocumentThreshold)
	v.SetDefault("scoring.mandatory_threshold", def.MandatoryThreshold)
	v.SetDefault("scoring.mandatory_weight", def.MandatoryWeight)
	v.SetDefault("scoring.missing_provider_confidence", def.MissingProviderConfidence)

	// Normalization defaults
	v.SetDefault("normalize.default_date_order", "day_first")
	v.SetDefault("normalize.default_currency", "")
	v.SetDefault("normalize.mask_pii", true)
	v.SetDefault("normalize.mask_char", "X")
	v.SetDefault("normalize.show_last", 4)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                                 "LEDGERSCAN_SERVER_PORT",
		"server.read_timeout":                         "LEDGERSCAN_SERVER_READ_TIMEOUT",
		"server.write_timeout":                        "LEDGERSCAN_SERVER_WRITE_TIMEOUT",
		"server.environment":                          "LEDGERSCAN_SERVER_ENVIRONMENT",
		"db.host":                                     "LEDGERSCAN_DB_HOST",
		"db.port":                                     "LEDGERSCAN_DB_PORT",
		"db.user":                                     "LEDGERSCAN_DB_USER",
		"db.password":                                 "LEDGERSCAN_DB_PASSWORD",
		"db.name":                                     "LEDGERSCAN_DB_NAME",
		"db.sslmode":                                  "LEDGERSCAN_DB_SSLMODE",
		"db.max_open":                                 "LEDGERSCAN_DB_MAX_OPEN",
		"db.max_idle":                                 "LEDGERSCAN_DB_MAX_IDLE",
		"jwt.secret":                                  "LEDGERSCAN_JWT_SECRET",
		"jwt.issuer":                                  "LEDGERSCAN_JWT_ISSUER",
		"storage.backend":                             "LEDGERSCAN_STORAGE_BACKEND",
		"storage.index":                               "LEDGERSCAN_STORAGE_INDEX",
		"storage.local.base_path":                     "LEDGERSCAN_STORAGE_LOCAL_BASE_PATH",
		"storage.local.index_path":                    "LEDGERSCAN_STORAGE_LOCAL_INDEX_PATH",
		"storage.s3.region":                           "LEDGERSCAN_STORAGE_S3_REGION",
		"storage.s3.bucket":                           "LEDGERSCAN_STORAGE_S3_BUCKET",
		"storage.s3.endpoint":                         "LEDGERSCAN_STORAGE_S3_ENDPOINT",
		"storage.s3.access_key":                       "LEDGERSCAN_STORAGE_S3_ACCESS_KEY",
		"storage.s3.secret_key":                       "LEDGERSCAN_STORAGE_S3_SECRET_KEY",
		"storage.gcs.bucket":                          "LEDGERSCAN_STORAGE_GCS_BUCKET",
		"storage.gcs.credentials_file":                "LEDGERSCAN_STORAGE_GCS_CREDENTIALS_FILE",
		"storage.gcs.endpoint":                        "LEDGERSCAN_STORAGE_GCS_ENDPOINT",
		"upload.max_file_size_mb":                     "LEDGERSCAN_UPLOAD_MAX_FILE_SIZE_MB",
		"log.level":                                   "LEDGERSCAN_LOG_LEVEL",
		"log.format":                                  "LEDGERSCAN_LOG_FORMAT",
		"cors.allowed_origins":                        "LEDGERSCAN_CORS_ALLOWED_ORIGINS",
		"provider.primary.provider":                   "LEDGERSCAN_PROVIDER_PRIMARY_PROVIDER",
		"provider.primary.api_key":                    "LEDGERSCAN_PROVIDER_PRIMARY_API_KEY",
		"provider.primary.default_model":              "LEDGERSCAN_PROVIDER_PRIMARY_DEFAULT_MODEL",
		"provider.primary.base_url":                   "LEDGERSCAN_PROVIDER_PRIMARY_BASE_URL",
		"provider.primary.timeout_secs":               "LEDGERSCAN_PROVIDER_PRIMARY_TIMEOUT_SECS",
		"provider.secondary.provider":                 "LEDGERSCAN_PROVIDER_SECONDARY_PROVIDER",
		"provider.secondary.api_key":                  "LEDGERSCAN_PROVIDER_SECONDARY_API_KEY",
		"provider.secondary.default_model":            "LEDGERSCAN_PROVIDER_SECONDARY_DEFAULT_MODEL",
		"provider.secondary.base_url":                 "LEDGERSCAN_PROVIDER_SECONDARY_BASE_URL",
		"provider.secondary.timeout_secs":             "LEDGERSCAN_PROVIDER_SECONDARY_TIMEOUT_SECS",
		"provider.tertiary.provider":                  "LEDGERSCAN_PROVIDER_TERTIARY_PROVIDER",
		"provider.tertiary.api_key":                   "LEDGERSCAN_PROVIDER_TERTIARY_API_KEY",
		"provider.tertiary.default_model":             "LEDGERSCAN_PROVIDER_TERTIARY_DEFAULT_MODEL",
		"provider.tertiary.base_url":                  "LEDGERSCAN_PROVIDER_TERTIARY_BASE_URL",
		"provider.tertiary.timeout_secs":              "LEDGERSCAN_PROVIDER_TERTIARY_TIMEOUT_SECS",
		"pipeline.max_attempts":                       "LEDGERSCAN_PIPELINE_MAX_ATTEMPTS",
		"pipeline.backoff_base":                       "LEDGERSCAN_PIPELINE_BACKOFF_BASE",
		"pipeline.backoff_max":                        "LEDGERSCAN_PIPELINE_BACKOFF_MAX",
		"pipeline.provider_timeout":                   "LEDGERSCAN_PIPELINE_PROVIDER_TIMEOUT",
		"pipeline.lease_ttl":                          "LEDGERSCAN_PIPELINE_LEASE_TTL",
		"pipeline.poll_interval":                      "LEDGERSCAN_PIPELINE_POLL_INTERVAL",
		"pipeline.concurrency":                        "LEDGERSCAN_PIPELINE_CONCURRENCY",
		"pipeline.process_on_upload":                  "LEDGERSCAN_PIPELINE_PROCESS_ON_UPLOAD",
		"pipeline.fallback_classification_confidence": "LEDGERSCAN_PIPELINE_FALLBACK_CLASSIFICATION_CONFIDENCE",
		"pipeline.worker_id":                          "LEDGERSCAN_PIPELINE_WORKER_ID",
		"scoring.provider_weight":                     "LEDGERSCAN_SCORING_PROVIDER_WEIGHT",
		"scoring.validity_weight":                     "LEDGERSCAN_SCORING_VALIDITY_WEIGHT",
		"scoring.consistency_weight":                  "LEDGERSCAN_SCORING_CONSISTENCY_WEIGHT",
		"scoring.field_threshold":                     "LEDGERSCAN_SCORING_FIELD_THRESHOLD",
		"scoring.document_threshold":                  "LEDGERSCAN_SCORING_DOCUMENT_THRESHOLD",
		"scoring.mandatory_threshold":                 "LEDGERSCAN_SCORING_MANDATORY_THRESHOLD",
		"scoring.mandatory_weight":                    "LEDGERSCAN_SCORING_MANDATORY_WEIGHT",
		"scoring.missing_provider_confidence":         "LEDGERSCAN_SCORING_MISSING_PROVIDER_CONFIDENCE",
		"normalize.default_date_order":                "LEDGERSCAN_NORMALIZE_DEFAULT_DATE_ORDER",
		"normalize.default_currency":                  "LEDGERSCAN_NORMALIZE_DEFAULT_CURRENCY",
		"normalize.mask_pii":                          "LEDGERSCAN_NORMALIZE_MASK_PII",
		"normalize.mask_char":                         "LEDGERSCAN_NORMALIZE_MASK_CHAR",
		"normalize.show_last":                         "LEDGERSCAN_NORMALIZE_SHOW_LAST",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Container platforms set a PORT env var. Use it if LEDGERSCAN_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("LEDGERSCAN_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.JWT = JWTConfig{
		Secret: v.GetString("jwt.secret"),
		Issuer: v.GetString("jwt.issuer"),
	}
	cfg.Storage = StorageConfig{
		Backend: v.GetString("storage.backend"),
		Index:   v.GetString("storage.index"),
		Local: LocalStorageConfig{
			BasePath:  v.GetString("storage.local.base_path"),
			IndexPath: v.GetString("storage.local.index_path"),
		},
		S3: S3Config{
			Region:    v.GetString("storage.s3.region"),
			Bucket:    v.GetString("storage.s3.bucket"),
			Endpoint:  v.GetString("storage.s3.endpoint"),
			AccessKey: v.GetString("storage.s3.access_key"),
			SecretKey: v.GetString("storage.s3.secret_key"),
		},
		GCS: GCSConfig{
			Bucket:          v.GetString("storage.gcs.bucket"),
			CredentialsFile: v.GetString("storage.gcs.credentials_file"),
			Endpoint:        v.GetString("storage.gcs.endpoint"),
		},
	}
	cfg.Upload = UploadConfig{
		MaxFileSizeMB: v.GetInt64("upload.max_file_size_mb"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	// Parse CORS allowed origins from comma-separated string
	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: corsOrigins,
	}

	cfg.Provider = ProvidersConfig{
		Primary:   providerConfig(v, "provider.primary"),
		Secondary: providerConfig(v, "provider.secondary"),
		Tertiary:  providerConfig(v, "provider.tertiary"),
	}

	cfg.Pipeline = PipelineConfig{
		MaxAttempts:                      v.GetInt("pipeline.max_attempts"),
		BackoffBase:                      v.GetDuration("pipeline.backoff_base"),
		BackoffMax:                       v.GetDuration("pipeline.backoff_max"),
		ProviderTimeout:                  v.GetDuration("pipeline.provider_timeout"),
		LeaseTTL:                         v.GetDuration("pipeline.lease_ttl"),
		PollInterval:                     v.GetDuration("pipeline.poll_interval"),
		Concurrency:                      v.GetInt("pipeline.concurrency"),
		ProcessOnUpload:                  v.GetBool("pipeline.process_on_upload"),
		FallbackClassificationConfidence: v.GetFloat64("pipeline.fallback_classification_confidence"),
		WorkerID:                         v.GetString("pipeline.worker_id"),
	}
	if cfg.Pipeline.WorkerID == "" {
		host, _ := os.Hostname()
		cfg.Pipeline.WorkerID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}

	cfg.Scoring = ScoringConfig{
		ProviderWeight:            v.GetFloat64("scoring.provider_weight"),
		ValidityWeight:            v.GetFloat64("scoring.validity_weight"),
		ConsistencyWeight:         v.GetFloat64("scoring.consistency_weight"),
		FieldThreshold:            v.GetFloat64("scoring.field_threshold"),
		DocumentThreshold:         v.GetFloat64("scoring.document_threshold"),
		MandatoryThreshold:        v.GetFloat64("scoring.mandatory_threshold"),
		MandatoryWeight:           v.GetFloat64("scoring.mandatory_weight"),
		MissingProviderConfidence: v.GetFloat64("scoring.missing_provider_confidence"),
	}

	cfg.Normalize = NormalizeConfig{
		DefaultDateOrder: v.GetString("normalize.default_date_order"),
		DefaultCurrency:  v.GetString("normalize.default_currency"),
		MaskPII:          v.GetBool("normalize.mask_pii"),
		MaskChar:         v.GetString("normalize.mask_char"),
		ShowLast:         v.GetInt("normalize.show_last"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return cfg, nil
}

func providerConfig(v *viper.Viper, prefix string) ProviderConfig {
	return ProviderConfig{
		Provider:     v.GetString(prefix + ".provider"),
		APIKey:       v.GetString(prefix + ".api_key"),
		DefaultModel: v.GetString(prefix + ".default_model"),
		BaseURL:      v.GetString(prefix + ".base_url"),
		TimeoutSecs:  v.GetInt(prefix + ".timeout_secs"),
	}
}
