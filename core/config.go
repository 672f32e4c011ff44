package core

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable for a VERITAS deployment. It supports the
// same three-layer configuration priority used throughout this codebase:
//  1. Default values (lowest priority)
//  2. Environment variables (medium priority)
//  3. Functional options (highest priority)
//
// Example:
//
//	cfg, err := NewConfig(
//	    WithLogDir("/var/lib/veritas/log"),
//	    WithPolicyFile("/etc/veritas/policy.yaml"),
//	    WithDeadline(20*time.Second),
//	)
type Config struct {
	Name      string `json:"name" env:"VERITAS_NAME"`
	Port      int    `json:"port" env:"PORT" default:"8443"`
	Namespace string `json:"namespace" env:"NAMESPACE" default:"default"`

	HTTP       HTTPConfig       `json:"http"`
	Pipeline   PipelineConfig   `json:"pipeline"`
	Fuji       FujiConfig       `json:"fuji"`
	TrustLog   TrustLogConfig   `json:"trust_log"`
	Resilience ResilienceConfig `json:"resilience"`
	Telemetry  TelemetryConfig  `json:"telemetry"`
	Logging    LoggingConfig    `json:"logging"`
	Kubernetes KubernetesConfig `json:"kubernetes"`
	Development DevelopmentConfig `json:"development"`

	logger Logger `json:"-"`
}

// HTTPConfig contains the Decide endpoint's server configuration.
type HTTPConfig struct {
	ReadTimeout       time.Duration `json:"read_timeout" env:"VERITAS_HTTP_READ_TIMEOUT" default:"30s"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" env:"VERITAS_HTTP_READ_HEADER_TIMEOUT" default:"10s"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"VERITAS_HTTP_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout       time.Duration `json:"idle_timeout" env:"VERITAS_HTTP_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" env:"VERITAS_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	MaxBodyBytes      int64         `json:"max_body_bytes" env:"VERITAS_MAX_BODY_SIZE" default:"1048576"`
	CORS              CORSConfig    `json:"cors"`
}

// PipelineConfig bounds the Decision Pipeline's per-request resource use
// (spec §5 "Resource Model").
type PipelineConfig struct {
	StageDeadline     time.Duration `json:"stage_deadline" env:"VERITAS_STAGE_DEADLINE" default:"20s"`
	RequestDeadline   time.Duration `json:"request_deadline" env:"VERITAS_DEADLINE" default:"60s"`
	MaxCandidates     int           `json:"max_candidates" env:"VERITAS_MAX_CANDIDATES" default:"16"`
	MaxEvidenceItems  int           `json:"max_evidence_items" env:"VERITAS_MAX_EVIDENCE" default:"32"`
	MaxCritiques      int           `json:"max_critiques" env:"VERITAS_MAX_CRITIQUES" default:"64"`
	MaxPlanSteps      int           `json:"max_plan_steps" env:"VERITAS_MAX_PLAN_STEPS" default:"32"`
	SkipOnSoftFailure bool          `json:"skip_on_soft_failure" env:"VERITAS_SKIP_ON_SOFT_FAILURE" default:"true"`
}

// FujiConfig configures the safety gate: where the policy document lives,
// how its layers are weighted, and the coercion thresholds.
type FujiConfig struct {
	PolicyFile       string        `json:"policy_file" env:"VERITAS_POLICY_FILE"`
	PolicyReloadPoll time.Duration `json:"policy_reload_poll" env:"VERITAS_POLICY_RELOAD_POLL" default:"30s"`
	WeightKeyword    float64       `json:"weight_keyword" env:"VERITAS_FUJI_WEIGHT_KEYWORD" default:"0.2"`
	WeightSafetyHead float64       `json:"weight_safety_head" env:"VERITAS_FUJI_WEIGHT_SAFETY_HEAD" default:"0.5"`
	WeightPolicy     float64       `json:"weight_policy" env:"VERITAS_FUJI_WEIGHT_POLICY" default:"0.3"`
	RejectThreshold  float64       `json:"reject_threshold" env:"VERITAS_FUJI_REJECT_THRESHOLD" default:"0.75"`
	HoldThreshold    float64       `json:"hold_threshold" env:"VERITAS_FUJI_HOLD_THRESHOLD" default:"0.40"`
	SafetyHeadTimeout time.Duration `json:"safety_head_timeout" env:"VERITAS_SAFETY_HEAD_TIMEOUT" default:"5s"`
}

// TrustLogConfig configures the hash-chained audit log.
type TrustLogConfig struct {
	Dir              string        `json:"dir" env:"VERITAS_LOG_DIR" default:"./trustlog"`
	RotationMaxBytes int64         `json:"rotation_max_bytes" env:"VERITAS_LOG_ROTATION_MAX_BYTES" default:"104857600"`
	MirrorEnabled    bool          `json:"mirror_enabled" env:"VERITAS_LOG_MIRROR_ENABLED" default:"true"`
	LockTimeout      time.Duration `json:"lock_timeout" env:"VERITAS_LOG_LOCK_TIMEOUT" default:"5s"`
}

// ResilienceConfig contains fault-tolerance settings shared by every
// external collaborator call (safety-head classifier, opaque LLM).
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
	Retry          RetryConfig          `json:"retry"`
	Timeout        TimeoutConfig        `json:"timeout"`
}

// CircuitBreakerConfig defines circuit breaker pattern settings.
type CircuitBreakerConfig struct {
	Enabled          bool          `json:"enabled" env:"VERITAS_CB_ENABLED" default:"true"`
	Threshold        int           `json:"threshold" env:"VERITAS_CB_THRESHOLD" default:"5"`
	Timeout          time.Duration `json:"timeout" env:"VERITAS_CB_TIMEOUT" default:"30s"`
	HalfOpenRequests int           `json:"half_open_requests" env:"VERITAS_CB_HALF_OPEN" default:"3"`
}

// RetryConfig defines exponential-backoff retry settings.
// interval = min(InitialInterval * (Multiplier ^ attempt), MaxInterval)
type RetryConfig struct {
	MaxAttempts     int           `json:"max_attempts" env:"VERITAS_RETRY_MAX_ATTEMPTS" default:"3"`
	InitialInterval time.Duration `json:"initial_interval" env:"VERITAS_RETRY_INITIAL_INTERVAL" default:"500ms"`
	MaxInterval     time.Duration `json:"max_interval" env:"VERITAS_RETRY_MAX_INTERVAL" default:"10s"`
	Multiplier      float64       `json:"multiplier" env:"VERITAS_RETRY_MULTIPLIER" default:"2.0"`
}

// TimeoutConfig defines default/maximum timeouts for bounded operations.
type TimeoutConfig struct {
	DefaultTimeout time.Duration `json:"default_timeout" env:"VERITAS_TIMEOUT_DEFAULT" default:"30s"`
	MaxTimeout     time.Duration `json:"max_timeout" env:"VERITAS_TIMEOUT_MAX" default:"5m"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Enabled        bool    `json:"enabled" env:"VERITAS_TELEMETRY_ENABLED" default:"false"`
	Endpoint       string  `json:"endpoint" env:"VERITAS_TELEMETRY_ENDPOINT,OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName    string  `json:"service_name" env:"VERITAS_TELEMETRY_SERVICE_NAME,OTEL_SERVICE_NAME" default:"veritas"`
	MetricsEnabled bool    `json:"metrics_enabled" env:"VERITAS_TELEMETRY_METRICS" default:"true"`
	TracingEnabled bool    `json:"tracing_enabled" env:"VERITAS_TELEMETRY_TRACING" default:"true"`
	SamplingRate   float64 `json:"sampling_rate" env:"VERITAS_TELEMETRY_SAMPLING_RATE" default:"1.0"`
	Insecure       bool    `json:"insecure" env:"VERITAS_TELEMETRY_INSECURE" default:"true"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	Level      string `json:"level" env:"VERITAS_LOG_LEVEL" default:"info"`
	Format     string `json:"format" env:"VERITAS_LOG_FORMAT" default:"json"`
	Output     string `json:"output" env:"VERITAS_LOG_OUTPUT" default:"stdout"`
	TimeFormat string `json:"time_format" env:"VERITAS_LOG_TIME_FORMAT" default:"2006-01-02T15:04:05.000Z07:00"`
}

// DevelopmentConfig holds settings for local development and testing.
// Never enable in production.
type DevelopmentConfig struct {
	Enabled      bool `json:"enabled" env:"DEV_MODE" default:"false"`
	MockLLM      bool `json:"mock_llm" env:"VERITAS_MOCK_LLM" default:"false"`
	PrettyLogs   bool `json:"pretty_logs" env:"VERITAS_PRETTY_LOGS" default:"false"`
	DebugLogging bool `json:"debug_logging" env:"VERITAS_DEBUG" default:"false"`
}

// KubernetesConfig is populated by detecting the in-cluster environment.
type KubernetesConfig struct {
	Enabled      bool   `json:"enabled" env:"KUBERNETES_SERVICE_HOST"`
	PodName      string `json:"pod_name" env:"HOSTNAME"`
	PodNamespace string `json:"pod_namespace" env:"NAMESPACE"`
}

// Option is a functional option applied after defaults and environment
// variables, so it always wins.
type Option func(*Config) error

// DefaultConfig returns a configuration with every field at its documented
// default.
func DefaultConfig() *Config {
	return &Config{
		Name:      "veritas",
		Port:      8443,
		Namespace: "default",
		HTTP: HTTPConfig{
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxBodyBytes:      1 << 20,
			CORS:              *DefaultCORSConfig(),
		},
		Pipeline: PipelineConfig{
			StageDeadline:     DefaultStageDeadline,
			RequestDeadline:   DefaultRequestTimeout,
			MaxCandidates:     MaxCandidateOptions,
			MaxEvidenceItems:  MaxEvidenceItems,
			MaxCritiques:      MaxCritiques,
			MaxPlanSteps:      MaxPlanSteps,
			SkipOnSoftFailure: true,
		},
		Fuji: FujiConfig{
			PolicyReloadPoll: 30 * time.Second,
			WeightKeyword:    0.2,
			WeightSafetyHead: 0.5,
			WeightPolicy:     0.3,
			RejectThreshold:  0.75,
			HoldThreshold:    0.40,
			SafetyHeadTimeout: 5 * time.Second,
		},
		TrustLog: TrustLogConfig{
			Dir:              "./trustlog",
			RotationMaxBytes: 100 << 20,
			MirrorEnabled:    true,
			LockTimeout:      DefaultLockTimeout,
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:          true,
				Threshold:        5,
				Timeout:          30 * time.Second,
				HalfOpenRequests: 3,
			},
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     10 * time.Second,
				Multiplier:      2.0,
			},
			Timeout: TimeoutConfig{
				DefaultTimeout: 30 * time.Second,
				MaxTimeout:     5 * time.Minute,
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "veritas",
			MetricsEnabled: true,
			TracingEnabled: true,
			SamplingRate:   1.0,
			Insecure:       true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Output:     "stdout",
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		},
	}
}

// DetectEnvironment adjusts defaults when running inside Kubernetes: JSON
// logging, non-pretty output, 0.0.0.0 binding handled by the caller.
func (c *Config) DetectEnvironment() {
	if host := os.Getenv("KUBERNETES_SERVICE_HOST"); host != "" {
		c.Kubernetes.Enabled = true
		c.Kubernetes.PodName = os.Getenv("HOSTNAME")
		c.Kubernetes.PodNamespace = os.Getenv(EnvNamespace)
		c.Logging.Format = "json"
		c.Development.PrettyLogs = false
	}
}

// LoadFromEnv overlays environment variables onto the current config. It is
// called by NewConfig between DefaultConfig() and the functional options,
// matching the three-layer precedence documented on Config.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("VERITAS_NAME"); v != "" {
		c.Name = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		} else if c.logger != nil {
			c.logger.Warn("invalid PORT", map[string]interface{}{"value": v, "err": err})
		}
	}
	if v := os.Getenv(EnvNamespace); v != "" {
		c.Namespace = v
	}

	if v := os.Getenv(EnvMaxBodySize); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.HTTP.MaxBodyBytes = n
		}
	}
	if v := os.Getenv(EnvCORSOrigins); v != "" {
		c.HTTP.CORS.Enabled = true
		c.HTTP.CORS.AllowedOrigins = parseStringList(v)
	}

	if v := os.Getenv(EnvDeadline); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Pipeline.RequestDeadline = d
		}
	}
	if v := os.Getenv("VERITAS_STAGE_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Pipeline.StageDeadline = d
		}
	}
	if v := os.Getenv("VERITAS_MAX_CANDIDATES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pipeline.MaxCandidates = n
		}
	}
	if v := os.Getenv("VERITAS_MAX_EVIDENCE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pipeline.MaxEvidenceItems = n
		}
	}
	if v := os.Getenv("VERITAS_MAX_CRITIQUES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pipeline.MaxCritiques = n
		}
	}
	if v := os.Getenv("VERITAS_MAX_PLAN_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Pipeline.MaxPlanSteps = n
		}
	}

	if v := os.Getenv(EnvPolicyFile); v != "" {
		c.Fuji.PolicyFile = v
	}
	if v := os.Getenv("VERITAS_FUJI_REJECT_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Fuji.RejectThreshold = f
		}
	}
	if v := os.Getenv("VERITAS_FUJI_HOLD_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Fuji.HoldThreshold = f
		}
	}

	if v := os.Getenv(EnvLogDir); v != "" {
		c.TrustLog.Dir = v
	}
	if v := os.Getenv("VERITAS_LOG_ROTATION_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.TrustLog.RotationMaxBytes = n
		}
	}

	if v := os.Getenv("VERITAS_CB_ENABLED"); v != "" {
		c.Resilience.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := os.Getenv("VERITAS_CB_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Resilience.CircuitBreaker.Threshold = n
		}
	}
	if v := os.Getenv("VERITAS_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Resilience.Retry.MaxAttempts = n
		}
	}

	if v := os.Getenv("VERITAS_TELEMETRY_ENABLED"); v != "" {
		c.Telemetry.Enabled = parseBool(v)
	}
	if v := os.Getenv("VERITAS_TELEMETRY_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	} else if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.Endpoint = v
	}

	if v := os.Getenv("VERITAS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}

	if v := os.Getenv(EnvDevMode); v != "" {
		c.Development.Enabled = parseBool(v)
	}

	return nil
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures deep inside the pipeline or the gate.
func (c *Config) Validate() error {
	if c.Pipeline.MaxCandidates <= 0 {
		return NewVeritasError("Config.Validate", "config", ErrInvalidConfiguration)
	}
	if c.Fuji.HoldThreshold >= c.Fuji.RejectThreshold {
		return NewVeritasError("Config.Validate", "config",
			fmt.Errorf("%w: fuji hold_threshold must be below reject_threshold", ErrInvalidConfiguration))
	}
	sum := c.Fuji.WeightKeyword + c.Fuji.WeightSafetyHead + c.Fuji.WeightPolicy
	if sum <= 0 {
		return NewVeritasError("Config.Validate", "config",
			fmt.Errorf("%w: fuji layer weights must sum to a positive value", ErrInvalidConfiguration))
	}
	if strings.TrimSpace(c.TrustLog.Dir) == "" {
		return NewVeritasError("Config.Validate", "config",
			fmt.Errorf("%w: trust log dir must be set", ErrMissingConfiguration))
	}
	return nil
}

func parseStringList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return strings.EqualFold(s, "yes") || strings.EqualFold(s, "on")
	}
	return b
}

// WithName sets the deployment name used in logs and telemetry resource
// attributes.
func WithName(name string) Option {
	return func(c *Config) error {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("name cannot be empty")
		}
		c.Name = name
		return nil
	}
}

// WithPort sets the HTTP listen port.
func WithPort(port int) Option {
	return func(c *Config) error {
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid port: %d", port)
		}
		c.Port = port
		return nil
	}
}

// WithLogDir sets the TrustLog primary/mirror directory.
func WithLogDir(dir string) Option {
	return func(c *Config) error {
		if strings.TrimSpace(dir) == "" {
			return fmt.Errorf("log dir cannot be empty")
		}
		c.TrustLog.Dir = dir
		return nil
	}
}

// WithPolicyFile points FUJI's policy layer at a YAML document.
func WithPolicyFile(path string) Option {
	return func(c *Config) error {
		c.Fuji.PolicyFile = path
		return nil
	}
}

// WithDeadline sets the overall per-request deadline (spec §5).
func WithDeadline(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("deadline must be positive")
		}
		c.Pipeline.RequestDeadline = d
		return nil
	}
}

// WithStageDeadline sets the per-stage deadline.
func WithStageDeadline(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("stage deadline must be positive")
		}
		c.Pipeline.StageDeadline = d
		return nil
	}
}

// WithFujiWeights sets the three FUJI layer aggregation weights.
func WithFujiWeights(keyword, safetyHead, policy float64) Option {
	return func(c *Config) error {
		if keyword+safetyHead+policy <= 0 {
			return fmt.Errorf("fuji weights must sum to a positive value")
		}
		c.Fuji.WeightKeyword = keyword
		c.Fuji.WeightSafetyHead = safetyHead
		c.Fuji.WeightPolicy = policy
		return nil
	}
}

// WithFujiThresholds sets the hold/reject risk thresholds.
func WithFujiThresholds(hold, reject float64) Option {
	return func(c *Config) error {
		if hold >= reject {
			return fmt.Errorf("hold threshold must be below reject threshold")
		}
		c.Fuji.HoldThreshold = hold
		c.Fuji.RejectThreshold = reject
		return nil
	}
}

// WithCORS enables CORS with the given allowed origins.
func WithCORS(origins []string, credentials bool) Option {
	return func(c *Config) error {
		c.HTTP.CORS.Enabled = true
		c.HTTP.CORS.AllowedOrigins = origins
		c.HTTP.CORS.AllowCredentials = credentials
		return nil
	}
}

// WithCircuitBreaker overrides the circuit breaker threshold/timeout shared
// by every external collaborator call.
func WithCircuitBreaker(threshold int, timeout time.Duration) Option {
	return func(c *Config) error {
		if threshold <= 0 {
			return fmt.Errorf("threshold must be positive")
		}
		c.Resilience.CircuitBreaker.Enabled = true
		c.Resilience.CircuitBreaker.Threshold = threshold
		c.Resilience.CircuitBreaker.Timeout = timeout
		return nil
	}
}

// WithRetry overrides the retry policy shared by every external call.
func WithRetry(maxAttempts int, initialInterval time.Duration) Option {
	return func(c *Config) error {
		if maxAttempts <= 0 {
			return fmt.Errorf("maxAttempts must be positive")
		}
		c.Resilience.Retry.MaxAttempts = maxAttempts
		c.Resilience.Retry.InitialInterval = initialInterval
		return nil
	}
}

// WithTelemetry enables OTel export to the given OTLP endpoint.
func WithTelemetry(enabled bool, endpoint string) Option {
	return func(c *Config) error {
		c.Telemetry.Enabled = enabled
		c.Telemetry.Endpoint = endpoint
		return nil
	}
}

// WithLogLevel sets the structured logging level.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogFormat sets the structured logging format ("json" or "text").
func WithLogFormat(format string) Option {
	return func(c *Config) error {
		if format != "json" && format != "text" {
			return fmt.Errorf("format must be json or text")
		}
		c.Logging.Format = format
		return nil
	}
}

// WithDevelopmentMode flips on pretty logs, debug logging, and a mock LLM.
func WithDevelopmentMode(enabled bool) Option {
	return func(c *Config) error {
		c.Development.Enabled = enabled
		if enabled {
			c.Logging.Format = "text"
			c.Development.PrettyLogs = true
			c.Development.DebugLogging = true
			c.Development.MockLLM = true
		}
		return nil
	}
}

// WithMockLLM forces the opaque LLM collaborator to the canned mock
// implementation, regardless of development mode.
func WithMockLLM(enabled bool) Option {
	return func(c *Config) error {
		c.Development.MockLLM = enabled
		return nil
	}
}

// WithLogger injects a Logger used during configuration loading itself
// (e.g. to report which environment variables were honored).
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// NewConfig builds a Config by layering defaults, environment variables,
// and functional options, in that order, then validates the result.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DetectEnvironment()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, NewVeritasError("NewConfig", "config", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, NewVeritasError("NewConfig", "config", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
