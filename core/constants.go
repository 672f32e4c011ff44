package core

import "time"

// Environment variables.
const (
	EnvLogDir       = "VERITAS_LOG_DIR"
	EnvPolicyFile   = "VERITAS_POLICY_FILE"
	EnvDeadline     = "VERITAS_DEADLINE"
	EnvMaxBodySize  = "VERITAS_MAX_BODY_SIZE"
	EnvCORSOrigins  = "VERITAS_CORS_ORIGINS"
	EnvRedisURL     = "VERITAS_REDIS_URL"
	EnvPort         = "PORT"
	EnvDevMode      = "DEV_MODE"
	EnvLogFormat    = "VERITAS_LOG_FORMAT"
	EnvNamespace    = "NAMESPACE"
)

// Bounded-sequence caps enforced by the pipeline (spec §5 resource caps).
const (
	MaxCandidateOptions = 16
	MaxEvidenceItems    = 32
	MaxCritiques        = 64
	MaxPlanSteps        = 32
)

// Default timeouts for TrustLog operations and stage deadlines.
const (
	DefaultStageDeadline  = 20 * time.Second
	DefaultRequestTimeout = 60 * time.Second
	DefaultLockTimeout    = 5 * time.Second
)
