package config

const (
	defaultDataDir      = "~/.local/share/deckforge"
	defaultDocumentsDir = "~/.local/share/deckforge/documents"
	defaultArtifactsDir = "~/.local/share/deckforge/artifacts"
	defaultLogDir       = "~/.local/share/deckforge/logs"

	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "google/gemini-3-flash-preview"
	defaultLLMTimeoutSeconds = 60

	defaultRenderTimeoutSeconds = 30

	defaultChunkThresholdBytes = 32 * 1024
	defaultChunkTokenBudget    = 2000
	defaultChunkHeadUnits      = 3
	defaultChunkTailUnits      = 2
	defaultChunkBodySamples    = 5
	defaultChunkWindowBytes    = 8 * 1024
	defaultChunkFlatWindows    = 4

	defaultQueuePollInterval  = 2
	defaultErrorRetryInterval = 5
	defaultLeaseSeconds       = 120
	defaultLeaseRenewInterval = 30
	defaultReclaimInterval    = 15
	defaultMaxAttempts        = 3
	defaultBackoffBaseSeconds = 2
	defaultBackoffMaxSeconds  = 60

	defaultExtractConcurrency  = 2
	defaultGenerateConcurrency = 2
	defaultOptimizeConcurrency = 1

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			DocumentsDir: defaultDocumentsDir,
			ArtifactsDir: defaultArtifactsDir,
			LogDir:       defaultLogDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Render: Render{
			TimeoutSeconds: defaultRenderTimeoutSeconds,
		},
		Chunking: Chunking{
			ThresholdBytes: defaultChunkThresholdBytes,
			TokenBudget:    defaultChunkTokenBudget,
			HeadUnits:      defaultChunkHeadUnits,
			TailUnits:      defaultChunkTailUnits,
			BodySamples:    defaultChunkBodySamples,
			WindowBytes:    defaultChunkWindowBytes,
			FlatWindows:    defaultChunkFlatWindows,
		},
		Workflow: Workflow{
			QueuePollInterval:   defaultQueuePollInterval,
			ErrorRetryInterval:  defaultErrorRetryInterval,
			LeaseSeconds:        defaultLeaseSeconds,
			LeaseRenewInterval:  defaultLeaseRenewInterval,
			ReclaimInterval:     defaultReclaimInterval,
			MaxAttempts:         defaultMaxAttempts,
			BackoffBaseSeconds:  defaultBackoffBaseSeconds,
			BackoffMaxSeconds:   defaultBackoffMaxSeconds,
			ExtractConcurrency:  defaultExtractConcurrency,
			GenerateConcurrency: defaultGenerateConcurrency,
			OptimizeConcurrency: defaultOptimizeConcurrency,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
