package config

const (
	defaultOutputDir         = "~/.local/share/ccbench/results"
	defaultLogDir            = "~/.local/share/ccbench/logs"
	defaultCacheDir          = "~/.cache/ccbench"
	defaultDatasetPath       = "~/.cache/ccbench/livesports3k_cc_test.jsonl"
	defaultFetchTimeout      = 300
	defaultInferenceBaseURL  = "http://127.0.0.1:8000/v1/livecc"
	defaultInferenceTimeout  = 120
	defaultMaxNewTokens      = 32
	defaultRetryAttempts     = 3
	defaultNumWorkers        = 8
	defaultRepetitionPenalty = 1.15
	defaultDevicePrefix      = "cuda"
	defaultFilterInput       = "mvbench.jsonl"
	defaultFilterOutput      = "mvbench_video_existed.jsonl"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			CacheDir:  defaultCacheDir,
		},
		Dataset: Dataset{
			Path:         defaultDatasetPath,
			FetchTimeout: defaultFetchTimeout,
		},
		Inference: Inference{
			BaseURL:        defaultInferenceBaseURL,
			TimeoutSeconds: defaultInferenceTimeout,
			MaxNewTokens:   defaultMaxNewTokens,
			RetryAttempts:  defaultRetryAttempts,
		},
		Generation: Generation{
			NumWorkers:        defaultNumWorkers,
			RepetitionPenalty: defaultRepetitionPenalty,
			DevicePrefix:      defaultDevicePrefix,
		},
		Filter: Filter{
			Input:      defaultFilterInput,
			Output:     defaultFilterOutput,
			NumWorkers: defaultNumWorkers,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
