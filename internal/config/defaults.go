package config

const (
	defaultDataDir               = "~/.local/share/captor"
	defaultLogDir                = "~/.local/state/captor"
	defaultClassifierTimeout     = 15
	defaultMaxRetries            = 3
	defaultInitialBackoffMS      = 5000
	defaultBackoffMultiplier     = 3
	defaultPollInterval          = 30
	defaultTempSweepInterval     = 900
	defaultTempSweepAge          = 600
	defaultCalendarRetryInterval = 1800
	defaultCalendarTimeout       = 10
	defaultAnalyticsTimeout      = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Classifier: Classifier{
			TimeoutSeconds: defaultClassifierTimeout,
		},
		Queue: Queue{
			MaxRetries:            defaultMaxRetries,
			InitialBackoffMS:      defaultInitialBackoffMS,
			BackoffMultiplier:     defaultBackoffMultiplier,
			PollInterval:          defaultPollInterval,
			TempSweepInterval:     defaultTempSweepInterval,
			TempSweepAge:          defaultTempSweepAge,
			CalendarRetryInterval: defaultCalendarRetryInterval,
		},
		Calendar: Calendar{
			Mode:           CalendarModeSuggest,
			RequestTimeout: defaultCalendarTimeout,
		},
		Analytics: Analytics{
			RequestTimeout: defaultAnalyticsTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
