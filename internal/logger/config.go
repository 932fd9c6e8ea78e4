package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel  string                  `yaml:"default_level" mapstructure:"default_level" json:"default_level"` // default log level for all modules
	Timezone      string                  `yaml:"timezone" mapstructure:"timezone" json:"timezone"`                // "Local", "UTC", or IANA name like "Australia/Sydney"
	Console       *ConsoleOutput          `yaml:"console" mapstructure:"console" json:"console"`                   // console output configuration
	FileOutput    *FileOutput             `yaml:"file_output" mapstructure:"file_output" json:"file_output"`       // file output configuration
	ModuleOutputs map[string]ModuleOutput `yaml:"modules" mapstructure:"modules" json:"modules"`                   // per-module output configuration
	ModuleLevels  map[string]string       `yaml:"module_levels" mapstructure:"module_levels" json:"module_levels"` // per-module log levels
}

// ConsoleOutput represents console logging configuration.
// Console output uses human-readable text without timestamps; schedulers and
// container runtimes add their own.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Level   string `yaml:"level" mapstructure:"level" json:"level"`
}

// FileOutput represents file logging configuration.
// File output is JSON with RFC3339 timestamps.
type FileOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`
	Path    string `yaml:"path" mapstructure:"path" json:"path"`
	Level   string `yaml:"level" mapstructure:"level" json:"level"`
}

// ModuleOutput represents per-module output configuration
type ModuleOutput struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled" json:"enabled"`                // enable module-specific output
	FilePath    string `yaml:"file_path" mapstructure:"file_path" json:"file_path"`          // dedicated file path for this module
	Level       string `yaml:"level" mapstructure:"level" json:"level"`                      // log level override for this module
	ConsoleAlso bool   `yaml:"console_also" mapstructure:"console_also" json:"console_also"` // also log to console
}

// Default values for logging configuration.
// These match the defaults in conf/defaults.go.
const (
	DefaultLogLevel       = "info"
	DefaultLogPath        = "logs/landcover.log"
	DefaultSourceLogPath  = "logs/source.log"
	DefaultIndexLogPath   = "logs/index.log"
	DefaultConsoleEnabled = true
	DefaultFileEnabled    = true
)

// ensureModuleOutput adds a default module output if not already present.
func ensureModuleOutput(cfg *LoggingConfig, module, filePath string) {
	if _, exists := cfg.ModuleOutputs[module]; !exists {
		cfg.ModuleOutputs[module] = ModuleOutput{
			Enabled:     true,
			FilePath:    filePath,
			Level:       DefaultLogLevel,
			ConsoleAlso: true,
		}
	}
}

// applyConfigDefaults fills nil sections so that an empty logging block in the
// config file still yields console and file output.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}

	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}

	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{
			Enabled: DefaultConsoleEnabled,
			Level:   DefaultLogLevel,
		}
	}

	if cfg.FileOutput == nil {
		cfg.FileOutput = &FileOutput{
			Enabled: DefaultFileEnabled,
			Path:    DefaultLogPath,
			Level:   DefaultLogLevel,
		}
	}

	if cfg.ModuleOutputs == nil {
		cfg.ModuleOutputs = make(map[string]ModuleOutput)

		// Remote fetches and SQL traces are noisy; keep them in their own files
		ensureModuleOutput(cfg, "source", DefaultSourceLogPath)
		ensureModuleOutput(cfg, "index", DefaultIndexLogPath)
	}
}
