package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetSources() (*SourcesData, error)
	GetAnalysis() (*AnalysisData, error)
	GetRender() (*RenderData, error)
	GetServer() (*ServerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Sources  SourcesData  `json:"sources"`
	Analysis AnalysisData `json:"analysis"`
	Render   RenderData   `json:"render"`
	Server   ServerData   `json:"server"`
	Log      LogData      `json:"log"`
}

// Source backends
const (
	SourceCSV      = "csv"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// SourcesData selects where route charts and circuit data are read from
type SourcesData struct {
	Backend    string   `json:"backend" validate:"oneof=csv sqlite postgres"`
	UploadDir  string   `json:"upload_dir,omitempty" validate:"required_if=Backend csv"`
	SQLitePath string   `json:"sqlite_path,omitempty" validate:"required_if=Backend sqlite"`
	DSN        string   `json:"dsn,omitempty" validate:"required_if=Backend postgres"`
	Tables     []string `json:"tables,omitempty"`
}

// AnalysisData tunes the correlation and sampling pipeline
type AnalysisData struct {
	SamplingMinRows     int    `json:"sampling_min_rows" validate:"gte=0"`
	ChunkThresholdHours int    `json:"chunk_threshold_hours" validate:"gt=0"`
	ChunkSizeHours      int    `json:"chunk_size_hours" validate:"gt=0"`
	SamplerSeed         uint64 `json:"sampler_seed"`
}

// RenderData tunes the timeline renderer and its detail policy
type RenderData struct {
	BatchSize         int `json:"batch_size" validate:"gt=0"`
	CollapseThreshold int `json:"collapse_threshold" validate:"gt=0"`
	LabelTarget       int `json:"label_target" validate:"gt=0"`
	LowDetailRows     int `json:"low_detail_rows" validate:"gt=0"`
	LowDetailDays     int `json:"low_detail_days" validate:"gte=0"`
	GridMaxRows       int `json:"grid_max_rows" validate:"gt=0"`
}

// ServerData configures the HTTP surface
type ServerData struct {
	Cert       string `json:"cert,omitempty" validate:"required_with=Key"`
	Key        string `json:"key,omitempty" validate:"required_with=Cert"`
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port" validate:"gt=0,lte=65535"`
}

// LogData configures logging
type LogData struct {
	Debug      bool   `json:"debug,omitempty"`
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" validate:"gte=0"`
	MaxBackups int    `json:"max_backups,omitempty" validate:"gte=0"`
}

// Defaults returns a configuration with every default applied.
func Defaults() *ConfigData {
	cfg := &ConfigData{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with their defaults.
func (c *ConfigData) ApplyDefaults() {
	if c.Sources.Backend == "" {
		c.Sources.Backend = SourceCSV
	}
	if c.Sources.Backend == SourceCSV && c.Sources.UploadDir == "" {
		c.Sources.UploadDir = "uploads"
	}
	if c.Analysis.SamplingMinRows == 0 {
		c.Analysis.SamplingMinRows = 5000
	}
	if c.Analysis.ChunkThresholdHours == 0 {
		c.Analysis.ChunkThresholdHours = 7 * 24
	}
	if c.Analysis.ChunkSizeHours == 0 {
		c.Analysis.ChunkSizeHours = 3 * 24
	}
	if c.Render.BatchSize == 0 {
		c.Render.BatchSize = 50
	}
	if c.Render.CollapseThreshold == 0 {
		c.Render.CollapseThreshold = 500
	}
	if c.Render.LabelTarget == 0 {
		c.Render.LabelTarget = 40
	}
	if c.Render.LowDetailRows == 0 {
		c.Render.LowDetailRows = 20000
	}
	if c.Render.LowDetailDays == 0 {
		c.Render.LowDetailDays = 3
	}
	if c.Render.GridMaxRows == 0 {
		c.Render.GridMaxRows = 50000
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.File != "" && c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 100
	}
}
