package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads, defaults and validates the configuration from the YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

// ParseYAML decodes a YAML document into a validated ConfigData.
func ParseYAML(data []byte) (*ConfigData, error) {
	var yamlConfig ConfigYAML
	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, err
	}

	config := &ConfigData{
		Sources: SourcesData{
			Backend:    yamlConfig.Sources.Backend,
			UploadDir:  yamlConfig.Sources.UploadDir,
			SQLitePath: yamlConfig.Sources.SQLitePath,
			DSN:        yamlConfig.Sources.DSN,
			Tables:     yamlConfig.Sources.Tables,
		},
		Analysis: AnalysisData{
			SamplingMinRows:     yamlConfig.Analysis.SamplingMinRows,
			ChunkThresholdHours: yamlConfig.Analysis.ChunkThresholdHours,
			ChunkSizeHours:      yamlConfig.Analysis.ChunkSizeHours,
			SamplerSeed:         yamlConfig.Analysis.SamplerSeed,
		},
		Render: RenderData{
			BatchSize:         yamlConfig.Render.BatchSize,
			CollapseThreshold: yamlConfig.Render.CollapseThreshold,
			LabelTarget:       yamlConfig.Render.LabelTarget,
			LowDetailRows:     yamlConfig.Render.LowDetailRows,
			LowDetailDays:     yamlConfig.Render.LowDetailDays,
			GridMaxRows:       yamlConfig.Render.GridMaxRows,
		},
		Server: ServerData{
			Cert:       yamlConfig.Server.Cert,
			Key:        yamlConfig.Server.Key,
			ListenAddr: yamlConfig.Server.ListenAddr,
			Port:       yamlConfig.Server.Port,
		},
		Log: LogData{
			Debug:      yamlConfig.Log.Debug,
			File:       yamlConfig.Log.File,
			MaxSizeMB:  yamlConfig.Log.MaxSizeMB,
			MaxBackups: yamlConfig.Log.MaxBackups,
		},
	}
	config.ApplyDefaults()

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks every section against its validation tags.
func Validate(c *ConfigData) error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (y *YAMLProvider) loaded() (*ConfigData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return y.config, nil
}

// GetSources returns the source table configuration
func (y *YAMLProvider) GetSources() (*SourcesData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Sources, nil
}

// GetAnalysis returns the pipeline configuration
func (y *YAMLProvider) GetAnalysis() (*AnalysisData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Analysis, nil
}

// GetRender returns the renderer configuration
func (y *YAMLProvider) GetRender() (*RenderData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Render, nil
}

// GetServer returns the HTTP server configuration
func (y *YAMLProvider) GetServer() (*ServerData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Server, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with proper YAML tags
type ConfigYAML struct {
	Sources  SourcesYAML  `yaml:"sources"`
	Analysis AnalysisYAML `yaml:"analysis,omitempty"`
	Render   RenderYAML   `yaml:"render,omitempty"`
	Server   ServerYAML   `yaml:"server,omitempty"`
	Log      LogYAML      `yaml:"log,omitempty"`
}

type SourcesYAML struct {
	Backend    string   `yaml:"backend,omitempty"`
	UploadDir  string   `yaml:"upload-dir,omitempty"`
	SQLitePath string   `yaml:"sqlite-path,omitempty"`
	DSN        string   `yaml:"dsn,omitempty"`
	Tables     []string `yaml:"tables,omitempty"`
}

type AnalysisYAML struct {
	SamplingMinRows     int    `yaml:"sampling-min-rows,omitempty"`
	ChunkThresholdHours int    `yaml:"chunk-threshold-hours,omitempty"`
	ChunkSizeHours      int    `yaml:"chunk-size-hours,omitempty"`
	SamplerSeed         uint64 `yaml:"sampler-seed,omitempty"`
}

type RenderYAML struct {
	BatchSize         int `yaml:"batch-size,omitempty"`
	CollapseThreshold int `yaml:"collapse-threshold,omitempty"`
	LabelTarget       int `yaml:"label-target,omitempty"`
	LowDetailRows     int `yaml:"low-detail-rows,omitempty"`
	LowDetailDays     int `yaml:"low-detail-days,omitempty"`
	GridMaxRows       int `yaml:"grid-max-rows,omitempty"`
}

type ServerYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
}

type LogYAML struct {
	Debug      bool   `yaml:"debug,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max-size-mb,omitempty"`
	MaxBackups int    `yaml:"max-backups,omitempty"`
}
