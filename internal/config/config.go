package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 全局配置
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Factory    FactoryConfig    `yaml:"factory"`
	Transition TransitionConfig `yaml:"transition"`
	History    HistoryConfig    `yaml:"history"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// PingInterval 是 WebSocket 流的心跳间隔。
	PingInterval time.Duration `yaml:"ping_interval"`
}

// FactoryConfig 状态工厂配置
type FactoryConfig struct {
	// IntensityScale 是刺激强度到情绪强度的固定缩放因子。
	IntensityScale float64 `yaml:"intensity_scale"`
	// PersistenceWeight 是指数平滑中旧状态强度的权重：
	// new = raw*(1-w) + prior*w。
	PersistenceWeight float64 `yaml:"persistence_weight"`
	// InstabilityThreshold 超过该阈值且结果为 failure 时，
	// 主情绪偏向 anger/fear。
	InstabilityThreshold float64 `yaml:"instability_threshold"`
}

// TransitionConfig 过渡计算与执行配置
type TransitionConfig struct {
	// BaseSpeed 是过渡时长公式的基准值。
	BaseSpeed time.Duration `yaml:"base_speed"`
	// MinDuration/MaxDuration 是过渡时长的钳制区间。
	MinDuration time.Duration `yaml:"min_duration"`
	MaxDuration time.Duration `yaml:"max_duration"`
	// TickInterval 是插值推进的固定节拍。它约束插值延迟，不影响正确性。
	TickInterval time.Duration `yaml:"tick_interval"`
}

// HistoryConfig 历史存储配置
type HistoryConfig struct {
	// MaxDepth 是每个实体状态历史的最大长度，超出从最旧端截断。
	MaxDepth int `yaml:"max_depth"`
	// CompressionThreshold 达到该长度时触发一次压缩。
	CompressionThreshold int `yaml:"compression_threshold"`
	// IndexCap 是每个二级索引条目的容量上限。
	IndexCap int `yaml:"index_cap"`
	// TTL 实体空闲超过该时长后被整体清除。
	TTL time.Duration `yaml:"ttl"`
	// SweepInterval 是后台清扫的固定间隔。
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// AnalysisConfig 分析配置
type AnalysisConfig struct {
	// Window 是一次分析取用的最近状态条数。
	Window int `yaml:"window"`
	// WindowDuration 是一次分析回看的时间范围。
	WindowDuration time.Duration `yaml:"window_duration"`
}

// yamlDuration 让时长字段接受 "800ms"/"30s"/"24h" 形式的 yaml 字面量。
// yaml.v3 不认识 time.Duration，各 section 在 UnmarshalYAML 里自行转换。
type yamlDuration time.Duration

func (d *yamlDuration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = yamlDuration(parsed)
	return nil
}

// UnmarshalYAML 解析 server 段。raw 先用当前值（即默认值）填充，
// 文件里缺省的字段保持不变，维持"文件只覆盖写到的字段"的合并语义。
func (s *ServerConfig) UnmarshalYAML(value *yaml.Node) error {
	raw := struct {
		Host         string       `yaml:"host"`
		Port         int          `yaml:"port"`
		ReadTimeout  yamlDuration `yaml:"read_timeout"`
		WriteTimeout yamlDuration `yaml:"write_timeout"`
		PingInterval yamlDuration `yaml:"ping_interval"`
	}{
		Host:         s.Host,
		Port:         s.Port,
		ReadTimeout:  yamlDuration(s.ReadTimeout),
		WriteTimeout: yamlDuration(s.WriteTimeout),
		PingInterval: yamlDuration(s.PingInterval),
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.Host = raw.Host
	s.Port = raw.Port
	s.ReadTimeout = time.Duration(raw.ReadTimeout)
	s.WriteTimeout = time.Duration(raw.WriteTimeout)
	s.PingInterval = time.Duration(raw.PingInterval)
	return nil
}

// UnmarshalYAML 解析 transition 段。
func (t *TransitionConfig) UnmarshalYAML(value *yaml.Node) error {
	raw := struct {
		BaseSpeed    yamlDuration `yaml:"base_speed"`
		MinDuration  yamlDuration `yaml:"min_duration"`
		MaxDuration  yamlDuration `yaml:"max_duration"`
		TickInterval yamlDuration `yaml:"tick_interval"`
	}{
		BaseSpeed:    yamlDuration(t.BaseSpeed),
		MinDuration:  yamlDuration(t.MinDuration),
		MaxDuration:  yamlDuration(t.MaxDuration),
		TickInterval: yamlDuration(t.TickInterval),
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	t.BaseSpeed = time.Duration(raw.BaseSpeed)
	t.MinDuration = time.Duration(raw.MinDuration)
	t.MaxDuration = time.Duration(raw.MaxDuration)
	t.TickInterval = time.Duration(raw.TickInterval)
	return nil
}

// UnmarshalYAML 解析 history 段。
func (h *HistoryConfig) UnmarshalYAML(value *yaml.Node) error {
	raw := struct {
		MaxDepth             int          `yaml:"max_depth"`
		CompressionThreshold int          `yaml:"compression_threshold"`
		IndexCap             int          `yaml:"index_cap"`
		TTL                  yamlDuration `yaml:"ttl"`
		SweepInterval        yamlDuration `yaml:"sweep_interval"`
	}{
		MaxDepth:             h.MaxDepth,
		CompressionThreshold: h.CompressionThreshold,
		IndexCap:             h.IndexCap,
		TTL:                  yamlDuration(h.TTL),
		SweepInterval:        yamlDuration(h.SweepInterval),
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	h.MaxDepth = raw.MaxDepth
	h.CompressionThreshold = raw.CompressionThreshold
	h.IndexCap = raw.IndexCap
	h.TTL = time.Duration(raw.TTL)
	h.SweepInterval = time.Duration(raw.SweepInterval)
	return nil
}

// UnmarshalYAML 解析 analysis 段。
func (a *AnalysisConfig) UnmarshalYAML(value *yaml.Node) error {
	raw := struct {
		Window         int          `yaml:"window"`
		WindowDuration yamlDuration `yaml:"window_duration"`
	}{
		Window:         a.Window,
		WindowDuration: yamlDuration(a.WindowDuration),
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	a.Window = raw.Window
	a.WindowDuration = time.Duration(raw.WindowDuration)
	return nil
}

// Default 返回一套可直接嵌入使用的默认配置。
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			PingInterval: 20 * time.Second,
		},
		Factory: FactoryConfig{
			IntensityScale:       0.8,
			PersistenceWeight:    0.3,
			InstabilityThreshold: 0.65,
		},
		Transition: TransitionConfig{
			BaseSpeed:    800 * time.Millisecond,
			MinDuration:  100 * time.Millisecond,
			MaxDuration:  10 * time.Second,
			TickInterval: 50 * time.Millisecond,
		},
		History: HistoryConfig{
			MaxDepth:             100,
			CompressionThreshold: 80,
			IndexCap:             100,
			TTL:                  30 * time.Minute,
			SweepInterval:        time.Minute,
		},
		Analysis: AnalysisConfig{
			Window:         20,
			WindowDuration: 24 * time.Hour,
		},
	}
}

// Load 从文件加载配置，缺省字段回落到 Default。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// 部署相关字段允许用环境变量覆盖，便于容器化时不改文件。
	if host := os.Getenv("EMOTION_ENGINE_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Transition.TickInterval <= 0 {
		return fmt.Errorf("transition.tick_interval must be positive")
	}
	if c.Transition.MinDuration <= 0 || c.Transition.MaxDuration < c.Transition.MinDuration {
		return fmt.Errorf("transition duration bounds invalid: min=%v max=%v",
			c.Transition.MinDuration, c.Transition.MaxDuration)
	}
	if c.History.MaxDepth <= 0 {
		return fmt.Errorf("history.max_depth must be positive")
	}
	if c.History.CompressionThreshold <= 1 || c.History.CompressionThreshold > c.History.MaxDepth {
		return fmt.Errorf("history.compression_threshold must be in (1, max_depth]")
	}
	if c.History.TTL <= 0 || c.History.SweepInterval <= 0 {
		return fmt.Errorf("history.ttl and history.sweep_interval must be positive")
	}
	if c.Analysis.Window <= 0 {
		return fmt.Errorf("analysis.window must be positive")
	}
	if c.Factory.PersistenceWeight < 0 || c.Factory.PersistenceWeight >= 1 {
		return fmt.Errorf("factory.persistence_weight must be in [0, 1)")
	}
	return nil
}
