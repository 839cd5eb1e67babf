package config

import (
	"bytes"
	_ "embed"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/vktogo/engine/core"
)

//go:embed default.toml
var defaultConfig []byte

// Severity of a validation layer message.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityPerformance
	SeverityError
	SeverityDebug
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityPerformance:
		return "performance"
	case SeverityError:
		return "error"
	case SeverityDebug:
		return "debug"
	default:
		return "info"
	}
}

// ValidationCallback receives validation layer messages once the instance exists.
type ValidationCallback func(severity Severity, layer string, code int32, message string)

type Window struct {
	Title      string `toml:"title"`
	Width      uint32 `toml:"width"`
	Height     uint32 `toml:"height"`
	Fullscreen bool   `toml:"fullscreen"`
}

// Features10 lists the core device features requested at device creation.
type Features10 struct {
	SamplerAnisotropy         bool `toml:"sampler_anisotropy"`
	SampleRateShading         bool `toml:"sample_rate_shading"`
	DepthClamp                bool `toml:"depth_clamp"`
	GeometryShader            bool `toml:"geometry_shader"`
	TessellationShader        bool `toml:"tessellation_shader"`
	MultiDrawIndirect         bool `toml:"multi_draw_indirect"`
	DrawIndirectFirstInstance bool `toml:"draw_indirect_first_instance"`
	FillModeNonSolid          bool `toml:"fill_mode_non_solid"`
	ShaderFloat64             bool `toml:"shader_float64"`
	ShaderInt64               bool `toml:"shader_int64"`
	WideLines                 bool `toml:"wide_lines"`
}

type Features11 struct {
	ShaderDrawParameters     bool `toml:"shader_draw_parameters"`
	Multiview                bool `toml:"multiview"`
	StorageBuffer16BitAccess bool `toml:"storage_buffer_16bit_access"`
}

type Features12 struct {
	BufferDeviceAddress             bool `toml:"buffer_device_address"`
	SamplerFilterMinmax             bool `toml:"sampler_filter_minmax"`
	TimelineSemaphore               bool `toml:"timeline_semaphore"`
	DescriptorIndexing              bool `toml:"descriptor_indexing"`
	RuntimeDescriptorArray          bool `toml:"runtime_descriptor_array"`
	DescriptorBindingPartiallyBound bool `toml:"descriptor_binding_partially_bound"`
	ScalarBlockLayout               bool `toml:"scalar_block_layout"`
}

type Features13 struct {
	Synchronization2 bool `toml:"synchronization2"`
	DynamicRendering bool `toml:"dynamic_rendering"`
	Maintenance4     bool `toml:"maintenance4"`
}

type Device struct {
	Extensions []string   `toml:"extensions"`
	PreferGPU  string     `toml:"prefer_gpu"`
	Vulkan10   Features10 `toml:"vulkan10"`
	Vulkan11   Features11 `toml:"vulkan11"`
	Vulkan12   Features12 `toml:"vulkan12"`
	Vulkan13   Features13 `toml:"vulkan13"`
}

type Renderer struct {
	FrameOverlap     uint8      `toml:"frame_overlap"`
	FenceTimeoutMS   uint32     `toml:"fence_timeout_ms"`
	DescriptorSets   uint32     `toml:"descriptor_sets_per_pool"`
	Validation       bool       `toml:"validation"`
	ShaderDir        string     `toml:"shader_dir"`
	HotReloadShaders bool       `toml:"hot_reload_shaders"`
	ClearColor       [4]float32 `toml:"clear_color"`
}

type Log struct {
	Level string `toml:"level"`
}

// Config is read once at startup. The renderer keeps a copy, so changes made
// after the context is started have no effect.
type Config struct {
	Window   Window   `toml:"window"`
	Device   Device   `toml:"device"`
	Renderer Renderer `toml:"renderer"`
	Log      Log      `toml:"log"`

	ValidationCallback ValidationCallback `toml:"-"`
}

// Default returns the built-in configuration.
func Default() Config {
	cfg := Config{}
	if err := toml.Unmarshal(defaultConfig, &cfg); err != nil {
		panic(errors.Wrap(err, "embedded default.toml"))
	}
	cfg.Renderer.Validation = validationDefault
	cfg.ValidationCallback = LogValidationMessage
	return cfg
}

// Load reads a TOML file on top of the defaults. Keys that are absent keep
// their default value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if err := Decode(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "decoding config %s", path)
	}
	return cfg, cfg.Validate()
}

// Decode merges TOML data into cfg.
func Decode(data []byte, cfg *Config) error {
	d := toml.NewDecoder(bytes.NewReader(data))
	d.DisallowUnknownFields()
	if err := d.Decode(cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return errors.Wrapf(core.ErrInvalidConfig, "line %d column %d: %s", row, col, derr.Error())
		}
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			return errors.Wrapf(core.ErrInvalidConfig, "%s", serr.String())
		}
		return err
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

// FenceTimeout is the fence wait limit used by the frame loop and submit contexts.
func (r Renderer) FenceTimeout() time.Duration {
	return time.Duration(r.FenceTimeoutMS) * time.Millisecond
}

func (c Config) Validate() error {
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return errors.Wrapf(core.ErrInvalidConfig, "window size %dx%d", c.Window.Width, c.Window.Height)
	}
	if c.Renderer.FrameOverlap < 1 {
		return errors.Wrap(core.ErrInvalidConfig, "frame_overlap must be at least 1")
	}
	if c.Renderer.DescriptorSets == 0 {
		return errors.Wrap(core.ErrInvalidConfig, "descriptor_sets_per_pool must be positive")
	}
	if c.Renderer.FenceTimeoutMS == 0 {
		return errors.Wrap(core.ErrInvalidConfig, "fence_timeout_ms must be positive")
	}
	return nil
}

// LogValidationMessage is the default validation callback. Warnings and
// errors go to the engine log, everything else is dropped.
func LogValidationMessage(severity Severity, layer string, code int32, message string) {
	switch severity {
	case SeverityError:
		core.LogError("validation [%s] code %d: %s", layer, code, message)
	case SeverityWarning, SeverityPerformance:
		core.LogWarn("validation %s [%s] code %d: %s", severity, layer, code, message)
	}
}
