package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// PolicyConfig holds the Project Service policy flags §6 lists as
// consumed by every project: whether the service pools all inferred
// projects into one, whether plugins may load from a config file's own
// directory, and the probe locations plugin resolution walks.
type PolicyConfig struct {
	UseSingleInferredProject bool     `mapstructure:"use_single_inferred_project"`
	AllowLocalPluginLoads    bool     `mapstructure:"allow_local_plugin_loads"`
	PluginProbeLocations     []string `mapstructure:"plugin_probe_locations"`
	GlobalPlugins            []string `mapstructure:"global_plugins"`
}

// DefaultPolicyConfig returns the default policy flags.
// LoadPolicyConfig starts from this value and unmarshals the policy
// document over it, so fields the document omits keep their defaults.
func DefaultPolicyConfig() *PolicyConfig {
	return &PolicyConfig{
		UseSingleInferredProject: false,
		AllowLocalPluginLoads:    false,
		PluginProbeLocations:     nil,
		GlobalPlugins:            nil,
	}
}

// LoadPolicyConfig reads a JSON policy document (if present) into a
// PolicyConfig, defaulting to DefaultPolicyConfig when the file is
// absent — same shape as the teacher's loadJawtConfig/loadAppConfig.
func LoadPolicyConfig(path string) (*PolicyConfig, error) {
	cfg := DefaultPolicyConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading policy config: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling policy config: %w", err)
	}
	return cfg, nil
}

// CompilerOptions is the subset of compiler flags the Project core
// itself inspects (module resolution, JS interop, emit). A real
// implementation would carry the full compiler option surface; the
// core only needs to know about the fields §4.1/§4.4 name.
type CompilerOptions struct {
	AllowJs                bool `mapstructure:"allow_js"`
	AllowNonTsExtensions   bool `mapstructure:"allow_non_ts_extensions"`
	MaxNodeModuleJsDepth   *int `mapstructure:"max_node_module_js_depth"`
	ModuleResolution       string `mapstructure:"module_resolution"`
	BaseUrl                string `mapstructure:"base_url"`
	Paths                  map[string][]string `mapstructure:"paths"`
	CheckJs                bool `mapstructure:"check_js"`
}

// Clone returns a deep copy so callers (Inferred.setCompilerOptions in
// particular, per §4.4) never mutate the caller-supplied options.
func (o *CompilerOptions) Clone() *CompilerOptions {
	if o == nil {
		return &CompilerOptions{}
	}
	clone := *o
	if o.MaxNodeModuleJsDepth != nil {
		v := *o.MaxNodeModuleJsDepth
		clone.MaxNodeModuleJsDepth = &v
	}
	if o.Paths != nil {
		clone.Paths = make(map[string][]string, len(o.Paths))
		for k, v := range o.Paths {
			cp := make([]string, len(v))
			copy(cp, v)
			clone.Paths[k] = cp
		}
	}
	return &clone
}

// AffectsModuleResolution reports whether two option sets differ in a
// way that invalidates module-resolution results — the predicate
// setCompilerOptions (§4.1) uses to decide whether to clear the
// unresolved-imports index and the resolution cache.
func (o *CompilerOptions) AffectsModuleResolution(other *CompilerOptions) bool {
	if o == nil || other == nil {
		return o != other
	}
	if o.ModuleResolution != other.ModuleResolution || o.BaseUrl != other.BaseUrl {
		return true
	}
	if o.AllowJs != other.AllowJs {
		return true
	}
	if len(o.Paths) != len(other.Paths) {
		return true
	}
	for k, v := range o.Paths {
		ov, ok := other.Paths[k]
		if !ok || len(v) != len(ov) {
			return true
		}
		for i := range v {
			if v[i] != ov[i] {
				return true
			}
		}
	}
	return false
}

// LoadCompilerOptions reads a tsconfig-equivalent JSON document into
// CompilerOptions via viper/mapstructure, the same pipeline the
// teacher's internal/config used for jawt.config.json.
func LoadCompilerOptions(path string) (*CompilerOptions, error) {
	opts := &CompilerOptions{}
	if _, err := os.Stat(path); err != nil {
		return opts, fmt.Errorf("config file not found: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading compiler options from %s: %w", filepath.Base(path), err)
	}
	if err := v.Unmarshal(opts); err != nil {
		return nil, fmt.Errorf("error unmarshalling compiler options: %w", err)
	}
	return opts, nil
}
