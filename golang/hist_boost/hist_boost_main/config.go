package main

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tarstars/hist_boosting/golang/hist_boost/hbl"
)

//EvalConfig is one named evaluation set.
type EvalConfig struct {
	Name string `mapstructure:"name"`
	Path string `mapstructure:"path"`
}

//DataConfig holds the data locations, see dataset.ParseURI for their syntax.
type DataConfig struct {
	Train string `mapstructure:"train"`
}

type ModelConfig struct {
	Path string `mapstructure:"path"`
}

type PredictConfig struct {
	Input        string `mapstructure:"input"`
	Output       string `mapstructure:"output"`
	OutputMargin bool   `mapstructure:"output_margin"`
	TreeLimit    int    `mapstructure:"tree_limit"`
}

type GraphConfig struct {
	Format    string `mapstructure:"format"`
	Directory string `mapstructure:"directory"`
	Prefix    string `mapstructure:"prefix"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

//Config is the content of hist_boost.yaml. Every key may be overridden by an
//environment variable such as HISTBOOST_ROUNDS or HISTBOOST_MODEL_PATH.
type Config struct {
	Data    DataConfig        `mapstructure:"data"`
	Params  map[string]string `mapstructure:"params"`
	Rounds  int               `mapstructure:"rounds"`
	Evals   []EvalConfig      `mapstructure:"evals"`
	Model   ModelConfig       `mapstructure:"model"`
	Predict PredictConfig     `mapstructure:"predict"`
	Graph   GraphConfig       `mapstructure:"graph"`
	Log     LogConfig         `mapstructure:"log"`
	Metrics MetricsConfig     `mapstructure:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rounds", 10)
	v.SetDefault("model.path", "hist_boost_model.json")
	v.SetDefault("predict.output", "prediction.npy")
	v.SetDefault("graph.format", "svg")
	v.SetDefault("graph.directory", ".")
	v.SetDefault("graph.prefix", "tree")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
}

//loadConfig reads the config file (optional when empty), then the environment, then the
//flags listed in bindings as flag name -> config key.
func loadConfig(configFile string, flags *pflag.FlagSet, bindings map[string]string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("histboost")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", configFile)
		}
	}
	for name, key := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			return nil, errors.Errorf("no flag %q to bind to %s", name, key)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if cfg.Rounds < 0 {
		return nil, errors.Wrapf(hbl.ErrInvalidConfig, "rounds must be non-negative, got %d", cfg.Rounds)
	}
	return &cfg, nil
}

//BoosterParams applies the params section to the defaults in key order.
func (cfg *Config) BoosterParams() (hbl.Params, error) {
	params := hbl.DefaultParams()
	keys := make([]string, 0, len(cfg.Params))
	for key := range cfg.Params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := params.Set(key, cfg.Params[key]); err != nil {
			return params, err
		}
	}
	return params, params.Validate()
}
