package main

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/einsgrad-ml/einsgrad/expr"
	"github.com/einsgrad-ml/einsgrad/grad"
	"github.com/einsgrad-ml/einsgrad/rules"
)

var config Config

// Config is the YAML configuration accepted via --config. It extends the
// built-in scalar rule table with user-defined operators.
type Config struct {
	Verbose bool       `yaml:"verbose"`
	Rules   []RuleSpec `yaml:"rules"`
}

// RuleSpec is one scalar derivative rule in configuration form. The template
// is an expression over ?a0..?aN placeholders, for example "mul(2, ?a0)" for
// d(square(x))/dx.
type RuleSpec struct {
	Op       string `yaml:"op"`
	Arity    int    `yaml:"arity"`
	Pos      int    `yaml:"pos"`
	Template string `yaml:"template"`
}

func loadConfig(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func buildEngine() *grad.Engine {
	src := rules.DefaultSource()
	for _, spec := range config.Rules {
		tpl, err := expr.Parse(spec.Template)
		if err != nil {
			exitf("rule for %s/%d pos %d: %v", spec.Op, spec.Arity, spec.Pos, err)
		}
		src.Register(&rules.ScalarRule{
			Op:       spec.Op,
			Arity:    spec.Arity,
			Pos:      spec.Pos,
			Template: tpl,
		})
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if verbose || config.Verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return grad.NewEngine(grad.Config{Source: src, Logger: logger})
}
