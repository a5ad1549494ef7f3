// Package platform describes a simulated platform in YAML and builds it.
//
//	name: pingpong
//	ring_size: 32
//	domains:
//	  - name: Soc
//	    frequency: 100MHz
//	components:
//	  - name: Pinger
//	    kind: pinger
//	    domain: Soc
//	    params:
//	      count: 10
//	bindings:
//	  - master: Pinger.Mem
//	    slave: Responder.In
package platform

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/sarchlab/vpsim/sim/clock"
	"github.com/sarchlab/vpsim/sim/modeling"
	"github.com/sarchlab/vpsim/sim/timing"
)

// ErrInvalidConfig is wrapped by every validation error.
var ErrInvalidConfig = errors.New("invalid platform config")

// Config is a platform description.
type Config struct {
	Name       string            `yaml:"name"`
	RingSize   int               `yaml:"ring_size,omitempty"`
	KeepAlive  bool              `yaml:"keep_alive,omitempty"`
	Domains    []DomainConfig    `yaml:"domains"`
	Components []ComponentConfig `yaml:"components"`
	Bindings   []BindingConfig   `yaml:"bindings"`
}

// DomainConfig describes a clock domain.
type DomainConfig struct {
	Name      string `yaml:"name"`
	Frequency string `yaml:"frequency"`
}

// ComponentConfig describes a component instance.
type ComponentConfig struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`
	Domain string `yaml:"domain,omitempty"`
	Params Params `yaml:"params,omitempty"`
}

// BindingConfig describes a binding between two ports given by full name.
type BindingConfig struct {
	Master string `yaml:"master"`
	Slave  string `yaml:"slave"`
	MuxID  *int   `yaml:"mux_id,omitempty"`
}

// Params holds the kind-specific parameters of a component. They are decoded
// by the component's factory.
type Params struct {
	node *yaml.Node
}

// UnmarshalYAML keeps the node for later decoding.
func (p *Params) UnmarshalYAML(n *yaml.Node) error {
	p.node = n
	return nil
}

// IsZero reports whether no parameters were given.
func (p Params) IsZero() bool {
	return p.node == nil
}

// Decode decodes the parameters into v. Without parameters v is left
// untouched, so callers fill in defaults first.
func (p Params) Decode(v any) error {
	if p.node == nil {
		return nil
	}

	return p.node.Decode(v)
}

// Load reads a platform description from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read platform config")
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}

	return cfg, nil
}

// Parse decodes and validates a platform description.
func Parse(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	cfg := &Config{}
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrap(err, "decode platform config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks names and cross references.
func (c *Config) Validate() error {
	if c.RingSize != 0 && !clock.IsPowerOfTwo(c.RingSize) {
		return errors.Wrapf(ErrInvalidConfig,
			"ring_size %d is not a power of two", c.RingSize)
	}

	domains := make(map[string]bool)
	for _, d := range c.Domains {
		if err := modeling.ValidateName(d.Name); err != nil {
			return errors.Wrapf(ErrInvalidConfig, "domain: %s", err)
		}

		if domains[d.Name] {
			return errors.Wrapf(ErrInvalidConfig, "duplicated domain %s", d.Name)
		}
		domains[d.Name] = true

		if _, err := timing.ParseFreq(d.Frequency); err != nil {
			return errors.Wrapf(ErrInvalidConfig, "domain %s: %s", d.Name, err)
		}
	}

	comps := make(map[string]bool)
	for _, comp := range c.Components {
		if err := modeling.ValidateName(comp.Name); err != nil {
			return errors.Wrapf(ErrInvalidConfig, "component: %s", err)
		}

		if comps[comp.Name] {
			return errors.Wrapf(ErrInvalidConfig,
				"duplicated component %s", comp.Name)
		}
		comps[comp.Name] = true

		if comp.Kind == "" {
			return errors.Wrapf(ErrInvalidConfig,
				"component %s has no kind", comp.Name)
		}

		if comp.Domain != "" && !domains[comp.Domain] {
			return errors.Wrapf(ErrInvalidConfig,
				"component %s uses unknown domain %s", comp.Name, comp.Domain)
		}
	}

	for _, b := range c.Bindings {
		for _, end := range []string{b.Master, b.Slave} {
			compName, _, ok := modeling.SplitPortName(end)
			if !ok {
				return errors.Wrapf(ErrInvalidConfig,
					"binding end %q is not Component.Port", end)
			}

			if !comps[compName] {
				return errors.Wrapf(ErrInvalidConfig,
					"binding end %s uses unknown component %s", end, compName)
			}
		}
	}

	return nil
}
