package config

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/irtools/rangeprop/vrp"
)

// ConfigName is the file looked up in the analyzed directory and its
// parents.
const ConfigName = "rangeprop.conf"

type Config struct {
	// WidenAfter bounds revisits per value before widening kicks in.
	WidenAfter int `toml:"widen_after"`
	// NarrowPasses is the number of tightening sweeps after the fixpoint.
	NarrowPasses int `toml:"narrow_passes"`
	// Simplifications lists enabled simplifier rules. "all" enables the
	// whole catalog; "inherit" splices in the parent configuration's
	// list.
	Simplifications []string `toml:"simplifications"`
	// Trace enables the line-oriented rewrite trace.
	Trace bool `toml:"trace"`
}

var defaultConfig = Config{
	WidenAfter:      16,
	NarrowPasses:    2,
	Simplifications: []string{"all"},
}

func DefaultConfig() Config { return defaultConfig }

// Options translates a configuration into solver options. A nil rule set
// means the full catalog.
func (c Config) Options() vrp.Options {
	opts := vrp.Options{
		WidenAfter:   c.WidenAfter,
		NarrowPasses: c.NarrowPasses,
	}
	all := false
	rules := map[string]bool{}
	for _, name := range c.Simplifications {
		if name == "all" {
			all = true
			continue
		}
		rules[name] = true
	}
	if !all {
		opts.Rules = rules
	}
	return opts
}

type config struct {
	cfg  Config
	meta toml.MetaData
}

func mergeLists(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, el := range b {
		if el == "inherit" {
			out = append(out, a...)
		} else {
			out = append(out, el)
		}
	}
	return out
}

func normalizeList(list []string) []string {
	if len(list) > 1 {
		sort.Strings(list)
		nlist := make([]string, 0, len(list))
		nlist = append(nlist, list[0])
		for i, el := range list[1:] {
			if el != list[i] {
				nlist = append(nlist, el)
			}
		}
		list = nlist
	}

	for _, el := range list {
		if el == "inherit" {
			// This should never happen, because the default config
			// should not use "inherit"
			panic(`unresolved "inherit"`)
		}
		if el == "all" {
			return []string{"all"}
		}
	}

	return list
}

func (cfg config) Merge(ocfg config) config {
	if ocfg.meta.IsDefined("widen_after") {
		cfg.cfg.WidenAfter = ocfg.cfg.WidenAfter
	}
	if ocfg.meta.IsDefined("narrow_passes") {
		cfg.cfg.NarrowPasses = ocfg.cfg.NarrowPasses
	}
	if ocfg.meta.IsDefined("simplifications") {
		cfg.cfg.Simplifications = mergeLists(cfg.cfg.Simplifications, ocfg.cfg.Simplifications)
	}
	if ocfg.meta.IsDefined("trace") {
		cfg.cfg.Trace = ocfg.cfg.Trace
	}
	return cfg
}

func parseConfigs(dir string) ([]config, error) {
	var out []config

	for dir != "" {
		f, err := os.Open(filepath.Join(dir, ConfigName))
		if err == nil {
			var cfg Config
			meta, err := toml.NewDecoder(f).Decode(&cfg)
			f.Close()
			if err != nil {
				return nil, err
			}
			out = append(out, config{cfg, meta})
		} else if !os.IsNotExist(err) {
			return nil, err
		}
		ndir := filepath.Dir(dir)
		if ndir == dir {
			break
		}
		dir = ndir
	}
	out = append(out, config{
		cfg:  defaultConfig,
		meta: toml.MetaData{}, // meta of the base config should never be accessed
	})
	if len(out) < 2 {
		return out, nil
	}
	for i := 0; i < len(out)/2; i++ {
		out[i], out[len(out)-1-i] = out[len(out)-1-i], out[i]
	}
	return out, nil
}

func mergeConfigs(confs []config) Config {
	if len(confs) == 0 {
		// This shouldn't happen because we always have at least a
		// default config.
		panic("trying to merge zero configs")
	}
	if len(confs) == 1 {
		return confs[0].cfg
	}
	conf := confs[0]
	for _, oconf := range confs[1:] {
		conf = conf.Merge(oconf)
	}
	return conf.cfg
}

// Load reads the configuration in effect for dir: every rangeprop.conf
// from the filesystem root down to dir, nearer files overriding farther
// ones, all on top of the built-in defaults.
func Load(dir string) (Config, error) {
	confs, err := parseConfigs(dir)
	if err != nil {
		return Config{}, err
	}
	conf := mergeConfigs(confs)
	conf.Simplifications = normalizeList(conf.Simplifications)
	return conf, nil
}
