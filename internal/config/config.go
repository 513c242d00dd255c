// Package config loads the fastfam runtime configuration from a TOML file,
// mirroring the shape of the teacher repo's gwas.Config: a single struct with
// toml tags, loaded once at process entry and passed down explicitly.
package config

import (
	"github.com/BurntSushi/toml"
)

// Config is the whole of the pipeline's runtime configuration. CLI flags in
// cmd/fastfam override the handful of fields that are naturally per-run
// rather than per-cohort (inverse method, save/load inverse, rel-only).
type Config struct {
	// Inputs.
	PhenoFile   string `toml:"pheno_file"`
	CovFile     string `toml:"cov_file"`
	GrmSparse   string `toml:"grm_sparse"` // basename, expects <base>.grm.id/.grm.sp
	GenoBinPath string `toml:"geno_bin_path"`

	// Output.
	OutPrefix     string `toml:"out_prefix"`
	SaveBin       bool   `toml:"save_bin"`
	NoMarkerIDs   bool   `toml:"no_marker"`
	SavePhenoPath string `toml:"save_pheno_path"`

	// Variance components: when either is nonzero, HE is skipped (spec §4.3
	// "Override").
	Vg float64 `toml:"vg"`
	Ve float64 `toml:"ve"`

	// HE regression mode: "full" (Mode A, default) or "rel-only" (Mode B).
	HEMode string `toml:"he_mode"`

	// V-inverse.
	InvMethod string `toml:"inv_method"` // ldlt (default), llt, cg, tcg, lscg
	SaveInv   bool   `toml:"save_inv"`
	LoadInv   string `toml:"load_inv"` // basename of a previously saved <base>.grm.id/.grm.inv

	// Output AF gating thresholds, adapted from gwas.FilterParams; defaults
	// mirror FastFAM.cpp's MAF_L_THRESH/MAF_U_THRESH constants.
	MafOutputLowerBound float64 `toml:"maf_output_lower_bound"`
	MafOutputUpperBound float64 `toml:"maf_output_upper_bound"`

	// Resources.
	NumThreads    int `toml:"num_threads"`
	MemoryLimitMB int `toml:"memory_limit_mb"`

	Debug bool `toml:"debug"`
}

// Default returns a Config with the same defaults FastFAM.cpp applies when a
// flag is absent.
func Default() *Config {
	return &Config{
		HEMode:               "full",
		InvMethod:            "ldlt",
		MafOutputLowerBound:  1e-5,
		MafOutputUpperBound:  1 - 1e-5,
		NumThreads:           0, // 0 means "all hardware threads", resolved by gls.Engine
		OutPrefix:            "out",
	}
}

// Load reads a TOML configuration file on top of Default().
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
