// Command fastfam runs the mixed-linear-model GWAS scan (spec.md §2 SYSTEM
// OVERVIEW): Sample Aligner, Phenotype Conditioner, HE variance estimation,
// V-Inverse construction, and the per-marker GLS engine, in that order.
// Flag parsing follows the corpus's plain stdlib `flag` convention
// (carbocation-genomisc/cmd/regenie2bolt, other_examples/zmaroti-correctKin):
// one TOML config file plus a handful of per-run overrides, matching spec §6's
// enumerated configuration options.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"go.dedis.ch/onet/v3/log"
	"gonum.org/v1/gonum/mat"

	"github.com/raulk/go-watchdog"

	"github.com/hcholab-fastfam/fastfam-go/internal/align"
	"github.com/hcholab-fastfam/fastfam-go/internal/condition"
	"github.com/hcholab-fastfam/fastfam-go/internal/config"
	"github.com/hcholab-fastfam/fastfam-go/internal/diagnostics"
	"github.com/hcholab-fastfam/fastfam-go/internal/ferr"
	"github.com/hcholab-fastfam/fastfam-go/internal/geno"
	"github.com/hcholab-fastfam/fastfam-go/internal/gls"
	"github.com/hcholab-fastfam/fastfam-go/internal/herit"
	"github.com/hcholab-fastfam/fastfam-go/internal/result"
	"github.com/hcholab-fastfam/fastfam-go/internal/sparse"
	"github.com/hcholab-fastfam/fastfam-go/internal/vinv"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML configuration file (required)")
		genoPath   = flag.String("geno-bin", "", "override: genotype stream file path")
		markerMeta = flag.String("markers", "", "override: marker metadata sidecar path")

		grmSparse  = flag.String("grm-sparse", "", "override: sparse GRM basename")
		geOverride = flag.String("ge", "", "override: explicit \"Vg,Ve\", skips HE")
		invMethod  = flag.String("inv-method", "", "override: ldlt|llt|cg|tcg|lscg")
		saveInv    = flag.Bool("save-inv", false, "persist Vinv and exit before the marker loop")
		loadInv    = flag.String("load-inv", "", "override: load a persisted Vinv basename, skip HE/build")
		relOnly    = flag.Bool("rel-only", false, "use HE Mode B instead of Mode A")
		saveBin    = flag.Bool("save-bin", false, "write binary result output")
		noMarker   = flag.Bool("no-marker", false, "omit marker metadata from results")
		savePheno  = flag.String("save-pheno", "", "override: dump conditioned phenotype to this path")
		out        = flag.String("out", "", "override: output prefix")
	)
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fastfam -config <path.toml> [overrides]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	applyOverrides(cfg, *genoPath, *grmSparse, *geOverride, *invMethod, *loadInv, *savePheno, *out,
		*saveInv, *relOnly, *saveBin, *noMarker)

	if cfg.NumThreads > 0 {
		runtime.GOMAXPROCS(cfg.NumThreads)
	}

	if err := run(cfg, *markerMeta); err != nil {
		log.Fatal(err)
	}
}

func applyOverrides(cfg *config.Config, genoPath, grmSparse, geOverride, invMethod, loadInv, savePheno, out string,
	saveInv, relOnly, saveBin, noMarker bool) {
	if genoPath != "" {
		cfg.GenoBinPath = genoPath
	}
	if grmSparse != "" {
		cfg.GrmSparse = grmSparse
	}
	if geOverride != "" {
		parts := strings.Split(geOverride, ",")
		if len(parts) != 2 {
			log.Fatal("-ge expects \"Vg,Ve\"")
		}
		vg, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		ve, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil {
			log.Fatal("-ge values must be numeric")
		}
		cfg.Vg, cfg.Ve = vg, ve
	}
	if invMethod != "" {
		cfg.InvMethod = invMethod
	}
	if saveInv {
		cfg.SaveInv = true
	}
	if loadInv != "" {
		cfg.LoadInv = loadInv
	}
	if relOnly {
		cfg.HEMode = string(herit.ModeRelOnly)
	}
	if saveBin {
		cfg.SaveBin = true
	}
	if noMarker {
		cfg.NoMarkerIDs = true
	}
	if savePheno != "" {
		cfg.SavePhenoPath = savePheno
	}
	if out != "" {
		cfg.OutPrefix = out
	}
}

func run(cfg *config.Config, markerMetaPath string) error {
	phenoIDs, phenoVals, err := loadPheno(cfg.PhenoFile)
	if err != nil {
		return err
	}

	var covarIDs []string
	var covarDense *mat.Dense
	if cfg.CovFile != "" {
		covarIDs, covarDense, err = loadCovar(cfg.CovFile)
		if err != nil {
			return err
		}
	}

	var grmIDs []string
	var grmMat *sparse.Sym
	if cfg.GrmSparse != "" {
		grmIDs, err = vinv.LoadGRMIds(cfg.GrmSparse)
		if err != nil {
			return err
		}
		grmMat, err = vinv.LoadGRMMatrix(cfg.GrmSparse, len(grmIDs))
		if err != nil {
			return err
		}
	}

	al, err := align.Align(phenoIDs, nilIfEmpty(covarIDs), nilIfEmpty(grmIDs))
	if err != nil {
		return err
	}
	n := len(al.Canonical)
	log.LLvl1("canonical cohort size:", n)

	y := align.ApplyVector(phenoVals, al.PhenoPerm)

	var covarAligned *mat.Dense
	if covarDense != nil {
		covarAligned = align.ApplyMatrixRows(covarDense, al.CovarPerm)
	}

	if err := condition.Condition(y, covarAligned); err != nil {
		return err
	}

	if cfg.SavePhenoPath != "" {
		if err := result.WritePheno(cfg.SavePhenoPath, y); err != nil {
			return err
		}
	}

	var a *sparse.Sym
	if grmMat != nil {
		a = vinv.Permute(grmMat, al.GRMPerm)
	}

	dispatch, err := resolveDispatch(cfg, a, y, al.Canonical)
	if err != nil {
		return err
	}

	if cfg.SaveInv {
		if err := vinv.Save(cfg.OutPrefix, al.Canonical, dispatch.Vinv); err != nil {
			return err
		}
		log.LLvl1("saved Vinv, exiting before the marker loop")
		return nil
	}

	if cfg.GenoBinPath == "" {
		log.LLvl1("no genotype stream configured, stopping after variance-component stage")
		return nil
	}

	markers, err := loadMarkerMeta(markerMetaPath)
	if err != nil {
		return err
	}
	streamer, err := geno.NewFileStreamer(cfg.GenoBinPath, n, markers)
	if err != nil {
		return err
	}
	defer streamer.Close()

	stopWatchdog := startWatchdog(cfg)
	defer stopWatchdog()

	engine := &gls.Engine{Y: y, Dispatch: dispatch, NumWorkers: cfg.NumThreads}
	stats, err := engine.Run(streamer)
	if err != nil {
		return err
	}

	if err := result.Write(result.Options{
		OutPrefix:     cfg.OutPrefix,
		Binary:        cfg.SaveBin,
		NoMarkerIDs:   cfg.NoMarkerIDs,
		MafLowerBound: cfg.MafOutputLowerBound,
		MafUpperBound: cfg.MafOutputUpperBound,
	}, markers, stats); err != nil {
		return err
	}

	diagnostics.Summarize(stats).Log()
	return nil
}

// resolveDispatch determines the {Mixed(Vinv), Ols} dispatch (spec §9 sum
// type) per the --load-inv / --ge / HE-significance rules of spec §4.3-4.4.
func resolveDispatch(cfg *config.Config, a *sparse.Sym, y []float64, canonical []string) (gls.Dispatch, error) {
	if cfg.LoadInv != "" {
		loaded, ok, err := vinv.Load(cfg.LoadInv, canonical)
		if err != nil {
			return gls.Dispatch{}, err
		}
		if !ok {
			log.LLvl1("loaded inverse is the OLS sentinel, using OLS fallback")
			return gls.Dispatch{Ols: true}, nil
		}
		return gls.Dispatch{Vinv: loaded}, nil
	}

	if a == nil {
		log.LLvl1("no GRM configured, using OLS")
		return gls.Dispatch{Ols: true}, nil
	}

	var vg, ve float64
	if cfg.Vg != 0 || cfg.Ve != 0 {
		vg, ve = cfg.Vg, cfg.Ve
	} else {
		mode := herit.ModeFull
		if cfg.HEMode == string(herit.ModeRelOnly) {
			mode = herit.ModeRelOnly
		}
		res, err := herit.Estimate(a, y, mode)
		if err != nil {
			return gls.Dispatch{}, err
		}
		log.LLvl1("HE estimate: Vg=", res.Vg, "Ve=", res.Ve, "chi2=", res.ChiSq, "p=", res.P)
		if !res.IsSignificant {
			log.Warn("Vg not significant (p>0.05), degrading to OLS:", ferr.EVgNotSignificant)
			return gls.Dispatch{Ols: true}, nil
		}
		vg, ve = res.Vg, res.Ve
	}

	vinvMat, err := vinv.Build(a, vg, ve, sparse.Method(cfg.InvMethod))
	if err != nil {
		return gls.Dispatch{}, err
	}
	return gls.Dispatch{Vinv: vinvMat}, nil
}

// startWatchdog wraps the marker loop with a heap-driven watchdog per
// SPEC_FULL.md's DOMAIN STACK entry for go-watchdog, grounded on
// lmm/regenie_test.go's watchdog.HeapDriven usage. A zero memory limit
// disables the watchdog (no-op stop function).
func startWatchdog(cfg *config.Config) func() {
	if cfg.MemoryLimitMB <= 0 {
		return func() {}
	}
	limitBytes := uint64(cfg.MemoryLimitMB) * 1024 * 1024
	err, stopFn := watchdog.HeapDriven(limitBytes, 40, watchdog.NewAdaptivePolicy(0.5))
	if err != nil {
		log.Warn("watchdog unavailable:", err)
		return func() {}
	}
	return stopFn
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}
