package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/abakhtiari/loopscope/internal/cache"
	"github.com/abakhtiari/loopscope/internal/causal"
	"github.com/abakhtiari/loopscope/internal/config"
	"github.com/abakhtiari/loopscope/internal/edit"
	"github.com/abakhtiari/loopscope/internal/mdl"
	"github.com/abakhtiari/loopscope/internal/topology"
)

// Exit codes: 1 usage, 2 the model text could not be parsed, 3 an edit
// batch had operations that could not apply.
const (
	exitUsage     = 1
	exitParse     = 2
	exitFailedOps = 3
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(exitUsage)
	}

	switch os.Args[1] {
	case "analyze":
		analyze(os.Args[2:])
	case "edit":
		editCmd(os.Args[2:])
	case "verify":
		verify(os.Args[2:])
	default:
		usage()
		os.Exit(exitUsage)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  loopscope analyze [--config <cfg.yaml>] [--loops-out <file>] [--connections-out <file>] <model.mdl or glob>...")
	fmt.Fprintln(os.Stderr, "  loopscope edit [--config <cfg.yaml>] --ops <ops.json> [--out <file.mdl>] <model.mdl>")
	fmt.Fprintln(os.Stderr, "  loopscope verify <model.mdl>...")
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
	return cfg
}

// expandArgs resolves glob patterns against the working directory. A plain
// path passes through even if it does not exist yet, so the read error is
// reported per file.
func expandArgs(args []string) []string {
	var out []string
	for _, a := range args {
		if !hasGlobMeta(a) {
			out = append(out, a)
			continue
		}
		matches, err := doublestar.FilepathGlob(a)
		if err != nil || len(matches) == 0 {
			fmt.Fprintf(os.Stderr, "no files match %s\n", a)
			os.Exit(exitUsage)
		}
		out = append(out, matches...)
	}
	return out
}

func hasGlobMeta(s string) bool {
	for _, ch := range s {
		if ch == '*' || ch == '?' || ch == '[' || ch == '{' {
			return true
		}
	}
	return false
}

func analyze(args []string) {
	var configPath string
	var loopsOut string
	var connectionsOut string
	var paths []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(exitUsage)
			}
			configPath = args[i]
		case "--loops-out":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--loops-out requires a value")
				os.Exit(exitUsage)
			}
			loopsOut = args[i]
		case "--connections-out":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--connections-out requires a value")
				os.Exit(exitUsage)
			}
			connectionsOut = args[i]
		default:
			paths = append(paths, args[i])
		}
	}
	if len(paths) == 0 {
		usage()
		os.Exit(exitUsage)
	}

	files := expandArgs(paths)
	if len(files) > 1 && (loopsOut != "" || connectionsOut != "") {
		fmt.Fprintln(os.Stderr, "--loops-out and --connections-out take a single model")
		os.Exit(exitUsage)
	}

	cfg := loadConfig(configPath)
	store, err := cache.Open(cfg.CacheDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}

	parseFailed := false
	for _, path := range files {
		if len(files) > 1 {
			fmt.Printf("== %s\n", path)
		}
		if err := analyzeOne(path, cfg, store, loopsOut, connectionsOut); err != nil {
			fmt.Fprintln(os.Stderr, err)
			parseFailed = true
		}
	}
	if parseFailed {
		os.Exit(exitParse)
	}
}

func analyzeOne(path string, cfg *config.Config, store *cache.Store, loopsOut, connectionsOut string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	text := string(data)

	m, err := mdl.Parse(text)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	tm := topology.Resolve(m, cfg.Table())
	for _, d := range m.Diags {
		fmt.Fprintf(os.Stderr, "%s: %s\n", path, d)
	}
	for _, d := range tm.Diags {
		fmt.Fprintf(os.Stderr, "%s: %s\n", path, d)
	}

	key := mdl.TextKey(text)
	report, err := store.LoadReport(key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			return err
		}
		g := causal.Build(tm.Causal)
		r := causal.FindLoops(g, cfg.Options())
		report = &r
		if err := store.SaveReport(key, report); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}

	if connectionsOut != "" {
		if err := writeJSON(connectionsOut, causal.ExportConnections(tm.Causal)); err != nil {
			return err
		}
	}
	if loopsOut != "" {
		return writeJSON(loopsOut, report)
	}
	return emitJSON(report)
}

func emitJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func editCmd(args []string) {
	var configPath string
	var opsPath string
	var outputPath string
	var paths []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(exitUsage)
			}
			configPath = args[i]
		case "--ops":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--ops requires a value")
				os.Exit(exitUsage)
			}
			opsPath = args[i]
		case "--out":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--out requires a value")
				os.Exit(exitUsage)
			}
			outputPath = args[i]
		default:
			paths = append(paths, args[i])
		}
	}
	if opsPath == "" || len(paths) != 1 {
		usage()
		os.Exit(exitUsage)
	}
	modelPath := paths[0]
	if outputPath == "" {
		outputPath = modelPath
	}

	cfg := loadConfig(configPath)

	opsData, err := os.ReadFile(opsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
	batch, err := edit.DecodeBatch(opsData)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}

	data, err := os.ReadFile(modelPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
	m, err := mdl.Parse(string(data))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", modelPath, err)
		os.Exit(exitParse)
	}

	res := edit.NewEditor(cfg.Table()).Apply(m, batch)

	if err := mdl.SelfCheck(m); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitParse)
	}
	if err := os.WriteFile(outputPath, []byte(mdl.Render(m)), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}

	if err := emitJSON(res); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	if res.Skipped > 0 {
		os.Exit(exitFailedOps)
	}
}

func verify(args []string) {
	if len(args) == 0 {
		usage()
		os.Exit(exitUsage)
	}
	failed := false
	for _, path := range expandArgs(args) {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			failed = true
			continue
		}
		if err := mdl.VerifyRoundTrip(string(data)); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		m, err := mdl.Parse(string(data))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		if err := mdl.SelfCheck(m); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("%s: ok\n", path)
	}
	if failed {
		os.Exit(exitParse)
	}
}
