// ssotgen derives API contracts, database schemas, validation schemas, rules
// and test cases from canonical feature specifications, gates them through a
// consistency check, and maintains the feature index.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/term"

	"ssotgen/pkg/artifact"
	"ssotgen/pkg/config"
	"ssotgen/pkg/index"
	"ssotgen/pkg/lint"
	"ssotgen/pkg/llm"
	"ssotgen/pkg/pipeline"
	"ssotgen/pkg/store"
	"ssotgen/pkg/synth"
)

// Set via -ldflags at build time.
var (
	version   = "dev"
	gitCommit = "unknown"
)

const usage = `usage: ssotgen <command> [arguments]

commands:
  generate <spec.yaml>...   derive, validate and store artifacts for features
  validate <spec.yaml>...   re-check stored artifacts against specifications
  lookup <feature-id>       print the indexed artifact locations for a feature
  secrets set <NAME>        store an encrypted secret for this project
  version                   print version information

flags understood by generate and validate:
  -project <dir>    project directory (default ".")
  -provider <name>  override the drafting provider (openai|anthropic|ollama|template)
  -model <name>     override the drafting model
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "generate":
		err = runGenerate(ctx, os.Args[2:])
	case "validate":
		err = runValidate(ctx, os.Args[2:])
	case "lookup":
		err = runLookup(ctx, os.Args[2:])
	case "secrets":
		err = runSecrets(os.Args[2:])
	case "version":
		fmt.Printf("ssotgen %s (%s)\n", version, gitCommit)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "ssotgen: %v\n", err)
		os.Exit(1)
	}
}

// commonFlags holds the flags shared by generate and validate.
type commonFlags struct {
	projectDir string
	provider   string
	model      string
	args       []string
}

func parseCommon(name string, args []string) (*commonFlags, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	cf := &commonFlags{}
	fs.StringVar(&cf.projectDir, "project", ".", "project directory")
	fs.StringVar(&cf.provider, "provider", "", "drafting provider override")
	fs.StringVar(&cf.model, "model", "", "drafting model override")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cf.args = fs.Args()
	return cf, nil
}

func loadConfig(cf *commonFlags) (*config.Config, error) {
	cfg, err := config.Load(cf.projectDir)
	if err != nil {
		return nil, err
	}
	if cf.provider != "" {
		cfg.Generation.Provider = cf.provider
		if cf.model == "" {
			cfg.Generation.Model = defaultModelFor(cf.provider)
		}
	}
	if cf.model != "" {
		cfg.Generation.Model = cf.model
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultModelFor(provider string) string {
	switch provider {
	case config.ProviderAnthropic:
		return config.DefaultAnthropicModel
	case config.ProviderOllama:
		return config.DefaultOllamaModel
	default:
		return config.DefaultOpenAIModel
	}
}

func runGenerate(ctx context.Context, args []string) error {
	cf, err := parseCommon("generate", args)
	if err != nil {
		return err
	}
	if len(cf.args) == 0 {
		return fmt.Errorf("generate: at least one specification file required")
	}

	cfg, err := loadConfig(cf)
	if err != nil {
		return err
	}

	p, idx, err := buildPipeline(cf.projectDir, cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	specs := make(map[string][]byte, len(cf.args))
	for _, path := range cf.args {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		specs[path] = raw
	}

	outcomes := p.RunAll(ctx, specs)
	failed := 0
	for _, o := range outcomes {
		switch {
		case o.Err != nil:
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", o.Source, o.Err)
		case !o.Result.Stored:
			failed++
			fmt.Fprint(os.Stderr, o.Result.Report.Summary())
		default:
			fmt.Printf("%s: stored %s (%s)\n", o.Source, o.Result.FeatureID,
				o.Result.Elapsed.Round(time.Millisecond))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d features failed", failed, len(outcomes))
	}
	return nil
}

func runValidate(ctx context.Context, args []string) error {
	cf, err := parseCommon("validate", args)
	if err != nil {
		return err
	}
	if len(cf.args) == 0 {
		return fmt.Errorf("validate: at least one specification file required")
	}

	cfg, err := loadConfig(cf)
	if err != nil {
		return err
	}

	p, idx, err := buildValidatePipeline(cfg)
	if err != nil {
		return err
	}
	defer idx.Close()

	var reports []*lint.Report
	failed := 0
	for _, path := range cf.args {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		report, err := p.ValidateStored(ctx, raw)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			continue
		}
		reports = append(reports, report)
		if !report.Passed() {
			failed++
		}
	}
	for _, r := range reports {
		fmt.Print(r.Summary())
		if !r.Passed() {
			fmt.Println()
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d features inconsistent", failed, len(cf.args))
	}
	return nil
}

func runLookup(ctx context.Context, args []string) error {
	cf, err := parseCommon("lookup", args)
	if err != nil {
		return err
	}
	if len(cf.args) != 1 {
		return fmt.Errorf("lookup: exactly one feature id required")
	}

	cfg, err := loadConfig(cf)
	if err != nil {
		return err
	}
	idx, err := index.Open(cfg.Storage.IndexPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	entry, err := idx.Lookup(ctx, cf.args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s (updated %s)\n", entry.FeatureID, entry.UpdatedAt.Format(time.RFC3339))
	for _, kind := range artifact.Kinds() {
		fmt.Printf("  %-17s %s\n", kind, entry.Locations[kind])
	}
	return nil
}

func runSecrets(args []string) error {
	if len(args) != 2 || args[0] != "set" {
		return fmt.Errorf("usage: ssotgen secrets set <NAME>")
	}
	name := args[1]

	password, err := promptPassword("Secrets password: ")
	if err != nil {
		return err
	}

	secrets := map[string]string{}
	if config.SecretsFileExists(".") {
		if err := config.DecryptSecretsFile(".", password); err != nil {
			return err
		}
		for _, known := range []string{config.SecretOpenAIKey, config.SecretAnthropicKey} {
			if v, err := config.GetSecret(known); err == nil {
				secrets[known] = v
			}
		}
	}

	value, err := promptPassword(fmt.Sprintf("Value for %s: ", name))
	if err != nil {
		return err
	}
	secrets[name] = value

	if err := config.EncryptSecretsFile(".", password, secrets); err != nil {
		return err
	}
	fmt.Printf("stored %s in %s\n", name, filepath.Join(config.ProjectConfigDir, "secrets.json.enc"))
	return nil
}

// buildPipeline wires the full generate pipeline, including the drafting
// provider with its middleware chain.
func buildPipeline(projectDir string, cfg *config.Config) (*pipeline.Pipeline, *index.Index, error) {
	drafter, err := buildDrafter(projectDir, cfg)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(cfg.Storage.FeaturesDir)
	if err != nil {
		return nil, nil, err
	}
	idx, err := index.Open(cfg.Storage.IndexPath)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.New(synth.New(drafter), st, idx, pipeline.NewMetrics()), idx, nil
}

// buildValidatePipeline wires a pipeline without a drafting provider; the
// validate command only re-checks stored artifacts.
func buildValidatePipeline(cfg *config.Config) (*pipeline.Pipeline, *index.Index, error) {
	st, err := store.New(cfg.Storage.FeaturesDir)
	if err != nil {
		return nil, nil, err
	}
	idx, err := index.Open(cfg.Storage.IndexPath)
	if err != nil {
		return nil, nil, err
	}
	return pipeline.New(synth.New(nil), st, idx, nil), idx, nil
}

func buildDrafter(projectDir string, cfg *config.Config) (synth.DraftProvider, error) {
	gen := cfg.Generation

	var base llm.Client
	switch gen.Provider {
	case config.ProviderTemplate:
		return synth.TemplateDrafter{}, nil
	case config.ProviderOllama:
		base = llm.NewOllamaClient(gen.OllamaHost, gen.Model)
	case config.ProviderOpenAI, config.ProviderAnthropic:
		key, err := resolveAPIKey(projectDir, cfg)
		if err != nil {
			return nil, err
		}
		if gen.Provider == config.ProviderOpenAI {
			base = llm.NewOpenAIClient(key, gen.Model)
		} else {
			base = llm.NewAnthropicClient(key, gen.Model)
		}
	default:
		return nil, fmt.Errorf("unknown provider %q", gen.Provider)
	}

	policy := llm.NewRetryPolicy(llm.RetryConfig{
		MaxAttempts:   gen.MaxAttempts,
		InitialDelay:  time.Duration(gen.InitialDelayMS) * time.Millisecond,
		MaxDelay:      time.Duration(gen.MaxDelayMS) * time.Millisecond,
		BackoffFactor: gen.BackoffFactor,
		Jitter:        true,
	})
	client := llm.Chain(base,
		llm.RetryMiddleware(policy),
		llm.TimeoutMiddleware(time.Duration(gen.RequestTimeoutSec)*time.Second),
		llm.MetricsMiddleware(llm.NewMetricsRecorder()),
	)
	return synth.NewLLMDrafter(client, synth.DraftOptions{
		Temperature:      gen.Temperature,
		MaxTokens:        gen.MaxTokens,
		MaxContextTokens: gen.MaxContextTokens,
	}), nil
}

// resolveAPIKey finds the provider key: environment first, then the encrypted
// secrets file after a password prompt.
func resolveAPIKey(projectDir string, cfg *config.Config) (string, error) {
	name := cfg.APIKeySecret()
	if key, err := config.GetSecret(name); err == nil {
		return key, nil
	}
	if !config.SecretsFileExists(projectDir) {
		return "", fmt.Errorf("no %s in environment and no secrets file; run 'ssotgen secrets set %s'", name, name)
	}
	password, err := promptPassword("Secrets password: ")
	if err != nil {
		return "", err
	}
	if err := config.DecryptSecretsFile(projectDir, password); err != nil {
		return "", err
	}
	return config.GetSecret(name)
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(raw), nil
}
