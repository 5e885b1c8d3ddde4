// Package config loads the .matrixci.yaml project configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bartekus/matrixci/internal/matrix"
	"github.com/bartekus/matrixci/internal/runner"
	"github.com/bartekus/matrixci/internal/workspace"
)

// FileName is the configuration file looked up at the project root.
const FileName = ".matrixci.yaml"

// Defaults.
const (
	DefaultManifest      = "Cargo.toml"
	DefaultManifestField = "package.rust-version"
	DefaultPinned        = "rust-toolchain"
	DefaultWorkDir       = ".matrixci/work"
	DefaultReportDir     = ".matrixci/run"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// Config is the project configuration of a run.
type Config struct {
	Manifest      string                `yaml:"manifest"`
	ManifestField string                `yaml:"manifest_field"`
	Pinned        string                `yaml:"pinned"`
	Platforms     []matrix.PlatformSpec `yaml:"platforms"`
	Stages        Stages                `yaml:"stages"`
	Concurrency   int                   `yaml:"concurrency"`
	StageTimeout  Duration              `yaml:"stage_timeout"`
	WorkDir       string                `yaml:"work_dir"`
	ReportDir     string                `yaml:"report_dir"`
	KeepWorkDirs  bool                  `yaml:"keep_work_dirs"`
	Env           map[string]string     `yaml:"env"`
	Log           Log                   `yaml:"log"`

	// Root is the project root the relative paths above resolve against.
	Root string `yaml:"-"`
}

// Stages holds the command line of each pipeline stage.
type Stages struct {
	Setup []string `yaml:"setup"`
	Build []string `yaml:"build"`
	Test  []string `yaml:"test"`
	Style []string `yaml:"style"`
	Doc   []string `yaml:"doc"`
}

// Commands returns the configured stages keyed by name. Unset stages are omitted.
func (s Stages) Commands() map[runner.StageName][]string {
	out := make(map[runner.StageName][]string, len(runner.StageOrder))
	for name, args := range map[runner.StageName][]string{
		runner.StageSetup: s.Setup,
		runner.StageBuild: s.Build,
		runner.StageTest:  s.Test,
		runner.StageStyle: s.Style,
		runner.StageDoc:   s.Doc,
	} {
		if len(args) > 0 {
			out[name] = args
		}
	}
	return out
}

// Log configures the slog logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a time.Duration written as a Go duration string ("15m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Load reads FileName from root and applies defaults. It does not validate.
func Load(root string) (*Config, error) {
	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(root, data)
}

// Parse decodes configuration bytes and applies defaults. Unknown keys are errors.
func Parse(root string, data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding %s: %w", FileName, err)
	}
	cfg.Root = root
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Manifest == "" {
		c.Manifest = DefaultManifest
	}
	if c.ManifestField == "" {
		c.ManifestField = DefaultManifestField
	}
	if c.Pinned == "" {
		c.Pinned = DefaultPinned
	}
	if c.WorkDir == "" {
		c.WorkDir = DefaultWorkDir
	}
	if c.ReportDir == "" {
		c.ReportDir = DefaultReportDir
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

// Validate checks the configuration. It reports every problem at once.
// An empty platform list is left to the matrix expander, which owns that error.
func (c *Config) Validate() error {
	var problems []string

	seen := make(map[matrix.PlatformSpec]bool, len(c.Platforms))
	for i, p := range c.Platforms {
		if strings.TrimSpace(p.OS) == "" || strings.TrimSpace(p.Triple) == "" {
			problems = append(problems, fmt.Sprintf("platforms[%d]: os and triple are required", i))
			continue
		}
		if seen[p] {
			problems = append(problems, fmt.Sprintf("platforms[%d]: duplicate platform %s", i, p))
		}
		seen[p] = true
	}

	cmds := c.Stages.Commands()
	for _, name := range runner.StageOrder {
		if _, ok := cmds[name]; !ok {
			problems = append(problems, fmt.Sprintf("stages.%s: command is required", name))
		}
	}

	if c.Concurrency < 0 {
		problems = append(problems, "concurrency: must not be negative")
	}
	if c.StageTimeout < 0 {
		problems = append(problems, "stage_timeout: must not be negative")
	}
	problems = append(problems, c.validateDirs()...)

	envKeys := make([]string, 0, len(c.Env))
	for k := range c.Env {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	for _, k := range envKeys {
		if workspace.Reserved(k) {
			problems = append(problems, fmt.Sprintf("env.%s: reserved per-job variable", k))
		}
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log.level: unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("log.format: unknown format %q", c.Log.Format))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// validateDirs rejects output directories whose removal would reach the
// checkout, and work directories that share a tree with stage logs.
func (c *Config) validateDirs() []string {
	root, err := filepath.Abs(c.Path("."))
	if err != nil {
		return []string{fmt.Sprintf("root: %v", err)}
	}
	report, err := filepath.Abs(c.Path(c.ReportDir))
	if err != nil {
		return []string{fmt.Sprintf("report_dir: %v", err)}
	}
	work, err := filepath.Abs(c.Path(c.WorkDir))
	if err != nil {
		return []string{fmt.Sprintf("work_dir: %v", err)}
	}

	var problems []string
	if within(root, report) {
		problems = append(problems, fmt.Sprintf("report_dir: %s contains the project root", c.ReportDir))
	}
	if within(root, work) {
		problems = append(problems, fmt.Sprintf("work_dir: %s contains the project root", c.WorkDir))
	}
	logs := filepath.Join(report, "logs")
	if within(work, logs) || within(logs, work) {
		problems = append(problems, fmt.Sprintf("work_dir: %s overlaps the report log directory", c.WorkDir))
	}
	return problems
}

// within reports whether path equals dir or lies below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Path resolves p against the project root.
func (c *Config) Path(p string) string {
	if filepath.IsAbs(p) || c.Root == "" {
		return p
	}
	return filepath.Join(c.Root, p)
}
