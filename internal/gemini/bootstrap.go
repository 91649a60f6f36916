package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/jonathan/codecraft/internal/prompts"
	"github.com/jonathan/codecraft/internal/types"
	"gopkg.in/yaml.v3"
)

// Paths of the generated files, relative to the repository root.
const (
	ConfigDir  = ".gemini"
	ConfigFile = ".gemini/config.yaml"
	IgnoreFile = ".geminiignore"
	NoteFile   = ".gemini/README.md"
)

// NotAvailable is rendered in place of any template value that is missing.
const NotAvailable = "not available"

const backupTimeLayout = "20060102T150405.000000000Z"

// TemplateContext carries the values substituted into the configuration templates.
// Every field is optional.
type TemplateContext struct {
	ProjectName string
	Category    string
	Difficulty  string
	TechStack   []string
	Analysis    *types.AnalysisData
	GeneratedAt time.Time
}

func (c TemplateContext) values() map[string]string {
	values := map[string]string{
		"ProjectName": strings.TrimSpace(c.ProjectName),
		"Category":    strings.TrimSpace(c.Category),
		"Difficulty":  strings.TrimSpace(c.Difficulty),
		"TechStack":   joinNonEmpty(c.TechStack),
	}
	if !c.GeneratedAt.IsZero() {
		values["GeneratedAt"] = c.GeneratedAt.UTC().Format(time.RFC3339)
	}
	if c.Analysis != nil {
		values["AnalysisSummary"] = strings.TrimSpace(c.Analysis.Summary)
		if score, ok := c.Analysis.Scores["overall"]; ok {
			values["OverallScore"] = strconv.Itoa(score)
		}
	}
	return values
}

// Render substitutes ctx into template. Placeholders without a value render as
// NotAvailable.
func Render(template string, ctx TemplateContext) string {
	return prompts.FormatWithDefault(template, ctx.values(), NotAvailable)
}

// RenderYAML is Render with every value emitted as a double-quoted YAML scalar,
// so that arbitrary project names and summaries keep the document well formed.
func RenderYAML(template string, ctx TemplateContext) string {
	values := ctx.values()
	for key, value := range values {
		if value != "" {
			values[key] = yamlQuote(value)
		}
	}
	return prompts.FormatWithDefault(template, values, NotAvailable)
}

// yamlQuote encodes s as a JSON string, which is also a valid YAML double-quoted scalar.
func yamlQuote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func joinNonEmpty(items []string) string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return strings.Join(out, ", ")
}

// BootstrapResult lists the files written by Bootstrap.
type BootstrapResult struct {
	ConfigPath string `json:"configPath"`
	BackupPath string `json:"backupPath,omitempty"`
	IgnorePath string `json:"ignorePath,omitempty"`
	NotePath   string `json:"notePath,omitempty"`
}

// Bootstrapper writes the Gemini CLI configuration into a working tree.
type Bootstrapper struct {
	now func() time.Time
}

// NewBootstrapper creates a Bootstrapper using the wall clock.
func NewBootstrapper() *Bootstrapper {
	return &Bootstrapper{now: time.Now}
}

// BootstrapDefault writes the configuration with no project context.
func (b *Bootstrapper) BootstrapDefault(ctx context.Context, dir string) (*BootstrapResult, error) {
	return b.Bootstrap(ctx, dir, TemplateContext{})
}

// Bootstrap renders and writes the rules document, backing up any existing one
// first, then writes the ignore list and usage note. Failures writing the two
// auxiliary files are logged and do not fail the bootstrap.
func (b *Bootstrapper) Bootstrap(ctx context.Context, dir string, tc TemplateContext) (*BootstrapResult, error) {
	log := clog.FromContext(ctx)
	if tc.GeneratedAt.IsZero() {
		tc.GeneratedAt = b.now()
	}

	configTemplate, err := prompts.Get("gemini.json", "config-template")
	if err != nil {
		return nil, err
	}
	rendered := RenderYAML(configTemplate, tc)

	var doc map[string]any
	if err := yaml.Unmarshal([]byte(rendered), &doc); err != nil {
		return nil, fmt.Errorf("rendered gemini config is not valid YAML: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(dir, ConfigDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", ConfigDir, err)
	}

	result := &BootstrapResult{ConfigPath: filepath.Join(dir, ConfigFile)}

	backup, err := b.backupExisting(result.ConfigPath)
	if err != nil {
		return nil, err
	}
	if backup != "" {
		log.Infof("Backed up existing gemini config to %s", backup)
		result.BackupPath = backup
	}

	if err := os.WriteFile(result.ConfigPath, []byte(rendered), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write gemini config: %w", err)
	}

	if path, err := writeAuxiliary(dir, IgnoreFile, "ignore-file", tc); err != nil {
		log.Warnf("Failed to write %s: %v", IgnoreFile, err)
	} else {
		result.IgnorePath = path
	}
	if path, err := writeAuxiliary(dir, NoteFile, "usage-note", tc); err != nil {
		log.Warnf("Failed to write %s: %v", NoteFile, err)
	} else {
		result.NotePath = path
	}

	return result, nil
}

// backupExisting copies path to a new timestamped sibling. It never replaces an
// existing backup; colliding names get a numeric suffix.
func (b *Bootstrapper) backupExisting(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read existing gemini config: %w", err)
	}

	base := path + ".backup-" + b.now().UTC().Format(backupTimeLayout)
	for i := 0; ; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d", base, i)
		}
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create backup: %w", err)
		}
		_, werr := f.Write(data)
		cerr := f.Close()
		if werr != nil || cerr != nil {
			return "", fmt.Errorf("failed to write backup %s: %w", candidate, errors.Join(werr, cerr))
		}
		return candidate, nil
	}
}

func writeAuxiliary(dir, name, key string, tc TemplateContext) (string, error) {
	template, err := prompts.Get("gemini.json", key)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(Render(template, tc)), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// ListBackups returns the backup files next to the config in dir, oldest first.
func ListBackups(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, ConfigFile) + ".backup-*")
	if err != nil {
		return nil, err
	}
	return matches, nil
}
