// -----------------------------------------------------------------------
// Prompt Manager - YAML prompt templates with {{key}} substitution
// -----------------------------------------------------------------------

package prompts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"gopkg.in/yaml.v3"

	"github.com/ternarybob/claimscope/internal/interfaces"
)

const commonSystemPromptPlaceholder = "{{common_system_prompt}}"

var placeholderPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// ErrUnknownPrompt is returned for stage ids outside the known numbering ranges
var ErrUnknownPrompt = errors.New("unknown prompt id range")

// Template is one prompt file
type Template struct {
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	SystemPrompt string `yaml:"system_prompt"`
	UserPrompt   string `yaml:"user_prompt"`
}

type commonPromptFile struct {
	Content string `yaml:"content"`
}

// Manager loads prompt templates from <dir>/<pipeline subdir>/<stage>.yaml and
// renders them. Loaded templates are cached for the life of the manager.
type Manager struct {
	dir    string
	logger arbor.ILogger

	mu           sync.RWMutex
	cache        map[string]*Template
	commonPrompt *string
}

// NewManager creates a prompt manager rooted at dir
func NewManager(dir string, logger arbor.ILogger) *Manager {
	return &Manager{
		dir:    dir,
		logger: logger,
		cache:  make(map[string]*Template),
	}
}

// subdirFor maps a stage number to its pipeline directory
func subdirFor(stageID string) (string, error) {
	prefix, _, _ := strings.Cut(stageID, "_")
	num, err := strconv.Atoi(prefix)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownPrompt, stageID)
	}
	switch {
	case num >= 1 && num <= 7:
		return "a_fetch_store_normalize", nil
	case num >= 8 && num <= 9:
		return "b_discovery", nil
	case num >= 10 && num <= 16:
		return "c_analyze", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownPrompt, stageID)
	}
}

// Load returns the template for a stage id
func (m *Manager) Load(stageID string) (*Template, error) {
	m.mu.RLock()
	if tpl, ok := m.cache[stageID]; ok {
		m.mu.RUnlock()
		return tpl, nil
	}
	m.mu.RUnlock()

	subdir, err := subdirFor(stageID)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(m.dir, subdir, stageID+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("prompt file not found: %s: %w", path, err)
	}

	var tpl Template
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return nil, fmt.Errorf("failed to parse prompt %s: %w", path, err)
	}

	m.mu.Lock()
	m.cache[stageID] = &tpl
	m.mu.Unlock()

	return &tpl, nil
}

// CommonSystemPrompt returns 00_common_system_prompt.yaml (content), falling
// back to 00_common_system_prompt.txt, else "".
func (m *Manager) CommonSystemPrompt() string {
	m.mu.RLock()
	if m.commonPrompt != nil {
		defer m.mu.RUnlock()
		return *m.commonPrompt
	}
	m.mu.RUnlock()

	content := ""
	if data, err := os.ReadFile(filepath.Join(m.dir, "00_common_system_prompt.yaml")); err == nil {
		var file commonPromptFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to parse common system prompt")
		} else {
			content = file.Content
		}
	} else if data, err := os.ReadFile(filepath.Join(m.dir, "00_common_system_prompt.txt")); err == nil {
		content = string(data)
	}

	m.mu.Lock()
	m.commonPrompt = &content
	m.mu.Unlock()

	return content
}

// Render implements interfaces.PromptRenderer
func (m *Manager) Render(stageID string, variables map[string]any) (string, string, error) {
	tpl, err := m.Load(stageID)
	if err != nil {
		return "", "", err
	}

	systemPrompt := tpl.SystemPrompt
	userPrompt := tpl.UserPrompt

	if strings.Contains(systemPrompt, commonSystemPromptPlaceholder) {
		systemPrompt = strings.ReplaceAll(systemPrompt, commonSystemPromptPlaceholder, m.CommonSystemPrompt())
	}

	// Sorted for a deterministic result when a value itself contains braces
	keys := make([]string, 0, len(variables))
	for key := range variables {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		placeholder := "{{" + key + "}}"
		value := ToPromptString(variables[key])
		systemPrompt = strings.ReplaceAll(systemPrompt, placeholder, value)
		userPrompt = strings.ReplaceAll(userPrompt, placeholder, value)
	}

	if unrendered := UnrenderedPlaceholders(userPrompt); len(unrendered) > 0 {
		m.logger.Warn().
			Str("prompt_id", stageID).
			Str("placeholders", strings.Join(unrendered, ",")).
			Msg("Unrendered placeholders in prompt")
	}

	return systemPrompt, userPrompt, nil
}

// ListPrompts returns every loadable template with its pipeline letter
func (m *Manager) ListPrompts() []interfaces.PromptInfo {
	var infos []interfaces.PromptInfo
	for _, subdir := range []string{"a_fetch_store_normalize", "b_discovery", "c_analyze"} {
		matches, err := filepath.Glob(filepath.Join(m.dir, subdir, "*.yaml"))
		if err != nil {
			continue
		}
		sort.Strings(matches)
		for _, path := range matches {
			stageID := strings.TrimSuffix(filepath.Base(path), ".yaml")
			tpl, err := m.Load(stageID)
			if err != nil {
				m.logger.Warn().Err(err).Str("prompt_id", stageID).Msg("Failed to load prompt")
				continue
			}
			name := tpl.Name
			if name == "" {
				name = stageID
			}
			infos = append(infos, interfaces.PromptInfo{
				StageID:     stageID,
				Name:        name,
				Description: tpl.Description,
				Pipeline:    strings.ToUpper(subdir[:1]),
			})
		}
	}
	return infos
}

// ToPromptString converts a variable for substitution: nil becomes "null",
// objects and lists become indented JSON with non-ASCII text kept as is.
func ToPromptString(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool, int, int32, int64, float32, float64, json.Number:
		return fmt.Sprint(v)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Sprint(v)
		}
		return strings.TrimRight(buf.String(), "\n")
	}
}

// UnrenderedPlaceholders lists distinct {{name}} tokens left in text
func UnrenderedPlaceholders(text string) []string {
	seen := map[string]struct{}{}
	var names []string
	for _, match := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		if _, ok := seen[match[1]]; ok {
			continue
		}
		seen[match[1]] = struct{}{}
		names = append(names, match[1])
	}
	return names
}
