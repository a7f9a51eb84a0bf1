package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "MATHRAG_"

	maxConfigFileSize = 1024 * 1024
)

// nestedSections lists subsections whose names would otherwise be read as
// the start of a field name when mapping environment variables.
var nestedSections = map[string][]string{
	"pipeline":      {"output_directives"},
	"knowledge":     {"chromem", "qdrant"},
	"feedback":      {"nats"},
	"observability": {"sampling", "metrics", "shutdown"},
	"logging":       {"output", "sampling", "caller", "stacktrace", "redaction"},
}

// providerKeys are the conventional unprefixed variables consulted when the
// MATHRAG_ form is unset.
var providerKeys = []struct {
	env string
	set func(*Config, Secret)
	get func(*Config) Secret
}{
	{"GROQ_API_KEY", func(c *Config, s Secret) { c.LLM.ProviderAPIKey = s }, func(c *Config) Secret { return c.LLM.ProviderAPIKey }},
	{"PORTKEY_API_KEY", func(c *Config, s Secret) { c.LLM.GatewayAPIKey = s }, func(c *Config) Secret { return c.LLM.GatewayAPIKey }},
	{"TAVILY_API_KEY", func(c *Config, s Secret) { c.WebSearch.APIKey = s }, func(c *Config) Secret { return c.WebSearch.APIKey }},
	{"QDRANT_API_KEY", func(c *Config, s Secret) { c.Knowledge.Qdrant.APIKey = s }, func(c *Config) Secret { return c.Knowledge.Qdrant.APIKey }},
}

// DefaultPath returns ~/.config/mathrag/config.yaml.
func DefaultPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "mathrag"), nil
}

// Load reads configuration with this precedence, highest first:
//  1. MATHRAG_SECTION_FIELD environment variables (MATHRAG_LLM_MODEL -> llm.model)
//  2. the YAML file at configPath, or DefaultPath when empty
//  3. Default()
//
// GROQ_API_KEY, PORTKEY_API_KEY, TAVILY_API_KEY and QDRANT_API_KEY fill the
// matching secrets when no MATHRAG_ variable sets them.
//
// The file must live under ~/.config/mathrag/ or /etc/mathrag/, be at most
// 1MB, and have 0600 or 0400 permissions. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		configPath = p
	}
	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}
	content, err := readConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := unmarshal(k, cfg); err != nil {
		return nil, err
	}
	applyProviderKeys(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// unmarshal decodes k over the defaults already in cfg. Slices and maps
// present in k replace the defaults instead of merging with them.
func unmarshal(k *koanf.Koanf, cfg *Config) error {
	err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			Result:           cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			ZeroFields:       true,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// envKey maps MATHRAG_SECTION_FIELD_NAME to section.field_name, and
// MATHRAG_SECTION_SUB_FIELD to section.sub.field for known subsections.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	for _, sub := range nestedSections[section] {
		if rest, found := strings.CutPrefix(field, sub+"_"); found {
			return section + "." + sub + "." + rest
		}
	}
	return section + "." + field
}

func applyProviderKeys(cfg *Config) {
	for _, pk := range providerKeys {
		if pk.get(cfg).IsSet() {
			continue
		}
		if v := os.Getenv(pk.env); v != "" {
			pk.set(cfg, Secret(v))
		}
	}
}

// readConfigFile returns nil content when the file does not exist. The
// file is opened once and validated through the descriptor.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := validateConfigFileProperties(info); err != nil {
		return nil, fmt.Errorf("config file validation failed: %w", err)
	}
	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// EnsureConfigDir creates ~/.config/mathrag with 0700 permissions.
func EnsureConfigDir() error {
	dir, err := configDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}

// validateConfigPath rejects files outside the allowed directories,
// following symlinks where the path exists.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolved = absPath
	}

	userDir, err := configDir()
	if err != nil {
		return err
	}
	for _, dir := range []string{userDir, "/etc/mathrag"} {
		if r, err := filepath.EvalSymlinks(dir); err == nil {
			dir = r
		}
		if resolved == dir || strings.HasPrefix(resolved, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/mathrag/ or /etc/mathrag/")
}

func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0o600 && perm != 0o400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
