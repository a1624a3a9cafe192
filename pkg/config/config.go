package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds all configuration for crxprep
type Config struct {
	Pages       string          `mapstructure:"pages" json:"pages" yaml:"pages" toml:"pages" validate:"required"`
	Assets      string          `mapstructure:"assets" json:"assets" yaml:"assets" toml:"assets"`
	Fallback    string          `mapstructure:"fallback" json:"fallback" yaml:"fallback" toml:"fallback"`
	Manifest    string          `mapstructure:"manifest" json:"manifest" yaml:"manifest" toml:"manifest" validate:"required,endswith=.json"`
	Precompress bool            `mapstructure:"precompress" json:"precompress" yaml:"precompress" toml:"precompress"`
	EmptyOutDir bool            `mapstructure:"empty_out_dir" json:"empty_out_dir" yaml:"empty_out_dir" toml:"empty_out_dir"`
	AppDir      string          `mapstructure:"app_dir" json:"app_dir" yaml:"app_dir" toml:"app_dir" validate:"required"`
	IgnoreFile  string          `mapstructure:"ignore_file" json:"ignore_file" yaml:"ignore_file" toml:"ignore_file"`
	Ignore      []string        `mapstructure:"ignore" json:"ignore" yaml:"ignore" toml:"ignore"`
	Source      SourceConfig    `mapstructure:"source" json:"source" yaml:"source" toml:"source"`
	Scripts     ScriptsConfig   `mapstructure:"scripts" json:"scripts" yaml:"scripts" toml:"scripts"`
	Manifests   ManifestsConfig `mapstructure:"manifests" json:"manifests" yaml:"manifests" toml:"manifests"`
	Compress    CompressConfig  `mapstructure:"compress" json:"compress" yaml:"compress" toml:"compress"`
}

// SourceConfig locates the framework build output
type SourceConfig struct {
	Static           string `mapstructure:"static" json:"static" yaml:"static" toml:"static"`
	Client           string `mapstructure:"client" json:"client" yaml:"client" toml:"client"`
	Prerendered      string `mapstructure:"prerendered" json:"prerendered" yaml:"prerendered" toml:"prerendered"`
	FallbackTemplate string `mapstructure:"fallback_template" json:"fallback_template" yaml:"fallback_template" toml:"fallback_template"`
	Title            string `mapstructure:"title" json:"title" yaml:"title" toml:"title"`
	Lang             string `mapstructure:"lang" json:"lang" yaml:"lang" toml:"lang"`
	Entry            string `mapstructure:"entry" json:"entry" yaml:"entry" toml:"entry"`
}

// ScriptsConfig holds inline script extraction options
type ScriptsConfig struct {
	Type         string `mapstructure:"type" json:"type" yaml:"type" toml:"type"`
	SkipExternal bool   `mapstructure:"skip_external" json:"skip_external" yaml:"skip_external" toml:"skip_external"`
	Placement    string `mapstructure:"placement" json:"placement" yaml:"placement" toml:"placement" validate:"omitempty,oneof=root sibling"`
	Concurrency  int    `mapstructure:"concurrency" json:"concurrency" yaml:"concurrency" toml:"concurrency" validate:"gte=0"`
	AuditSVG     bool   `mapstructure:"audit_svg" json:"audit_svg" yaml:"audit_svg" toml:"audit_svg"`
}

// ManifestsConfig holds generated/canonical manifest options
type ManifestsConfig struct {
	Generated     []string `mapstructure:"generated" json:"generated" yaml:"generated" toml:"generated" validate:"dive,required"`
	Required      bool     `mapstructure:"required" json:"required" yaml:"required" toml:"required"`
	StripComments bool     `mapstructure:"strip_comments" json:"strip_comments" yaml:"strip_comments" toml:"strip_comments"`
}

// CompressConfig holds precompression options
type CompressConfig struct {
	Extensions  []string `mapstructure:"extensions" json:"extensions" yaml:"extensions" toml:"extensions" validate:"dive,required"`
	Formats     []string `mapstructure:"formats" json:"formats" yaml:"formats" toml:"formats" validate:"dive,oneof=gz br zst gzip brotli zstd"`
	Concurrency int      `mapstructure:"concurrency" json:"concurrency" yaml:"concurrency" toml:"concurrency" validate:"gte=0"`
}

// AssetsDir is the assets output directory; it defaults to Pages.
func (c *Config) AssetsDir() string {
	if c.Assets == "" {
		return c.Pages
	}
	return c.Assets
}

var defaultConfig = Config{
	Pages:       "build",
	Manifest:    "manifest.json",
	EmptyOutDir: true,
	AppDir:      "_app",
	IgnoreFile:  ".crxprepignore",
	Ignore:      []string{},
	Source: SourceConfig{
		Static:      "static",
		Client:      ".svelte-kit/output/client",
		Prerendered: ".svelte-kit/output/prerendered/pages",
		Lang:        "en",
		Entry:       "immutable/start.js",
	},
	Scripts: ScriptsConfig{
		Placement: "root",
		AuditSVG:  true,
	},
	Manifests: ManifestsConfig{
		Generated: []string{"**/{{appDir}}/*manifest*.json", "*manifest*.json"},
	},
	Compress: CompressConfig{
		Extensions: []string{"html", "js", "json", "css", "svg", "xml"},
		Formats:    []string{"gz", "br"},
	},
}

// Default returns a copy of the built-in configuration.
func Default() *Config {
	c := defaultConfig
	c.Ignore = append([]string{}, defaultConfig.Ignore...)
	c.Manifests.Generated = append([]string{}, defaultConfig.Manifests.Generated...)
	c.Compress.Extensions = append([]string{}, defaultConfig.Compress.Extensions...)
	c.Compress.Formats = append([]string{}, defaultConfig.Compress.Formats...)
	return &c
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"pages":            "pages",
	"assets":           "assets",
	"fallback":         "fallback",
	"manifest":         "manifest",
	"precompress":      "precompress",
	"empty-out-dir":    "empty_out_dir",
	"app-dir":          "app_dir",
	"ignore-file":      "ignore_file",
	"script-type":      "scripts.type",
	"skip-external":    "scripts.skip_external",
	"placement":        "scripts.placement",
	"concurrency":      "scripts.concurrency",
	"require-manifest": "manifests.required",
	"strip-comments":   "manifests.strip_comments",
	"formats":          "compress.formats",
	"extensions":       "compress.extensions",
}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// File is an explicit config file; when set it must exist.
	File string
	// Dir is searched for crxprep.{yaml,yml,json,toml}. Empty means ".".
	Dir string
	// EnvFile is a dotenv file loaded before the environment is read.
	// Empty means Dir/.env; a missing file is ignored.
	EnvFile string
	// Flags are bound per FlagKeys; only flags set on the command line apply.
	Flags *pflag.FlagSet
}

// Loaded is the result of Load.
type Loaded struct {
	Config *Config
	// File is the config file that was read, if any.
	File string
}

// Load resolves configuration: defaults, config file, .env and CRXPREP_*
// environment, then flags. The config file is checked against the embedded
// schema and the result against struct validation.
func Load(opts LoadOptions) (*Loaded, error) {
	if opts.Dir == "" {
		opts.Dir = "."
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = filepath.Join(opts.Dir, ".env")
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("error loading %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("crxprep")
		v.AddConfigPath(opts.Dir)
		if home, err := GetCrxprepHome(); err == nil {
			v.AddConfigPath(home)
		}
	}

	v.SetEnvPrefix("CRXPREP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	loaded := &Loaded{File: v.ConfigFileUsed()}
	if loaded.File != "" {
		if err := ValidateFile(loaded.File); err != nil {
			return nil, err
		}
	}

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := ValidateStruct(&config); err != nil {
		return nil, err
	}

	loaded.Config = &config
	return loaded, nil
}

func setDefaults(v *viper.Viper) {
	d := defaultConfig
	v.SetDefault("pages", d.Pages)
	v.SetDefault("assets", d.Assets)
	v.SetDefault("fallback", d.Fallback)
	v.SetDefault("manifest", d.Manifest)
	v.SetDefault("precompress", d.Precompress)
	v.SetDefault("empty_out_dir", d.EmptyOutDir)
	v.SetDefault("app_dir", d.AppDir)
	v.SetDefault("ignore_file", d.IgnoreFile)
	v.SetDefault("ignore", d.Ignore)

	v.SetDefault("source.static", d.Source.Static)
	v.SetDefault("source.client", d.Source.Client)
	v.SetDefault("source.prerendered", d.Source.Prerendered)
	v.SetDefault("source.fallback_template", d.Source.FallbackTemplate)
	v.SetDefault("source.title", d.Source.Title)
	v.SetDefault("source.lang", d.Source.Lang)
	v.SetDefault("source.entry", d.Source.Entry)

	v.SetDefault("scripts.type", d.Scripts.Type)
	v.SetDefault("scripts.skip_external", d.Scripts.SkipExternal)
	v.SetDefault("scripts.placement", d.Scripts.Placement)
	v.SetDefault("scripts.concurrency", d.Scripts.Concurrency)
	v.SetDefault("scripts.audit_svg", d.Scripts.AuditSVG)

	v.SetDefault("manifests.generated", d.Manifests.Generated)
	v.SetDefault("manifests.required", d.Manifests.Required)
	v.SetDefault("manifests.strip_comments", d.Manifests.StripComments)

	v.SetDefault("compress.extensions", d.Compress.Extensions)
	v.SetDefault("compress.formats", d.Compress.Formats)
	v.SetDefault("compress.concurrency", d.Compress.Concurrency)
}

// GetCrxprepHome returns the crxprep home directory
func GetCrxprepHome() (string, error) {
	if home := os.Getenv("CRXPREP_HOME"); home != "" {
		return home, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %v", err)
	}

	return filepath.Join(homeDir, ".crxprep"), nil
}
