package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fulmenhq/crxprep/internal/assets"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/xeipuuv/gojsonschema"
)

// ValidateConfig validates JSON configuration data against the embedded schema
func ValidateConfig(configData []byte) error {
	schema, ok := assets.GetSchema(assets.ConfigSchema)
	if !ok {
		return fmt.Errorf("embedded config schema %s missing", assets.ConfigSchema)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(configData))
	if err != nil {
		return fmt.Errorf("schema validation error: %v", err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}

	return nil
}

// ValidateFile reads a YAML, JSON or TOML config file and validates it
// against the embedded schema. Only keys present in the file are checked.
func ValidateFile(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config %s: %w", path, err)
	}

	data, err := json.Marshal(v.AllSettings())
	if err != nil {
		return fmt.Errorf("error encoding config %s: %w", path, err)
	}
	if err := ValidateConfig(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct checks the decoded configuration's field constraints.
func ValidateStruct(c *Config) error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", strings.Join(msgs, "\n"))
}
