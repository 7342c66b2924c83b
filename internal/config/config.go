// Package config loads service options and the camera file.
//
// Service options are a flat struct whose fields carry `toml:"section.key"`
// and `env:"KEY"` tags. Precedence is CLI flag > environment (UVCCTL_
// prefix) > TOML file. The camera file (camera.toml) is loaded separately
// and can be hot-reloaded with a Watcher.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// EnvPrefix is prepended to every `env` tag.
const EnvPrefix = "UVCCTL_"

// layer looks up the raw value a source holds for a field.
type layer func(f reflect.StructField) (any, bool)

// LoadConfig fills opts, a pointer to a flat options struct, from the TOML
// file named by its Config field and then from the environment. Fields
// whose flag was set on cmd are left alone. A missing file is not an error;
// an unparsable file or environment value is.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()

	var layers []layer
	if path := v.FieldByName("Config"); path.IsValid() && path.Kind() == reflect.String && path.String() != "" {
		table, err := readTable(path.String())
		if err != nil {
			return err
		}
		if table != nil {
			layers = append(layers, tomlLayer(table))
		}
	}
	layers = append(layers, envLayer)

	var errs []error
	for i := range v.NumField() {
		f := v.Type().Field(i)
		if cmd != nil && cmd.Flags().Changed(flagName(f.Name)) {
			continue
		}
		for _, lookup := range layers {
			raw, ok := lookup(f)
			if !ok {
				continue
			}
			if err := assign(v.Field(i), raw); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func readTable(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var table map[string]any
	if err := toml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return table, nil
}

func tomlLayer(table map[string]any) layer {
	return func(f reflect.StructField) (any, bool) {
		key := f.Tag.Get("toml")
		if key == "" {
			return nil, false
		}
		return dig(table, key)
	}
}

func envLayer(f reflect.StructField) (any, bool) {
	key := f.Tag.Get("env")
	if key == "" {
		return nil, false
	}
	val, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || val == "" {
		return nil, false
	}
	return val, true
}

// dig follows a dotted key through nested tables.
func dig(table map[string]any, key string) (any, bool) {
	head, rest, nested := strings.Cut(key, ".")
	val, ok := table[head]
	if !ok || !nested {
		return val, ok
	}
	sub, ok := val.(map[string]any)
	if !ok {
		return nil, false
	}
	return dig(sub, rest)
}

// flagName is the kebab-case flag for a field: "LoggingLevel" is
// "logging-level".
func flagName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// assign stores raw into field. raw is a TOML value or an environment
// string; list strings are comma separated.
func assign(field reflect.Value, raw any) error {
	if !field.CanSet() {
		return nil
	}

	if field.Kind() == reflect.Slice {
		var items []any
		switch x := raw.(type) {
		case []any:
			items = x
		case string:
			for _, part := range strings.Split(x, ",") {
				items = append(items, strings.TrimSpace(part))
			}
		default:
			return fmt.Errorf("want a list, got %T", raw)
		}
		out := reflect.MakeSlice(field.Type(), len(items), len(items))
		for i, item := range items {
			if err := assign(out.Index(i), item); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
		field.Set(out)
		return nil
	}

	switch x := raw.(type) {
	case string:
		return assignString(field, x)
	case int64:
		switch field.Kind() {
		case reflect.Int, reflect.Int64:
			field.SetInt(x)
			return nil
		case reflect.Float64:
			field.SetFloat(float64(x))
			return nil
		case reflect.String:
			field.SetString(strconv.FormatInt(x, 10))
			return nil
		}
	case float64:
		if field.Kind() == reflect.Float64 {
			field.SetFloat(x)
			return nil
		}
	case bool:
		if field.Kind() == reflect.Bool {
			field.SetBool(x)
			return nil
		}
	}
	return fmt.Errorf("cannot use %T as %s", raw, field.Type())
}

func assignString(field reflect.Value, s string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}
