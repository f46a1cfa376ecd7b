package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	lconfig "github.com/lixenwraith/config"

	"github.com/shapestone/shape-csvreader/pkg/csv"
)

// Load reads configuration from environment variables on top of the
// defaults declared in the struct tags and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := load(cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// load fills target, a pointer to a struct of sections. The sections are
// registered with lixenwraith/config as text values, so the environment
// source and the default source resolve every path to a string, which is
// then converted to the field type.
func load(target any) error {
	v := reflect.ValueOf(target).Elem()

	src, err := lconfig.NewBuilder().
		WithDefaults(defaults(v.Type())).
		WithSources(lconfig.SourceEnv, lconfig.SourceDefault).
		Build()
	if err != nil {
		return err
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		name := section.Tag.Get("toml")
		if name == "" || section.Type.Kind() != reflect.Struct {
			continue
		}
		if err := loadSection(src, name, v.Field(i)); err != nil {
			return err
		}
	}
	return nil
}

func loadSection(src *lconfig.Config, section string, v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		key := field.Tag.Get("toml")
		if key == "" || !v.Field(i).CanSet() {
			continue
		}

		path := section + "." + key
		envName := envVar(path)

		value, err := lconfig.GetTyped[string](src, path)
		if err != nil {
			return fmt.Errorf("%s: %w", envName, err)
		}
		if alt := field.Tag.Get("envAlt"); alt != "" {
			if _, set := os.LookupEnv(envName); !set {
				if altValue, ok := os.LookupEnv(alt); ok {
					value = altValue
				}
			}
		}

		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			continue
		}

		if err := setField(v.Field(i), value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// defaults builds the registration struct for t: one struct per section
// with a string field per key, holding the default tag value.
func defaults(t reflect.Type) any {
	var sections []reflect.StructField
	var values [][]string

	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		name := section.Tag.Get("toml")
		if name == "" || section.Type.Kind() != reflect.Struct {
			continue
		}

		var keys []reflect.StructField
		var vals []string
		for j := 0; j < section.Type.NumField(); j++ {
			field := section.Type.Field(j)
			key := field.Tag.Get("toml")
			if key == "" || !field.IsExported() {
				continue
			}
			keys = append(keys, reflect.StructField{
				Name: field.Name,
				Type: reflect.TypeFor[string](),
				Tag:  reflect.StructTag(`toml:"` + key + `"`),
			})
			vals = append(vals, field.Tag.Get("default"))
		}

		sections = append(sections, reflect.StructField{
			Name: section.Name,
			Type: reflect.StructOf(keys),
			Tag:  reflect.StructTag(`toml:"` + name + `"`),
		})
		values = append(values, vals)
	}

	out := reflect.New(reflect.StructOf(sections)).Elem()
	for i, vals := range values {
		for j, val := range vals {
			out.Field(i).Field(j).SetString(val)
		}
	}
	return out.Interface()
}

// envVar returns the environment variable name for a config path.
func envVar(path string) string {
	return strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
}

// setField sets a reflect.Value from a string based on its type.
// Scalars use the CSV reader's conversion rules. String slices are read as
// a single CSV record, so items may be quoted; empty items are dropped.
func setField(field reflect.Value, value string) error {
	if field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.String {
		items, err := splitList(value)
		if err != nil {
			return err
		}
		out := reflect.MakeSlice(field.Type(), len(items), len(items))
		for i, item := range items {
			out.Index(i).SetString(item)
		}
		field.Set(out)
		return nil
	}

	v, err := csv.NewConverterRegistry().Convert(field.Type(), strings.TrimSpace(value))
	if err != nil {
		return err
	}
	field.Set(reflect.ValueOf(v))
	return nil
}

func splitList(value string) ([]string, error) {
	opts := csv.DefaultReaderOptions()
	opts.HasHeaderRecord = false
	opts.TrimLeadingSpace = true
	opts.TrimTrailingSpace = true

	r, err := csv.NewReaderWithOptions(strings.NewReader(value), opts)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	ok, err := r.Read()
	if err != nil || !ok {
		return nil, err
	}
	rec, err := r.Record()
	if err != nil {
		return nil, err
	}
	items := make([]string, 0, rec.Len())
	for _, item := range rec.Fields() {
		if item != "" {
			items = append(items, item)
		}
	}
	return items, nil
}
