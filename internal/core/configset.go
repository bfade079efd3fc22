package core

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/valter-silva-au/paperless-tasks/pkg/models"
)

// ConfigKeys returns the keys accepted by SetConfigValue, sorted.
func ConfigKeys() []string {
	t := reflect.TypeOf(models.Config{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if key := jsonKey(t.Field(i)); key != "" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// SetConfigValue assigns raw to key in cfg. raw is decoded as JSON when it
// parses and the result fits the field; otherwise it is taken as a plain
// string, so `config set PAPERLESS_URL http://host` works without quotes.
func SetConfigValue(cfg *models.Config, key, raw string) error {
	key = strings.ToUpper(strings.TrimSpace(key))
	rv := reflect.ValueOf(cfg).Elem()
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		if jsonKey(t.Field(i)) != key {
			continue
		}
		field := rv.Field(i)
		ptr := reflect.New(field.Type())
		if err := json.Unmarshal([]byte(raw), ptr.Interface()); err == nil {
			field.Set(ptr.Elem())
			return nil
		}
		quoted, _ := json.Marshal(raw)
		if err := json.Unmarshal(quoted, ptr.Interface()); err != nil {
			return fmt.Errorf("%s: cannot use %q: %w", key, raw, err)
		}
		field.Set(ptr.Elem())
		return nil
	}
	return fmt.Errorf("unknown config key %q (known keys: %s)", key, strings.Join(ConfigKeys(), ", "))
}

func jsonKey(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" || tag == "-" {
		return ""
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}
