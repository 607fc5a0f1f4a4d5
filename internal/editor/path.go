package editor

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// ErrInvalidPath is returned when a dotted path does not address a scalar
// field of the configuration.
var ErrInvalidPath = errors.New("invalid configuration path")

// SetPath assigns value to the field addressed by path ("colors.accent",
// "contacts.2.value", "images.0") inside the configuration pointed to by
// target. Segments match json tags; decimal segments without sign or leading
// zeros index slices. The value
// is coerced to the field's type. Nothing is modified when an error is returned.
func SetPath(target any, path string, value any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("%w: target must be a non-nil pointer", ErrInvalidPath)
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	cur := v.Elem()
	segments := strings.Split(path, ".")
	for i, seg := range segments {
		next, err := step(cur, seg)
		if err != nil {
			return fmt.Errorf("%w: %s at %q", ErrInvalidPath, err, strings.Join(segments[:i+1], "."))
		}
		cur = next
	}
	if !cur.CanSet() {
		return fmt.Errorf("%w: %q is not settable", ErrInvalidPath, path)
	}
	if err := assign(cur, value); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidPath, path, err)
	}
	return nil
}

func step(cur reflect.Value, seg string) (reflect.Value, error) {
	switch cur.Kind() {
	case reflect.Struct:
		f, ok := fieldByTag(cur, seg)
		if !ok {
			return reflect.Value{}, errors.New("unknown field")
		}
		return f, nil
	case reflect.Slice:
		idx, err := strconv.Atoi(seg)
		if err != nil || strconv.Itoa(idx) != seg {
			return reflect.Value{}, errors.New("list index expected")
		}
		if idx < 0 || idx >= cur.Len() {
			return reflect.Value{}, fmt.Errorf("index %d out of range", idx)
		}
		return cur.Index(idx), nil
	case reflect.Ptr:
		if cur.IsNil() {
			return reflect.Value{}, errors.New("nil value")
		}
		return step(cur.Elem(), seg)
	}
	return reflect.Value{}, errors.New("cannot descend into a scalar")
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := strings.Split(sf.Tag.Get("json"), ",")[0]
		if tag == "-" {
			continue
		}
		if tag == name || (tag == "" && strings.EqualFold(sf.Name, name)) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func assign(dst reflect.Value, value any) error {
	switch dst.Kind() {
	case reflect.String:
		s, err := cast.ToStringE(value)
		if err != nil {
			return err
		}
		dst.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := toInt(value)
		if err != nil {
			return err
		}
		dst.SetInt(int64(n))
	case reflect.Float32, reflect.Float64:
		f, err := cast.ToFloat64E(value)
		if err != nil {
			return err
		}
		dst.SetFloat(f)
	case reflect.Bool:
		b, err := toBool(value)
		if err != nil {
			return err
		}
		dst.SetBool(b)
	case reflect.Ptr:
		if dst.Type().Elem().Kind() == reflect.Struct || dst.Type().Elem().Kind() == reflect.Slice {
			return errors.New("not a scalar field")
		}
		elem := reflect.New(dst.Type().Elem())
		if err := assign(elem.Elem(), value); err != nil {
			return err
		}
		dst.Set(elem)
	default:
		return errors.New("not a scalar field")
	}
	return nil
}

// toInt parses form input in base 10 so "08" stays 8.
func toInt(value any) (int, error) {
	if s, ok := value.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, nil
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", s)
		}
		return int(f), nil
	}
	return cast.ToIntE(value)
}

// toBool understands checkbox submissions ("on", "") besides the usual forms.
func toBool(value any) (bool, error) {
	if s, ok := value.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "on", "yes", "checked":
			return true, nil
		case "", "off", "no":
			return false, nil
		}
	}
	return cast.ToBoolE(value)
}
