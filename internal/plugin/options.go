package plugin

import (
	"slices"

	"github.com/roach88/rootsolve/internal/variant"
)

// Option documents one recognized option key.
type Option struct {
	Name        string
	Type        variant.Type
	Default     variant.Value
	Description string
}

// OptionTable is the set of options a plugin recognizes.
type OptionTable []Option

// Lookup returns the option named name.
func (t OptionTable) Lookup(name string) (Option, bool) {
	for _, o := range t {
		if o.Name == name {
			return o, true
		}
	}
	return Option{}, false
}

// Names returns the option names in sorted order.
func (t OptionTable) Names() []string {
	names := make([]string, len(t))
	for i, o := range t {
		names[i] = o.Name
	}
	slices.Sort(names)
	return names
}

// With returns a new table holding t followed by extra. Entries in extra
// replace same-named entries of t.
func (t OptionTable) With(extra ...Option) OptionTable {
	out := make(OptionTable, 0, len(t)+len(extra))
	for _, o := range t {
		if !slices.ContainsFunc(extra, func(e Option) bool { return e.Name == o.Name }) {
			out = append(out, o)
		}
	}
	return append(out, extra...)
}

// Validate checks every key of opts against the table without converting.
func (t OptionTable) Validate(opts variant.Dict) error {
	_, err := t.Resolve(opts)
	return err
}

// Resolve validates opts and returns a new dict holding every option of the
// table: caller values widened to the declared type, defaults elsewhere.
// Options whose default is null and that the caller did not set are omitted.
// opts itself is never modified.
func (t OptionTable) Resolve(opts variant.Dict) (variant.Dict, error) {
	out := make(variant.Dict, len(t))
	for _, key := range opts.Keys() {
		o, ok := t.Lookup(key)
		if !ok {
			return nil, &OptionError{
				Code:    ErrCodeUnrecognizedOption,
				Key:     key,
				Message: "unrecognized option",
				Known:   t.Names(),
			}
		}
		v, err := opts[key].To(o.Type)
		if err != nil {
			return nil, &OptionError{
				Code:    ErrCodeOptionType,
				Key:     key,
				Message: err.Error(),
			}
		}
		out[key] = v
	}
	for _, o := range t {
		if _, set := out[o.Name]; !set && !o.Default.IsNull() {
			out[o.Name] = o.Default
		}
	}
	return out, nil
}
