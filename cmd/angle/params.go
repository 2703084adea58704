package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/midbel/angle/xpath"
	"github.com/midbel/angle/xslt"
	"gopkg.in/yaml.v3"
)

// ParamSet collects the stylesheet parameters given with -p flags and
// parameter files.
type ParamSet struct {
	names  []string
	values map[string]xpath.Value
}

func (p *ParamSet) String() string {
	var list []string
	for _, n := range p.names {
		list = append(list, fmt.Sprintf("%s=%s", n, xpath.ToString(p.values[n])))
	}
	return strings.Join(list, ",")
}

func (p *ParamSet) Set(str string) error {
	name, value, err := splitParam(str)
	if err != nil {
		return err
	}
	p.set(name, xpath.String(value))
	return nil
}

func (p *ParamSet) set(name string, value xpath.Value) {
	if p.values == nil {
		p.values = make(map[string]xpath.Value)
	}
	if _, ok := p.values[name]; !ok {
		p.names = append(p.names, name)
	}
	p.values[name] = value
}

// Load reads a yaml file mapping parameter names to scalar values. Numbers
// and booleans keep their type, everything else is given as a string.
func (p *ParamSet) Load(file string) error {
	buf, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	var values map[string]any
	if err := yaml.Unmarshal(buf, &values); err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	for name, v := range values {
		value, err := paramValue(v)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", file, name, err)
		}
		p.set(name, value)
	}
	return nil
}

func (p *ParamSet) Options() []xslt.Option {
	var list []xslt.Option
	for _, n := range p.names {
		list = append(list, xslt.WithParam(n, p.values[n]))
	}
	return list
}

func paramValue(v any) (xpath.Value, error) {
	switch v := v.(type) {
	case nil:
		return xpath.String(""), nil
	case string:
		return xpath.String(v), nil
	case bool:
		return xpath.Boolean(v), nil
	case int:
		return xpath.Number(v), nil
	case int64:
		return xpath.Number(v), nil
	case uint64:
		return xpath.Number(v), nil
	case float64:
		return xpath.Number(v), nil
	default:
		return nil, fmt.Errorf("%T: unsupported parameter type", v)
	}
}
