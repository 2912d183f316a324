package strategy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"hypothesis-lab/internal/domain"
)

// Loader errors
var (
	ErrUnsupportedFormat  = errors.New("unsupported strategy file format")
	ErrInvalidDocument    = errors.New("invalid strategy document")
	ErrDuplicateParameter = errors.New("duplicate parameter name")
	ErrUnknownAssigned    = errors.New("assigned value for unknown parameter")
	ErrInvalidValue       = errors.New("invalid parameter value")
)

var validate = validator.New()

// LoadFile reads a strategy document from a .yaml, .yml or .json file.
func LoadFile(path string) (domain.StrategyDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.StrategyDocument{}, fmt.Errorf("read strategy %s: %w", path, err)
	}

	var doc domain.StrategyDocument
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		doc, err = ParseYAML(data)
	case ".json":
		doc, err = ParseJSON(data)
	default:
		return domain.StrategyDocument{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return domain.StrategyDocument{}, fmt.Errorf("load strategy %s: %w", path, err)
	}
	return doc, nil
}

// LoadDir loads every strategy file in dir, sorted by file name.
func LoadDir(dir string) ([]domain.StrategyDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read strategy dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	docs := make([]domain.StrategyDocument, 0, len(names))
	for _, name := range names {
		doc, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ParseYAML decodes and validates a YAML strategy document.
func ParseYAML(data []byte) (domain.StrategyDocument, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.StrategyDocument{}, fmt.Errorf("decode yaml: %w", err)
	}
	return FromFile(f)
}

// ParseJSON decodes and validates a JSON strategy document.
func ParseJSON(data []byte) (domain.StrategyDocument, error) {
	var f File
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&f); err != nil {
		return domain.StrategyDocument{}, fmt.Errorf("decode json: %w", err)
	}
	return FromFile(f)
}

// FromFile validates f and converts it to a domain document.
// Numeric values are coerced to the kind of their parameter.
func FromFile(f File) (domain.StrategyDocument, error) {
	if err := validate.Struct(f); err != nil {
		return domain.StrategyDocument{}, fmt.Errorf("%w: %s", ErrInvalidDocument, describe(err))
	}

	doc := domain.StrategyDocument{
		ID:          f.ID,
		Name:        f.Name,
		Hypothesis:  f.Hypothesis,
		Instruments: f.Instruments,
		Timeframe:   f.Timeframe,
		Rules:       f.Rules,
	}

	kinds := make(map[string]domain.ParameterKind, len(f.Parameters))
	for _, pf := range f.Parameters {
		if _, dup := kinds[pf.Name]; dup {
			return domain.StrategyDocument{}, fmt.Errorf("%w: %s", ErrDuplicateParameter, pf.Name)
		}
		p, err := convertParameter(pf)
		if err != nil {
			return domain.StrategyDocument{}, err
		}
		kinds[p.Name] = p.Kind
		doc.Parameters = append(doc.Parameters, p)
	}

	if len(f.Assigned) > 0 {
		doc.Assigned = make(domain.Assignment, len(f.Assigned))
		for name, raw := range f.Assigned {
			kind, ok := kinds[name]
			if !ok {
				return domain.StrategyDocument{}, fmt.Errorf("%w: %s", ErrUnknownAssigned, name)
			}
			v, err := convertValue(kind, raw)
			if err != nil {
				return domain.StrategyDocument{}, fmt.Errorf("assigned %s: %w", name, err)
			}
			doc.Assigned[name] = v
		}
	}
	return doc, nil
}

func convertParameter(pf ParameterFile) (domain.TunableParameter, error) {
	kind := domain.ParameterKind(pf.Type)
	p := domain.TunableParameter{
		Name: pf.Name,
		Kind: kind,
		Min:  pf.Min,
		Max:  pf.Max,
		Step: pf.Step,
	}

	def, err := convertValue(kind, pf.Default)
	if err != nil {
		return p, fmt.Errorf("parameter %s default: %w", pf.Name, err)
	}
	p.Default = def

	for i, raw := range pf.Choices {
		v, err := convertValue(kind, raw)
		if err != nil {
			return p, fmt.Errorf("parameter %s choice %d: %w", pf.Name, i, err)
		}
		p.Choices = append(p.Choices, v)
	}
	return p, nil
}

// convertValue builds a Value and coerces numbers to the parameter kind.
// Choice parameters keep the scalar type they were written with.
func convertValue(kind domain.ParameterKind, raw any) (domain.Value, error) {
	v, err := domain.ValueOf(raw)
	if err != nil {
		return domain.Value{}, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if !v.IsSet() {
		return v, nil
	}

	switch kind {
	case domain.ParameterKindInteger:
		f, ok := v.Float64()
		if !ok {
			return domain.Value{}, fmt.Errorf("%w: %s is not a number", ErrInvalidValue, v)
		}
		return domain.IntValue(int64(f)), nil
	case domain.ParameterKindFloat:
		f, ok := v.Float64()
		if !ok {
			return domain.Value{}, fmt.Errorf("%w: %s is not a number", ErrInvalidValue, v)
		}
		return domain.FloatValue(f), nil
	case domain.ParameterKindBoolean:
		if v.Type != domain.ValueTypeBool {
			return domain.Value{}, fmt.Errorf("%w: %s is not a boolean", ErrInvalidValue, v)
		}
	}
	return v, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Namespace()+" is required")
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of [%s], got %q", fe.Namespace(), fe.Param(), fe.Value()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
