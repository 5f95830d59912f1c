package raydata

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/raydata/internal/fsutil"
)

// ParamKind tags the variant held by a ParamValue.
type ParamKind int

const (
	ParamNumber ParamKind = iota
	ParamText
)

// ParamValue is either a number or verbatim text.
type ParamValue struct {
	Kind   ParamKind
	Number float64
	Text   string
}

// NumberValue returns a numeric parameter value.
func NumberValue(f float64) ParamValue { return ParamValue{Kind: ParamNumber, Number: f} }

// TextValue returns a text parameter value.
func TextValue(s string) ParamValue { return ParamValue{Kind: ParamText, Text: s} }

// ParseParamValue trims raw and returns a number when it parses as a finite
// float, otherwise the trimmed text. Non-finite values stay text since JSON
// cannot represent them.
func ParseParamValue(raw string) ParamValue {
	s := strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return NumberValue(f)
	}
	return TextValue(s)
}

// Float returns the numeric value and whether the value is a number.
func (v ParamValue) Float() (float64, bool) {
	return v.Number, v.Kind == ParamNumber
}

func (v ParamValue) String() string {
	if v.Kind == ParamNumber {
		return strconv.FormatFloat(v.Number, 'g', -1, 64)
	}
	return v.Text
}

func (v ParamValue) MarshalJSON() ([]byte, error) {
	if v.Kind == ParamNumber {
		return json.Marshal(v.Number)
	}
	return json.Marshal(v.Text)
}

// ParameterSet maps parameter names to values, remembering the order in which
// names were first seen.
type ParameterSet struct {
	keys   []string
	values map[string]ParamValue
}

// NewParameterSet returns an empty set.
func NewParameterSet() *ParameterSet {
	return &ParameterSet{values: make(map[string]ParamValue)}
}

// Set stores v under key. A repeated key keeps its original position.
func (p *ParameterSet) Set(key string, v ParamValue) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
}

// Get returns the value stored under key.
func (p *ParameterSet) Get(key string) (ParamValue, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Len returns the number of parameters.
func (p *ParameterSet) Len() int { return len(p.keys) }

// Keys returns parameter names in first-seen order.
func (p *ParameterSet) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// MarshalJSON writes the set as a JSON object in first-seen order.
func (p *ParameterSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := p.values[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ReadParameters reads medium/parameters.csv from runDir. A missing file
// yields an empty set; lines that are not exactly key=value are skipped.
func ReadParameters(fsys fsutil.FileSystem, runDir string) (*ParameterSet, error) {
	path := filepath.Join(runDir, MediumDir, ParametersFile)
	params := NewParameterSet()

	f, err := fsys.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return params, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '='
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if len(record) != 2 {
			continue
		}
		params.Set(strings.TrimSpace(record[0]), ParseParamValue(record[1]))
	}

	return params, nil
}
