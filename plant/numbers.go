package plant

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// integralNumbers rewrites numbers like 90.0 or 9e1 as plain integers,
// which the schema already counts as integers. Anything that isn't a
// single valid JSON value comes back untouched for the decoder to
// complain about.
func integralNumbers(data []byte) []byte {
	if !json.Valid(data) {
		return data
	}
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	var v any
	err := d.Decode(&v)
	if err != nil {
		return data
	}
	out, err := json.Marshal(rewriteNumbers(v))
	if err != nil {
		return data
	}
	return out
}

func rewriteNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = rewriteNumbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = rewriteNumbers(e)
		}
	case json.Number:
		if !strings.ContainsAny(string(t), ".eE") {
			return t
		}
		f, err := t.Float64()
		if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return t
		}
		return json.Number(strconv.FormatInt(int64(f), 10))
	}
	return v
}
