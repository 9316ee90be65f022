package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/canectors/carexplorer/internal/explore"
	"github.com/canectors/carexplorer/pkg/dashboard"
	"github.com/canectors/carexplorer/pkg/dataset"
)

// colorNone disables the color channel.
const colorNone = "none"

// ConvertToDashboard converts schema-valid data to a Dashboard. It resolves
// column names and aggregate operations, which the schema leaves as free
// strings, and reports every failure with its location.
//
// Expected layout:
//
//	dashboard: {name, version, description}
//	source:    {type, ...options}
//	controls:  {x, y, color, years, origins, horsepower, showData, histogram, box}
//	filters:   [{type, ...options}]
//	aggregates: [{groupBy, value, op}]
//	outputs:   [{type, ...options}]
func ConvertToDashboard(data map[string]interface{}) (*dashboard.Dashboard, []ValidationError) {
	c := &converter{}
	if data == nil {
		c.fail("/", "required", "configuration is empty")
		return nil, c.errs
	}

	meta, ok := data["dashboard"].(map[string]interface{})
	if !ok {
		c.fail("/dashboard", "required", "missing or invalid 'dashboard' section")
		return nil, c.errs
	}
	d := &dashboard.Dashboard{}
	d.Name, _ = meta["name"].(string)
	if strings.TrimSpace(d.Name) == "" {
		c.fail("/dashboard/name", "required", "dashboard name is required")
	}
	d.Version, _ = meta["version"].(string)
	d.Description, _ = meta["description"].(string)

	if raw, ok := data["source"].(map[string]interface{}); ok {
		d.Source = c.module("/source", raw)
	}
	if raw, ok := data["controls"].(map[string]interface{}); ok {
		d.Controls = c.controls(raw)
	}
	d.Filters = c.modules("/filters", data["filters"])
	d.Outputs = c.modules("/outputs", data["outputs"])
	if raw, ok := data["aggregates"].([]interface{}); ok {
		d.Aggregates = make([]dashboard.Aggregate, 0, len(raw))
		for i, item := range raw {
			if agg, ok := c.aggregate(fmt.Sprintf("/aggregates/%d", i), item); ok {
				d.Aggregates = append(d.Aggregates, agg)
			}
		}
	}

	if len(c.errs) > 0 {
		return nil, c.errs
	}
	return d, nil
}

type converter struct {
	errs []ValidationError
}

func (c *converter) fail(path, typ, format string, args ...interface{}) {
	c.errs = append(c.errs, ValidationError{Path: path, Type: typ, Message: fmt.Sprintf(format, args...)})
}

// module copies every key but "type" into the module options. A nested
// "config" mapping is merged as well.
func (c *converter) module(path string, data map[string]interface{}) *dashboard.ModuleConfig {
	typ, _ := data["type"].(string)
	if typ == "" {
		c.fail(path+"/type", "required", "module type is required")
		return nil
	}
	mc := &dashboard.ModuleConfig{Type: typ, Config: make(map[string]interface{})}
	for key, value := range data {
		switch key {
		case "type":
		case "config":
			if nested, ok := value.(map[string]interface{}); ok {
				for k, v := range nested {
					mc.Config[k] = v
				}
				continue
			}
			mc.Config[key] = value
		default:
			mc.Config[key] = value
		}
	}
	return mc
}

func (c *converter) modules(path string, raw interface{}) []dashboard.ModuleConfig {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	out := make([]dashboard.ModuleConfig, 0, len(items))
	for i, item := range items {
		itemPath := fmt.Sprintf("%s/%d", path, i)
		m, ok := item.(map[string]interface{})
		if !ok {
			c.fail(itemPath, "type", "expected a module mapping, got %T", item)
			continue
		}
		if mc := c.module(itemPath, m); mc != nil {
			out = append(out, *mc)
		}
	}
	return out
}

func (c *converter) column(path string, raw interface{}, numeric bool) (dataset.Column, bool) {
	name, ok := raw.(string)
	if !ok {
		c.fail(path, "type", "expected a column name, got %T", raw)
		return "", false
	}
	col, err := dataset.ParseColumn(name)
	if err != nil {
		c.fail(path, "enum", "%v", err)
		return "", false
	}
	if numeric && !col.Numeric() {
		c.fail(path, "enum", "column %s is not numeric", col)
		return "", false
	}
	return col, true
}

func (c *converter) controls(data map[string]interface{}) dashboard.Controls {
	var ctl dashboard.Controls
	if raw, ok := data["x"]; ok {
		ctl.X, _ = c.column("/controls/x", raw, true)
	}
	if raw, ok := data["y"]; ok {
		ctl.Y, _ = c.column("/controls/y", raw, true)
	}
	if raw, ok := data["color"]; ok {
		var col dataset.Column
		if s, isString := raw.(string); isString && (s == "" || strings.EqualFold(s, colorNone)) {
			ctl.Color = &col
		} else if parsed, ok := c.column("/controls/color", raw, false); ok {
			col = parsed
			ctl.Color = &col
		}
	}

	if raw, ok := data["years"].([]interface{}); ok && len(raw) == 2 {
		lo, okLo := toInt(raw[0])
		hi, okHi := toInt(raw[1])
		if okLo && okHi {
			ctl.YearMin, ctl.YearMax = &lo, &hi
		} else {
			c.fail("/controls/years", "type", "years must be two integers")
		}
	}

	if raw, ok := data["origins"].([]interface{}); ok {
		ctl.Origins = make([]string, 0, len(raw))
		for i, item := range raw {
			s, ok := item.(string)
			if !ok {
				c.fail(fmt.Sprintf("/controls/origins/%d", i), "type", "origin must be a string")
				continue
			}
			ctl.Origins = append(ctl.Origins, s)
		}
	}

	if raw, ok := data["horsepower"].([]interface{}); ok && len(raw) == 2 {
		lo, okLo := toFloat(raw[0])
		hi, okHi := toFloat(raw[1])
		if okLo && okHi {
			ctl.Horsepower = &dataset.Range{Min: lo, Max: hi}
		} else {
			c.fail("/controls/horsepower", "type", "horsepower must be two numbers")
		}
	}

	ctl.ShowData, _ = data["showData"].(bool)

	if hist, ok := data["histogram"].(map[string]interface{}); ok {
		if raw, ok := hist["column"]; ok {
			ctl.HistogramColumn, _ = c.column("/controls/histogram/column", raw, true)
		}
		if raw, ok := hist["bins"]; ok {
			if n, ok := toInt(raw); ok && n > 0 {
				ctl.HistogramBins = n
			} else {
				c.fail("/controls/histogram/bins", "type", "bins must be a positive integer")
			}
		}
	}
	if raw, ok := data["box"]; ok {
		ctl.BoxColumn, _ = c.column("/controls/box", raw, true)
	}
	return ctl
}

func (c *converter) aggregate(path string, raw interface{}) (dashboard.Aggregate, bool) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		c.fail(path, "type", "expected an aggregate mapping, got %T", raw)
		return dashboard.Aggregate{}, false
	}
	before := len(c.errs)
	var agg dashboard.Aggregate

	var keys []interface{}
	switch g := m["groupBy"].(type) {
	case string:
		keys = []interface{}{g}
	case []interface{}:
		keys = g
	}
	if len(keys) == 0 || len(keys) > 2 {
		c.fail(path+"/groupBy", "range", "groupBy needs one or two columns")
	}
	for i, k := range keys {
		if col, ok := c.column(fmt.Sprintf("%s/groupBy/%d", path, i), k, false); ok {
			agg.GroupBy = append(agg.GroupBy, col)
		}
	}
	agg.Value, _ = c.column(path+"/value", m["value"], true)

	opName, _ := m["op"].(string)
	op, err := explore.ParseOp(opName)
	if err != nil {
		c.fail(path+"/op", "enum", "%v", err)
	}
	agg.Op = string(op)
	return agg, len(c.errs) == before
}

// toInt accepts YAML integers and whole JSON numbers.
func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int(n), true
		}
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n)
	}
	return 0, false
}
