package workflow

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
)

// Transform and output executors. None of these touch the browser; they
// operate on the context data map, the filesystem, external HTTP APIs, and
// the dataset store.

func executeTransform(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg TransformConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	if cfg.Expression == "" {
		return newNodeError(ErrInvalidConfig, node.ID, "transform requires expression", nil)
	}
	if cfg.OutputKey == "" {
		return newNodeError(ErrInvalidConfig, node.ID, "transform requires output_key", nil)
	}

	namespace := ec.Snapshot()
	if cfg.InputKey != "" {
		namespace["value"] = namespace[cfg.InputKey]
	}

	result, err := env.Evaluator.Evaluate(cfg.Expression, namespace)
	if err != nil {
		// Eval failure inside a transform is a node failure, subject to
		// the node's retry policy.
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"transform expression failed", err)
	}
	ec.Set(cfg.OutputKey, result)
	return nil
}

func executeFilter(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg FilterConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	items, key, err := listInput(node, ec, cfg.InputKey, cfg.OutputKey, "filter")
	if err != nil {
		return err
	}

	base := ec.Snapshot()
	kept := make([]any, 0, len(items))
	for _, item := range items {
		base["value"] = item
		ok, err := env.Evaluator.EvaluateBool(cfg.Expression, base)
		if err != nil {
			return newNodeError(ErrNodeExecutionFailed, node.ID,
				"filter expression failed", err)
		}
		if ok {
			kept = append(kept, item)
		}
	}
	ec.Set(key, kept)
	return nil
}

func executeMap(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg MapConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	items, key, err := listInput(node, ec, cfg.InputKey, cfg.OutputKey, "map")
	if err != nil {
		return err
	}

	base := ec.Snapshot()
	mapped := make([]any, 0, len(items))
	for _, item := range items {
		base["value"] = item
		result, err := env.Evaluator.Evaluate(cfg.Expression, base)
		if err != nil {
			return newNodeError(ErrNodeExecutionFailed, node.ID,
				"map expression failed", err)
		}
		mapped = append(mapped, result)
	}
	ec.Set(key, mapped)
	return nil
}

// listInput fetches and validates the list input shared by filter and map.
func listInput(node *Node, ec *ExecutionContext, inputKey, outputKey, kind string) ([]any, string, error) {
	if inputKey == "" {
		return nil, "", newNodeError(ErrInvalidConfig, node.ID, kind+" requires input_key", nil)
	}
	if outputKey == "" {
		outputKey = inputKey
	}

	value, _ := ec.Get(inputKey)
	if value == nil {
		return nil, "", newNodeError(ErrNodeExecutionFailed, node.ID,
			kind+" input "+inputKey+" is not set", nil)
	}
	items, ok := value.([]any)
	if !ok {
		return nil, "", newNodeError(ErrNodeExecutionFailed, node.ID,
			kind+" input "+inputKey+" is not a list", nil)
	}
	return items, outputKey, nil
}

func executeMerge(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg MergeConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	if len(cfg.InputKeys) == 0 {
		return newNodeError(ErrInvalidConfig, node.ID, "merge requires input_keys", nil)
	}
	if cfg.OutputKey == "" {
		return newNodeError(ErrInvalidConfig, node.ID, "merge requires output_key", nil)
	}

	switch cfg.Strategy {
	case "", "concat":
		var out []any
		for _, key := range cfg.InputKeys {
			value, ok := ec.Get(key)
			if !ok {
				continue
			}
			if items, isList := value.([]any); isList {
				out = append(out, items...)
			} else {
				out = append(out, value)
			}
		}
		ec.Set(cfg.OutputKey, out)
		return nil

	case "union":
		out := make(map[string]any)
		for _, key := range cfg.InputKeys {
			value, ok := ec.Get(key)
			if !ok {
				continue
			}
			m, isMap := value.(map[string]any)
			if !isMap {
				return newNodeError(ErrNodeExecutionFailed, node.ID,
					"merge union input "+key+" is not a map", nil)
			}
			for k, v := range m {
				out[k] = v
			}
		}
		ec.Set(cfg.OutputKey, out)
		return nil

	default:
		return newNodeError(ErrInvalidConfig, node.ID,
			"unknown merge strategy "+cfg.Strategy, nil)
	}
}

func executeSaveJSON(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg SaveJSONConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}

	var value any
	if cfg.DataKey != "" {
		value, _ = ec.Get(cfg.DataKey)
	} else {
		value = ec.Snapshot()
	}

	if cfg.FilePath != "" {
		encoded, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return newNodeError(ErrNodeExecutionFailed, node.ID,
				"encoding JSON failed", err)
		}
		if err := os.WriteFile(cfg.FilePath, encoded, 0o644); err != nil {
			return newNodeError(ErrNodeExecutionFailed, node.ID,
				"writing "+cfg.FilePath+" failed", err)
		}
	}

	// The saved value is always exposed under "output" so downstream nodes
	// and the final run record can see what was written.
	ec.Set("output", value)
	return nil
}

func executeSaveCSV(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg SaveCSVConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	if cfg.DataKey == "" {
		return newNodeError(ErrInvalidConfig, node.ID, "save_csv requires data_key", nil)
	}

	value, _ := ec.Get(cfg.DataKey)
	rows, err := toRowMaps(value)
	if err != nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"save_csv input "+cfg.DataKey+": "+err.Error(), nil)
	}

	encoded, err := encodeCSV(rows)
	if err != nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID, "encoding CSV failed", err)
	}

	if cfg.FilePath != "" {
		if err := os.WriteFile(cfg.FilePath, encoded, 0o644); err != nil {
			return newNodeError(ErrNodeExecutionFailed, node.ID,
				"writing "+cfg.FilePath+" failed", err)
		}
	}
	ec.Set("output", string(encoded))
	return nil
}

// toRowMaps coerces a context value into rows for CSV and dataset output.
// A single map becomes one row; a list must hold only maps.
func toRowMaps(value any) ([]map[string]any, error) {
	switch v := value.(type) {
	case nil:
		return nil, fmt.Errorf("value is not set")
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		rows := make([]map[string]any, 0, len(v))
		for i, item := range v {
			row, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("item %d is not an object", i)
			}
			rows = append(rows, row)
		}
		return rows, nil
	default:
		return nil, fmt.Errorf("value is not a list of objects")
	}
}

// encodeCSV renders rows with a stable header: the sorted union of all row
// keys.
func encodeCSV(rows []map[string]any) ([]byte, error) {
	headerSet := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			headerSet[k] = true
		}
	}
	header := make([]string, 0, len(headerSet))
	for k := range headerSet {
		header = append(header, k)
	}
	sort.Strings(header)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range rows {
		record := make([]string, len(header))
		for i, k := range header {
			record[i] = formatValue(row[k])
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func executeAPICall(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg APICallConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	if cfg.URL == "" {
		return newNodeError(ErrInvalidConfig, node.ID, "api_call requires url", nil)
	}
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}
	key := cfg.OutputKey
	if key == "" {
		key = "api_response"
	}

	var body io.Reader
	if cfg.Body != nil {
		switch b := cfg.Body.(type) {
		case string:
			body = strings.NewReader(b)
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				return newNodeError(ErrNodeExecutionFailed, node.ID,
					"encoding request body failed", err)
			}
			body = bytes.NewReader(encoded)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, body)
	if err != nil {
		return newNodeError(ErrInvalidConfig, node.ID, "invalid request", err)
	}
	if cfg.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := env.HTTPClient.Do(req)
	if err != nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"request to "+cfg.URL+" failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"reading response body failed", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			fmt.Sprintf("request to %s returned status %d", cfg.URL, resp.StatusCode), nil)
	}

	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		parsed = string(raw)
	}
	ec.Set(key, parsed)
	return nil
}

func executeDatabase(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg DatabaseConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	if cfg.Table == "" {
		return newNodeError(ErrInvalidConfig, node.ID, "database requires table", nil)
	}
	if cfg.DataKey == "" {
		return newNodeError(ErrInvalidConfig, node.ID, "database requires data_key", nil)
	}
	if env.Datasets == nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"dataset store not configured", nil)
	}

	value, _ := ec.Get(cfg.DataKey)
	rows, err := toRowMaps(value)
	if err != nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"database input "+cfg.DataKey+": "+err.Error(), nil)
	}
	if err := env.Datasets.AppendRows(ctx, cfg.Table, rows); err != nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"appending rows to "+cfg.Table+" failed", err)
	}
	return nil
}
