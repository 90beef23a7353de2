package workflow

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Typed node configs. Each node kind decodes its untyped config map into
// one of these at execution time; unknown keys are ignored so editors can
// carry UI-only fields.

// NavigateConfig configures a navigate node.
type NavigateConfig struct {
	URL       string `mapstructure:"url"`
	WaitUntil string `mapstructure:"wait_until"` // load, networkidle, domcontentloaded
}

// ClickConfig configures a click node.
type ClickConfig struct {
	Selector        string `mapstructure:"selector"`
	SelectorType    string `mapstructure:"selector_type"`
	WaitForSelector bool   `mapstructure:"wait_for_selector"`
	HumanLike       bool   `mapstructure:"human_like"`
}

// TypeTextConfig configures a type_text node.
type TypeTextConfig struct {
	Selector   string `mapstructure:"selector"`
	Text       string `mapstructure:"text"`
	ClearFirst bool   `mapstructure:"clear_first"`
	PressEnter bool   `mapstructure:"press_enter"`
	HumanLike  bool   `mapstructure:"human_like"`
}

// WaitConfig configures a wait node.
type WaitConfig struct {
	WaitType string  `mapstructure:"wait_type"` // time, element, navigation, network
	Duration float64 `mapstructure:"duration"`  // seconds, for wait_type=time
	Selector string  `mapstructure:"selector"`  // for wait_type=element
}

// ScreenshotConfig configures a screenshot node.
type ScreenshotConfig struct {
	OutputKey string `mapstructure:"output_key"`
	FilePath  string `mapstructure:"file_path"`
}

// ExtractTextConfig configures an extract_text node.
type ExtractTextConfig struct {
	Selector     string  `mapstructure:"selector"`
	OutputKey    string  `mapstructure:"output_key"`
	Trim         bool    `mapstructure:"trim"`
	DefaultValue *string `mapstructure:"default_value"`
}

// ExtractAttributeConfig configures an extract_attribute node.
type ExtractAttributeConfig struct {
	Selector     string  `mapstructure:"selector"`
	Attribute    string  `mapstructure:"attribute"`
	OutputKey    string  `mapstructure:"output_key"`
	DefaultValue *string `mapstructure:"default_value"`
}

// ExtractField is one field extracted per container by extract_multiple.
type ExtractField struct {
	Name      string `mapstructure:"name"`
	Selector  string `mapstructure:"selector"`
	Attribute string `mapstructure:"attribute"` // empty means text content
}

// ExtractMultipleConfig configures an extract_multiple node.
type ExtractMultipleConfig struct {
	ContainerSelector string         `mapstructure:"container_selector"`
	Fields            []ExtractField `mapstructure:"fields"`
	OutputKey         string         `mapstructure:"output_key"`
	Limit             int            `mapstructure:"limit"`
}

// TransformConfig configures a transform node. The expression sees the
// whole data map plus the input value bound to "value".
type TransformConfig struct {
	Expression string `mapstructure:"expression"`
	InputKey   string `mapstructure:"input_key"`
	OutputKey  string `mapstructure:"output_key"`
}

// FilterConfig configures a filter node: keeps list items for which the
// expression is truthy, the item bound to "value".
type FilterConfig struct {
	InputKey   string `mapstructure:"input_key"`
	Expression string `mapstructure:"expression"`
	OutputKey  string `mapstructure:"output_key"`
}

// MapConfig configures a map node: rewrites each list item through the
// expression, the item bound to "value".
type MapConfig struct {
	InputKey   string `mapstructure:"input_key"`
	Expression string `mapstructure:"expression"`
	OutputKey  string `mapstructure:"output_key"`
}

// MergeConfig configures a merge node.
type MergeConfig struct {
	InputKeys []string `mapstructure:"input_keys"`
	OutputKey string   `mapstructure:"output_key"`
	Strategy  string   `mapstructure:"strategy"` // concat, union
}

// ConditionConfig configures a condition node. The expression result is
// stored for observability; branching is decided by edge conditions.
type ConditionConfig struct {
	Condition string `mapstructure:"condition"`
	OutputKey string `mapstructure:"output_key"`
}

// LoopConfig configures a loop node.
type LoopConfig struct {
	InputKey      string `mapstructure:"input_key"`
	LoopVariable  string `mapstructure:"loop_variable"`
	MaxIterations int    `mapstructure:"max_iterations"`
}

// SaveJSONConfig configures a save_json node. With an empty DataKey the
// whole data snapshot is saved; with an empty FilePath nothing is written
// to disk and the value only lands under "output".
type SaveJSONConfig struct {
	FilePath string `mapstructure:"file_path"`
	DataKey  string `mapstructure:"data_key"`
}

// SaveCSVConfig configures a save_csv node.
type SaveCSVConfig struct {
	FilePath string `mapstructure:"file_path"`
	DataKey  string `mapstructure:"data_key"`
}

// APICallConfig configures an api_call node.
type APICallConfig struct {
	URL       string            `mapstructure:"url"`
	Method    string            `mapstructure:"method"`
	Headers   map[string]string `mapstructure:"headers"`
	Body      any               `mapstructure:"body"`
	OutputKey string            `mapstructure:"output_key"`
}

// DatabaseConfig configures a database node, which appends rows to a named
// dataset through the repository.
type DatabaseConfig struct {
	Table   string `mapstructure:"table"`
	DataKey string `mapstructure:"data_key"`
}

// AIExtractConfig configures an ai_extract node.
type AIExtractConfig struct {
	Prompt    string `mapstructure:"prompt"`
	Selector  string `mapstructure:"selector"`
	OutputKey string `mapstructure:"output_key"`
	UseVision bool   `mapstructure:"use_vision"`
}

// AIClassifyConfig configures an ai_classify node.
type AIClassifyConfig struct {
	InputKey   string   `mapstructure:"input_key"`
	Categories []string `mapstructure:"categories"`
	OutputKey  string   `mapstructure:"output_key"`
}

// AIGenerateConfig configures an ai_generate node.
type AIGenerateConfig struct {
	Prompt    string `mapstructure:"prompt"`
	InputKey  string `mapstructure:"input_key"`
	OutputKey string `mapstructure:"output_key"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// decodeConfig decodes a node's config map into the typed config for its
// kind. Missing keys keep zero values; type mismatches are errors.
func decodeConfig(node *Node, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return newNodeError(ErrInvalidConfig, node.ID, "failed to build config decoder", err)
	}
	if err := decoder.Decode(node.Config); err != nil {
		return newNodeError(ErrInvalidConfig, node.ID,
			fmt.Sprintf("invalid %s config", node.Kind), err)
	}
	return nil
}
