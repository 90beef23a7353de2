package workflow

import (
	"context"
)

// AI executors delegate to the llm.Extractor service. A run without a
// configured extractor fails these nodes deterministically.

func executeAIExtract(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg AIExtractConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	if cfg.Prompt == "" {
		return newNodeError(ErrInvalidConfig, node.ID, "ai_extract requires prompt", nil)
	}
	if env.Extractor == nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"AI service not configured", nil)
	}
	key := cfg.OutputKey
	if key == "" {
		key = "ai_extracted"
	}

	html, err := pageContent(ctx, node, ec, cfg.Selector)
	if err != nil {
		return err
	}

	var screenshot []byte
	if cfg.UseVision {
		if driver := ec.Driver(); driver != nil {
			// Vision is best effort; drivers without screenshot support
			// fall back to HTML-only extraction.
			if png, shotErr := driver.Screenshot(ctx); shotErr == nil {
				screenshot = png
			}
		}
	}

	value, err := env.Extractor.ExtractData(ctx, cfg.Prompt, html, screenshot)
	if err != nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID, "AI extraction failed", err)
	}
	ec.Set(key, value)
	return nil
}

func executeAIClassify(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg AIClassifyConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	if cfg.InputKey == "" {
		return newNodeError(ErrInvalidConfig, node.ID, "ai_classify requires input_key", nil)
	}
	if len(cfg.Categories) == 0 {
		return newNodeError(ErrInvalidConfig, node.ID, "ai_classify requires categories", nil)
	}
	if env.Extractor == nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"AI service not configured", nil)
	}
	key := cfg.OutputKey
	if key == "" {
		key = "ai_category"
	}

	value, ok := ec.Get(cfg.InputKey)
	if !ok {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"ai_classify input "+cfg.InputKey+" is not set", nil)
	}

	category, err := env.Extractor.Classify(ctx, formatValue(value), cfg.Categories)
	if err != nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID, "AI classification failed", err)
	}
	ec.Set(key, category)
	return nil
}

func executeAIGenerate(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg AIGenerateConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	if cfg.Prompt == "" {
		return newNodeError(ErrInvalidConfig, node.ID, "ai_generate requires prompt", nil)
	}
	if env.Extractor == nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"AI service not configured", nil)
	}
	key := cfg.OutputKey
	if key == "" {
		key = "ai_generated"
	}

	var contextText string
	if cfg.InputKey != "" {
		if value, ok := ec.Get(cfg.InputKey); ok {
			contextText = formatValue(value)
		}
	}

	text, err := env.Extractor.Generate(ctx, cfg.Prompt, contextText, cfg.MaxTokens)
	if err != nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID, "AI generation failed", err)
	}
	ec.Set(key, text)
	return nil
}

// pageContent returns the HTML handed to the AI: the selected element's
// outer HTML, the driver's current page source, or the context's "html"
// key when the run has no browser.
func pageContent(ctx context.Context, node *Node, ec *ExecutionContext, selector string) (string, error) {
	driver := ec.Driver()
	if driver != nil {
		if selector != "" {
			el, err := driver.FindElement(ctx, selector)
			if err != nil {
				return "", newNodeError(ErrNodeExecutionFailed, node.ID,
					"selector "+selector+" matched nothing", err)
			}
			html, err := el.HTML()
			if err != nil {
				return "", newNodeError(ErrNodeExecutionFailed, node.ID,
					"reading element HTML failed", err)
			}
			return html, nil
		}
		source, err := driver.PageSource(ctx)
		if err != nil {
			return "", newNodeError(ErrNodeExecutionFailed, node.ID,
				"reading page source failed", err)
		}
		return source, nil
	}

	if value, ok := ec.Get("html"); ok {
		if html, isStr := value.(string); isStr {
			return html, nil
		}
	}
	return "", newNodeError(ErrNodeExecutionFailed, node.ID,
		"no page content available for AI extraction", nil)
}
