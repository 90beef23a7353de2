package workflow

import (
	"context"
	"encoding/base64"
	"os"
	"strings"
	"time"

	"github.com/scrapeflow-ai/scrapeflow/internal/browser"
)

// Browser-driving executors. All of them require the run to have a
// provisioned driver; failures are attributed to the node and subject to
// its retry policy.

func executeNavigate(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg NavigateConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	if cfg.URL == "" {
		return newNodeError(ErrInvalidConfig, node.ID, "navigate requires url", nil)
	}

	driver, err := requireDriver(node, ec)
	if err != nil {
		return err
	}

	if err := driver.Get(ctx, cfg.URL); err != nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"navigation to "+cfg.URL+" failed", err)
	}

	if cfg.WaitUntil == "networkidle" {
		if err := driver.WaitForNetworkIdle(ctx); err != nil {
			return newNodeError(ErrNodeExecutionFailed, node.ID,
				"waiting for network idle failed", err)
		}
	}
	return nil
}

func executeClick(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg ClickConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	if cfg.Selector == "" {
		return newNodeError(ErrInvalidConfig, node.ID, "click requires selector", nil)
	}

	driver, err := requireDriver(node, ec)
	if err != nil {
		return err
	}

	if cfg.WaitForSelector {
		if err := driver.WaitForElement(ctx, cfg.Selector); err != nil {
			return newNodeError(ErrNodeExecutionFailed, node.ID,
				"element "+cfg.Selector+" did not appear", err)
		}
	}
	if err := driver.Click(ctx, cfg.Selector, cfg.HumanLike); err != nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"click on "+cfg.Selector+" failed", err)
	}
	return nil
}

func executeTypeText(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg TypeTextConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	if cfg.Selector == "" {
		return newNodeError(ErrInvalidConfig, node.ID, "type_text requires selector", nil)
	}

	driver, err := requireDriver(node, ec)
	if err != nil {
		return err
	}

	if cfg.ClearFirst {
		el, err := driver.FindElement(ctx, cfg.Selector)
		if err != nil {
			return newNodeError(ErrNodeExecutionFailed, node.ID,
				"element "+cfg.Selector+" not found", err)
		}
		if err := el.Clear(); err != nil {
			return newNodeError(ErrNodeExecutionFailed, node.ID,
				"clearing "+cfg.Selector+" failed", err)
		}
	}

	if err := driver.Type(ctx, cfg.Selector, cfg.Text, cfg.HumanLike); err != nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"typing into "+cfg.Selector+" failed", err)
	}

	if cfg.PressEnter {
		el, err := driver.FindElement(ctx, cfg.Selector)
		if err != nil {
			return newNodeError(ErrNodeExecutionFailed, node.ID,
				"element "+cfg.Selector+" not found", err)
		}
		if err := el.SendKeys("\n"); err != nil {
			return newNodeError(ErrNodeExecutionFailed, node.ID,
				"pressing enter in "+cfg.Selector+" failed", err)
		}
	}
	return nil
}

func executeWait(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg WaitConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}

	switch cfg.WaitType {
	case "", "time":
		d := time.Duration(cfg.Duration * float64(time.Second))
		if d <= 0 {
			return nil
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return newNodeError(ErrRunCancelled, node.ID, "wait interrupted", ctx.Err())
		}

	case "element":
		if cfg.Selector == "" {
			return newNodeError(ErrInvalidConfig, node.ID,
				"wait_type element requires selector", nil)
		}
		driver, err := requireDriver(node, ec)
		if err != nil {
			return err
		}
		if err := driver.WaitForElement(ctx, cfg.Selector); err != nil {
			return newNodeError(ErrNodeExecutionFailed, node.ID,
				"element "+cfg.Selector+" did not appear", err)
		}
		return nil

	case "navigation":
		driver, err := requireDriver(node, ec)
		if err != nil {
			return err
		}
		if err := driver.WaitForNavigation(ctx); err != nil {
			return newNodeError(ErrNodeExecutionFailed, node.ID,
				"waiting for navigation failed", err)
		}
		return nil

	case "network":
		driver, err := requireDriver(node, ec)
		if err != nil {
			return err
		}
		if err := driver.WaitForNetworkIdle(ctx); err != nil {
			return newNodeError(ErrNodeExecutionFailed, node.ID,
				"waiting for network idle failed", err)
		}
		return nil

	default:
		return newNodeError(ErrInvalidConfig, node.ID,
			"unknown wait_type "+cfg.WaitType, nil)
	}
}

func executeScreenshot(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg ScreenshotConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}

	driver, err := requireDriver(node, ec)
	if err != nil {
		return err
	}

	png, err := driver.Screenshot(ctx)
	if err != nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID, "screenshot failed", err)
	}

	if cfg.FilePath != "" {
		if err := os.WriteFile(cfg.FilePath, png, 0o644); err != nil {
			return newNodeError(ErrNodeExecutionFailed, node.ID,
				"writing screenshot to "+cfg.FilePath+" failed", err)
		}
	}

	key := cfg.OutputKey
	if key == "" {
		key = "screenshot"
	}
	ec.Set(key, base64.StdEncoding.EncodeToString(png))
	return nil
}

func executeExtractText(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg ExtractTextConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	if cfg.Selector == "" {
		return newNodeError(ErrInvalidConfig, node.ID, "extract_text requires selector", nil)
	}
	key := cfg.OutputKey
	if key == "" {
		key = "extracted_text"
	}

	driver, err := requireDriver(node, ec)
	if err != nil {
		return err
	}

	el, err := driver.FindElement(ctx, cfg.Selector)
	if err != nil {
		if cfg.DefaultValue != nil {
			ec.Set(key, *cfg.DefaultValue)
			return nil
		}
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"selector "+cfg.Selector+" matched nothing", err)
	}

	text, err := el.Text()
	if err != nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"reading text from "+cfg.Selector+" failed", err)
	}
	if cfg.Trim {
		text = strings.TrimSpace(text)
	}
	ec.Set(key, text)
	return nil
}

func executeExtractAttribute(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg ExtractAttributeConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	if cfg.Selector == "" || cfg.Attribute == "" {
		return newNodeError(ErrInvalidConfig, node.ID,
			"extract_attribute requires selector and attribute", nil)
	}
	key := cfg.OutputKey
	if key == "" {
		key = "extracted_attribute"
	}

	driver, err := requireDriver(node, ec)
	if err != nil {
		return err
	}

	el, err := driver.FindElement(ctx, cfg.Selector)
	if err != nil {
		if cfg.DefaultValue != nil {
			ec.Set(key, *cfg.DefaultValue)
			return nil
		}
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"selector "+cfg.Selector+" matched nothing", err)
	}

	value, err := el.GetAttribute(cfg.Attribute)
	if err != nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"reading attribute "+cfg.Attribute+" failed", err)
	}
	ec.Set(key, value)
	return nil
}

func executeExtractMultiple(ctx context.Context, node *Node, ec *ExecutionContext, env *Env) error {
	var cfg ExtractMultipleConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	if cfg.ContainerSelector == "" {
		return newNodeError(ErrInvalidConfig, node.ID,
			"extract_multiple requires container_selector", nil)
	}
	key := cfg.OutputKey
	if key == "" {
		key = "extracted_items"
	}

	driver, err := requireDriver(node, ec)
	if err != nil {
		return err
	}

	containers, err := driver.FindElements(ctx, cfg.ContainerSelector)
	if err != nil {
		return newNodeError(ErrNodeExecutionFailed, node.ID,
			"container query "+cfg.ContainerSelector+" failed", err)
	}
	if cfg.Limit > 0 && len(containers) > cfg.Limit {
		containers = containers[:cfg.Limit]
	}

	items := make([]any, 0, len(containers))
	for _, container := range containers {
		item := make(map[string]any, len(cfg.Fields))
		for _, field := range cfg.Fields {
			item[field.Name] = extractField(container, field)
		}
		items = append(items, item)
	}
	ec.Set(key, items)
	return nil
}

// extractField pulls one field value out of a container element. Missing
// sub-elements yield nil rather than failing the whole row.
func extractField(container browser.Element, field ExtractField) any {
	el := container
	if field.Selector != "" {
		sub, err := container.FindElement(field.Selector)
		if err != nil {
			return nil
		}
		el = sub
	}

	if field.Attribute != "" {
		value, err := el.GetAttribute(field.Attribute)
		if err != nil {
			return nil
		}
		return value
	}

	text, err := el.Text()
	if err != nil {
		return nil
	}
	return strings.TrimSpace(text)
}
