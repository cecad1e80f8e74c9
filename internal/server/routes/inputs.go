package routes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"gopkg.in/yaml.v3"
)

// identifyRequest 同时接受 toolName/toolRevision 与历史客户端使用的 simtool_* 字段。
type identifyRequest struct {
	ToolName        string          `json:"toolName"`
	ToolRevision    string          `json:"toolRevision"`
	SimtoolName     string          `json:"simtool_name"`
	SimtoolRevision string          `json:"simtool_revision"`
	Inputs          json.RawMessage `json:"inputs"`
}

type identifyParams struct {
	ToolName     string
	ToolRevision string
	Inputs       any
}

var errMissingTool = errors.New("toolName and toolRevision are required")

// parseIdentifyRequest 优先解析 JSON 请求体，请求体为空时回退到查询参数。
func parseIdentifyRequest(c fiber.Ctx) (identifyParams, error) {
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 {
		inputs, err := parseInputsText(c.Query("inputs"))
		if err != nil {
			return identifyParams{}, err
		}
		return validateTool(identifyParams{
			ToolName:     firstNonEmpty(c.Query("toolName"), c.Query("simtool_name")),
			ToolRevision: firstNonEmpty(c.Query("toolRevision"), c.Query("simtool_revision")),
			Inputs:       inputs,
		})
	}

	var req identifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return identifyParams{}, fmt.Errorf("malformed JSON body: %w", err)
	}
	inputs, err := decodeInputs(req.Inputs)
	if err != nil {
		return identifyParams{}, err
	}
	return validateTool(identifyParams{
		ToolName:     firstNonEmpty(req.ToolName, req.SimtoolName),
		ToolRevision: firstNonEmpty(req.ToolRevision, req.SimtoolRevision),
		Inputs:       inputs,
	})
}

func validateTool(p identifyParams) (identifyParams, error) {
	if p.ToolName == "" || p.ToolRevision == "" {
		return identifyParams{}, errMissingTool
	}
	return p, nil
}

// decodeInputs 接受 JSON 值或包含 JSON/YAML 文本的字符串；缺省视为空对象。
func decodeInputs(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return map[string]any{}, nil
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, fmt.Errorf("malformed inputs: %w", err)
		}
		return parseInputsText(text)
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var inputs any
	if err := dec.Decode(&inputs); err != nil {
		return nil, fmt.Errorf("malformed inputs: %w", err)
	}
	return inputs, nil
}

// parseInputsText 先按 JSON 解析，失败时按 YAML 解析。
func parseInputsText(text string) (any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var inputs any
	if err := dec.Decode(&inputs); err == nil && !dec.More() {
		return inputs, nil
	}

	inputs = nil
	if err := yaml.Unmarshal([]byte(text), &inputs); err != nil {
		return nil, fmt.Errorf("inputs are neither JSON nor YAML: %w", err)
	}
	if inputs == nil {
		return map[string]any{}, nil
	}
	return inputs, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
