package commands

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// loadInputs 读取 YAML/JSON 输入文件；path 为空时返回空对象。
func loadInputs(path string) (any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = readStdin()
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read inputs: %w", err)
	}

	var inputs any
	if err := yaml.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("parse inputs %s: %w", path, err)
	}
	if inputs == nil {
		return map[string]any{}, nil
	}
	return inputs, nil
}

var readStdin = func() ([]byte, error) {
	return io.ReadAll(os.Stdin)
}
