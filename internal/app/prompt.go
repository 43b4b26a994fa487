package app

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"nhlagent/internal/domain"
)

//go:embed prompts/system_prompt_v0.md
var prompts embed.FS

// LoadPrompt reads the system prompt. An empty path, or the default path when
// no such file exists, selects the built-in prompt.
func LoadPrompt(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			return strings.TrimSpace(string(data)), nil
		case path != domain.DefaultPromptPath || !errors.Is(err, fs.ErrNotExist):
			return "", domain.E(domain.CodeInvalidConfig, "app.prompt", fmt.Sprintf("read prompt %s", path), err)
		}
	}
	data, err := prompts.ReadFile(domain.DefaultPromptPath)
	if err != nil {
		return "", domain.E(domain.CodeInvalidConfig, "app.prompt", "read built-in prompt", err)
	}
	return strings.TrimSpace(string(data)), nil
}
