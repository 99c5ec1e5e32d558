package llm

import (
	"context"
	"fmt"
	"strings"
)

// StaticGenerator is a lightweight generator useful for local runs and
// tests without API calls. It answers with a prefix plus the last
// non-empty line of the prompt.
type StaticGenerator struct {
	Prefix string
}

func NewStaticGenerator(prefix string) *StaticGenerator {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Static response:"
	}
	return &StaticGenerator{Prefix: prefix}
}

func (g *StaticGenerator) Generate(_ context.Context, prompt string) (string, error) {
	lines := strings.Split(prompt, "\n")
	var last string
	for i := len(lines) - 1; i >= 0; i-- {
		candidate := strings.TrimSpace(lines[i])
		if candidate != "" {
			last = candidate
			break
		}
	}
	if last == "" {
		last = "<empty prompt>"
	}
	return fmt.Sprintf("%s %s", g.Prefix, last), nil
}
