// Package codeexec runs model-generated code snippets. The Local executor
// shells out on the host after an explicit unsafe opt-in; the Container
// executor isolates every run in a fresh docker container with resource
// limits. ExtractBlocks pulls fenced code out of markdown replies.
package codeexec

import (
	"context"
	"strings"
	"time"
)

// Block is a single piece of code to run, tagged with its language.
type Block struct {
	Language string
	Code     string
}

// Result captures the outcome of one execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Executor runs code blocks. Implementations decide where and how isolated
// the code runs.
type Executor interface {
	Execute(ctx context.Context, block Block) (Result, error)
	Close() error
}

// ExtractBlocks parses fenced code blocks out of a markdown document, the
// shape model replies deliver code in. The fence's info string becomes the
// block language.
func ExtractBlocks(markdown string) []Block {
	var blocks []Block

	lines := strings.Split(markdown, "\n")
	var current *Block
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if current == nil {
			if rest, ok := strings.CutPrefix(trimmed, "```"); ok {
				current = &Block{Language: strings.TrimSpace(rest)}
			}
			continue
		}

		if trimmed == "```" {
			current.Code = strings.TrimSuffix(current.Code, "\n")
			blocks = append(blocks, *current)
			current = nil
			continue
		}

		current.Code += line + "\n"
	}

	return blocks
}
