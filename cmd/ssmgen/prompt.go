package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// resolvePrompt picks the prompt from, in order: the --prompt flag, the
// --prompt-file flag ("-" reads stdin), the first argument, or piped stdin.
func resolvePrompt(flagPrompt, file, arg string, stdin io.Reader, stdinTTY bool) (string, error) {
	switch {
	case flagPrompt != "":
		return flagPrompt, nil
	case file == "-":
		return readAllTrimmed(stdin)
	case file != "":
		f, err := os.Open(file)
		if err != nil {
			return "", fmt.Errorf("open prompt file: %w", err)
		}
		defer func() { _ = f.Close() }()
		return readAllTrimmed(f)
	case arg != "":
		return arg, nil
	case !stdinTTY:
		return readAllTrimmed(stdin)
	default:
		return "", errors.New("prompt is required (use --prompt, --prompt-file or pipe it on stdin)")
	}
}

func readAllTrimmed(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

// readPrompts reads one prompt per line, skipping blank lines.
func readPrompts(r io.Reader) ([]string, error) {
	var prompts []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		prompts = append(prompts, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	return prompts, nil
}
