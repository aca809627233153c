package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResolvePrompt(t *testing.T) {
	file := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(file, []byte("from file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name    string
		flag    string
		file    string
		arg     string
		stdin   string
		tty     bool
		want    string
		wantErr bool
	}{
		{name: "flag wins", flag: "flag", file: file, arg: "arg", want: "flag"},
		{name: "file before arg", file: file, arg: "arg", want: "from file"},
		{name: "dash reads stdin", file: "-", stdin: "piped\r\n", tty: true, want: "piped"},
		{name: "argument", arg: "arg", stdin: "ignored", want: "arg"},
		{name: "piped stdin", stdin: "line one\nline two\n", want: "line one\nline two"},
		{name: "terminal without prompt", tty: true, wantErr: true},
		{name: "missing file", file: filepath.Join(t.TempDir(), "missing"), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolvePrompt(tc.flag, tc.file, tc.arg, strings.NewReader(tc.stdin), tc.tty)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolvePrompt returned error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestReadPromptsSkipsBlankLines(t *testing.T) {
	got, err := readPrompts(strings.NewReader("first\n\n  \nsecond\r\nthird"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"first", "second", "third"}, got); diff != "" {
		t.Fatalf("prompts (-want +got):\n%s", diff)
	}
}
