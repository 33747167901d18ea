package generate

import (
	"regexp"
	"strings"
)

// codeBlockPattern matches fenced code blocks, optionally carrying a
// language tag and a path after a colon (```go:cmd/main.go).
var codeBlockPattern = regexp.MustCompile("```(\\w+)?:?([^\n]+)?\n(?s:(.*?))```")

var languageExtensions = map[string]string{
	"python":     ".py",
	"javascript": ".js",
	"typescript": ".ts",
	"java":       ".java",
	"go":         ".go",
}

// ParseFileSet extracts files from a model response. It reads the
// FILE:/CONTENT:/END_FILE framing the prompt asks for, falls back to fenced
// code blocks when the model ignored the framing, and as a last resort
// treats the whole response as a single implementation file.
func ParseFileSet(response string) FileSet {
	files := FileSet{}

	var (
		current string
		content []string
		inFile  bool
	)
	save := func() {
		files[current] = strings.TrimSpace(strings.Join(content, "\n"))
		current, content, inFile = "", nil, false
	}

	for _, line := range strings.Split(response, "\n") {
		switch {
		case strings.HasPrefix(line, "FILE:"):
			if inFile {
				save()
			}
			current = strings.TrimSpace(strings.TrimPrefix(line, "FILE:"))
			inFile = current != ""
		case strings.TrimSpace(line) == "END_FILE":
			if inFile {
				save()
			}
		case inFile:
			if len(content) == 0 && strings.TrimSpace(line) == "CONTENT:" {
				continue
			}
			content = append(content, line)
		}
	}
	if inFile {
		save()
	}

	if len(files) == 0 {
		files = parseCodeBlocks(response)
	}
	return files
}

func parseCodeBlocks(response string) FileSet {
	files := FileSet{}
	for _, m := range codeBlockPattern.FindAllStringSubmatch(response, -1) {
		lang, path, body := m[1], m[2], m[3]
		name := strings.TrimSpace(path)
		if name == "" {
			ext, ok := languageExtensions[strings.ToLower(lang)]
			if !ok {
				ext = ".txt"
			}
			name = "generated_file" + ext
		}
		files[name] = strings.TrimSpace(body)
	}
	if len(files) == 0 {
		files["implementation.py"] = response
	}
	return files
}
