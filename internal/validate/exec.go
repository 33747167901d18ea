package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DetectSystem probes marker files in fixed priority order; the first
// matching system wins.
func DetectSystem(root string) System {
	switch {
	case anyPresent(root, "requirements.txt", "pyproject.toml", "setup.py"):
		return SystemPython
	case anyPresent(root, "package.json"):
		return SystemNode
	case anyPresent(root, "pom.xml", "build.gradle", "build.gradle.kts"):
		return SystemJava
	case anyPresent(root, "build.sh", "test.sh"):
		return SystemCustom
	default:
		return SystemNone
	}
}

// plan holds the build and test commands for a detected system. Either
// list may be empty when the system defines no such step.
type plan struct {
	build [][]string
	test  [][]string
}

func commandPlan(root string, system System) plan {
	switch system {
	case SystemPython:
		p := plan{test: [][]string{{"python", "-m", "pytest"}}}
		if anyPresent(root, "requirements.txt") {
			p.build = [][]string{{"python", "-m", "pip", "install", "-r", "requirements.txt"}}
		} else {
			p.build = [][]string{{"python", "-m", "pip", "install", "-e", "."}}
		}
		return p
	case SystemNode:
		p := plan{
			build: [][]string{{"npm", "install"}},
			test:  [][]string{{"npm", "test"}},
		}
		if hasNpmScript(root, "build") {
			p.build = append(p.build, []string{"npm", "run", "build"})
		}
		return p
	case SystemJava:
		if anyPresent(root, "pom.xml") {
			return plan{
				build: [][]string{{"mvn", "-B", "clean", "install"}},
				test:  [][]string{{"mvn", "-B", "test"}},
			}
		}
		return plan{
			build: [][]string{{"gradle", "build"}},
			test:  [][]string{{"gradle", "test"}},
		}
	case SystemCustom:
		var p plan
		if anyPresent(root, "build.sh") {
			p.build = [][]string{{"sh", "build.sh"}}
		}
		if anyPresent(root, "test.sh") {
			p.test = [][]string{{"sh", "test.sh"}}
		}
		return p
	default:
		return plan{}
	}
}

// runCommand executes one command with the step timeout, capturing
// combined output. Failures of any shape (non-zero exit, missing binary,
// timeout) are reported in the output, never as an error.
func (v *BuildValidator) runCommand(ctx context.Context, root string, argv []string) (bool, string) {
	timeoutCtx, cancel := context.WithTimeout(ctx, v.stepTimeout)
	defer cancel()

	cmd := exec.CommandContext(timeoutCtx, argv[0], argv[1:]...)
	cmd.Dir = root

	output, err := cmd.CombinedOutput()
	out := v.truncate(string(output))
	if err == nil {
		v.logger.Debug("command succeeded", zap.Strings("argv", argv))
		return true, out
	}

	if timeoutCtx.Err() == context.DeadlineExceeded {
		out = appendLine(out, fmt.Sprintf("command %q timed out after %v", strings.Join(argv, " "), v.stepTimeout))
	} else {
		out = appendLine(out, fmt.Sprintf("command %q failed: %v", strings.Join(argv, " "), err))
	}
	v.logger.Warn("command failed",
		zap.Strings("argv", argv),
		zap.Error(err))
	return false, out
}

func (v *BuildValidator) truncate(s string) string {
	if len(s) <= v.maxOutput {
		return s
	}
	return s[:v.maxOutput] + "\n... (output truncated)"
}

func appendLine(out, line string) string {
	if out == "" {
		return line
	}
	return out + "\n" + line
}

func anyPresent(root string, names ...string) bool {
	for _, name := range names {
		if _, err := os.Stat(filepath.Join(root, name)); err == nil {
			return true
		}
	}
	return false
}

// hasNpmScript reports whether package.json declares the named script.
// Unreadable or malformed manifests read as "no".
func hasNpmScript(root, script string) bool {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return false
	}
	var manifest struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return false
	}
	_, ok := manifest.Scripts[script]
	return ok
}
