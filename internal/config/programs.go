package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const programSectionPrefix = "program:"

// ParseProgramsFile reads the [program:x] sections of a supervisor config.
func ParseProgramsFile(path string) ([]Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePrograms(f)
}

// ParsePrograms parses supervisor INI content. Sections other than
// [program:x] are ignored; indented lines continue the previous value.
func ParsePrograms(r io.Reader) ([]Program, error) {
	var (
		programs []Program
		current  *Program
		lastKey  string
		lineNo   int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)

		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			if !strings.HasSuffix(line, "]") {
				return nil, fmt.Errorf("line %d: unterminated section header %q", lineNo, line)
			}
			if current != nil {
				programs = append(programs, *current)
				current = nil
			}
			lastKey = ""
			section := strings.TrimSpace(line[1 : len(line)-1])
			if name, ok := strings.CutPrefix(section, programSectionPrefix); ok {
				name = strings.TrimSpace(name)
				if name == "" {
					return nil, fmt.Errorf("line %d: program section without a name", lineNo)
				}
				current = &Program{Name: name, Options: map[string]string{}}
			}
			continue
		}

		if current == nil {
			continue
		}

		if raw[0] == ' ' || raw[0] == '\t' {
			if lastKey == "" {
				return nil, fmt.Errorf("line %d: continuation without a key", lineNo)
			}
			current.Options[lastKey] += " " + line
			if lastKey == "command" {
				current.Command = current.Options[lastKey]
			}
			continue
		}

		key, value, ok := cutOption(line)
		if !ok {
			return nil, fmt.Errorf("line %d: expected key=value, got %q", lineNo, line)
		}
		current.Options[key] = value
		lastKey = key
		if key == "command" {
			current.Command = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if current != nil {
		programs = append(programs, *current)
	}

	for _, p := range programs {
		if p.Command == "" {
			return nil, fmt.Errorf("program %q has no command", p.Name)
		}
	}
	return programs, nil
}

func cutOption(line string) (string, string, bool) {
	idx := strings.IndexAny(line, "=:")
	if idx <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}
