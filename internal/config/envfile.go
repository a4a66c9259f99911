package config

import (
	"bufio"
	"os"
	"strings"
)

// ParseEnvFile parses the KEY=VALUE grammar from spec.md §6: '#' starts a
// comment, blank lines are ignored, and surrounding quotes are stripped
// only when the first and last characters match (both '"' or both '\'');
// mismatched quoting is preserved verbatim. Total over any line content;
// the error paths are opening the file and reading it (a scanner error).
func ParseEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Wrap(ErrIOFailure, "failed to open env file", err)
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		parseEnvLine(scanner.Text(), out)
	}
	if err := scanner.Err(); err != nil {
		return nil, Wrap(ErrIOFailure, "failed to read env file", err)
	}
	return out, nil
}

func ParseEnvFileContent(content string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		parseEnvLine(line, out)
	}
	return out
}

func parseEnvLine(line string, out map[string]string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return
	}
	key := strings.TrimSpace(line[:eq])
	value := strings.TrimSpace(line[eq+1:])
	if key == "" {
		return
	}
	out[key] = stripMatchingQuotes(value)
}

func stripMatchingQuotes(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if (first == '"' || first == '\'') && first == last {
		return s[1 : len(s)-1]
	}
	return s
}

// MergeEnv merges an env-file map behind explicit env (explicit wins on
// key collision), per spec.md §3's "envFile ... merged behind explicit env".
func MergeEnv(explicit, fromFile map[string]string) map[string]string {
	merged := make(map[string]string, len(explicit)+len(fromFile))
	for k, v := range fromFile {
		merged[k] = v
	}
	for k, v := range explicit {
		merged[k] = v
	}
	return merged
}
