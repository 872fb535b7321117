package manifest

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/pypackages/pkg/errors"
	"github.com/matzehuels/pypackages/pkg/requirement"
)

// Requirements parses pip-style requirements files. Each non-blank line is
// one PEP 508 requirement; "#" starts a comment and a trailing backslash
// continues the line. Of pip's options only -r/--requirement (include
// another file) and -i/--index-url are honored, the rest are skipped along
// with bare URLs and VCS references.
type Requirements struct{}

func (r *Requirements) Type() string { return "requirements.txt" }

func (r *Requirements) Supports(name string) bool {
	return name == "requirements.txt" ||
		(strings.HasPrefix(name, "requirements") && strings.HasSuffix(name, ".txt"))
}

func (r *Requirements) Parse(path string) (*Manifest, error) {
	m := &Manifest{Path: path, Type: r.Type()}
	if err := parseRequirements(path, m, map[string]bool{}); err != nil {
		return nil, err
	}
	return m, nil
}

func parseRequirements(path string, m *Manifest, visiting map[string]bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if visiting[abs] {
		return errors.New(errors.ErrCodeInvalidManifest, "%s: include cycle", path)
	}
	visiting[abs] = true
	defer delete(visiting, abs)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var (
		scanner = bufio.NewScanner(f)
		lineNo  int
		start   int
		buf     strings.Builder
	)
	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		if buf.Len() == 0 {
			start = lineNo
		}
		if strings.HasSuffix(line, `\`) {
			buf.WriteString(strings.TrimSuffix(line, `\`))
			buf.WriteByte(' ')
			continue
		}
		buf.WriteString(line)
		logical := strings.TrimSpace(buf.String())
		buf.Reset()
		if err := parseLine(path, start, logical, m, visiting); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if rest := strings.TrimSpace(buf.String()); rest != "" {
		return parseLine(path, start, rest, m, visiting)
	}
	return nil
}

func parseLine(path string, lineNo int, line string, m *Manifest, visiting map[string]bool) error {
	switch {
	case line == "":
		return nil
	case line[0] == '-':
		return parseOption(path, lineNo, line, m, visiting)
	case strings.Contains(line, "://") && !strings.Contains(line, "@"),
		strings.HasPrefix(line, "git+"),
		strings.HasPrefix(line, "."),
		strings.HasPrefix(line, "/"):
		return nil
	}
	req, err := requirement.Parse(line)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidManifest, err, "%s:%d", path, lineNo)
	}
	m.Requirements = append(m.Requirements, req)
	return nil
}

func parseOption(path string, lineNo int, line string, m *Manifest, visiting map[string]bool) error {
	flag, value := splitOption(line)
	switch flag {
	case "-r", "--requirement":
		if value == "" {
			return errors.New(errors.ErrCodeInvalidManifest, "%s:%d: %s needs a file", path, lineNo, flag)
		}
		if !filepath.IsAbs(value) {
			value = filepath.Join(filepath.Dir(path), value)
		}
		if err := parseRequirements(value, m, visiting); err != nil {
			if os.IsNotExist(err) {
				return errors.Wrap(errors.ErrCodeInvalidManifest, err, "%s:%d", path, lineNo)
			}
			return err
		}
	case "-i", "--index-url":
		if err := errors.ValidateURL(value); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidManifest, err, "%s:%d", path, lineNo)
		}
		m.IndexURL = value
	}
	return nil
}

// splitOption splits "-r file", "-rfile" and "--requirement=file".
func splitOption(line string) (flag, value string) {
	if strings.HasPrefix(line, "--") {
		if f, v, ok := strings.Cut(line, "="); ok {
			return f, strings.TrimSpace(v)
		}
		f, v, _ := strings.Cut(line, " ")
		return f, strings.TrimSpace(v)
	}
	if len(line) > 2 && line[2] != ' ' && line[2] != '\t' {
		return line[:2], strings.TrimSpace(line[2:])
	}
	f, v, _ := strings.Cut(line, " ")
	return f, strings.TrimSpace(v)
}

// stripComment drops a "#" comment that starts the line or follows
// whitespace; a "#" inside a URL fragment is kept.
func stripComment(line string) string {
	for i := 0; i < len(line); i++ {
		if line[i] == '#' && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t') {
			return strings.TrimRight(line[:i], " \t")
		}
	}
	return strings.TrimRight(line, " \t")
}
