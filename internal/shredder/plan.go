package shredder

import (
	"path/filepath"
	"strings"
)

// NameMapping links a caller's path to the token the utility receives and echoes
type NameMapping struct {
	Original  string
	InProcess string
}

// Plan is a fully resolved utility invocation
type Plan struct {
	Executable       string
	Arguments        []string
	WorkingDirectory string // Empty unless every file shares one parent directory
	DisplayNames     []NameMapping
}

// NewPlan builds the invocation for files.
// When all files live in one directory the process runs inside that directory
// and receives basenames, which keeps the argument list short and makes the
// utility's output relative to a known directory.
func NewPlan(executable string, flags []string, files []string) (*Plan, error) {
	if len(files) == 0 {
		return nil, &InputError{Reason: ErrNoFiles}
	}

	dirs := make(map[string]struct{})
	for _, f := range files {
		if strings.TrimSpace(f) == "" {
			return nil, &InputError{Reason: ErrEmptyPath}
		}
		dirs[filepath.Dir(f)] = struct{}{}
	}

	plan := &Plan{
		Executable:   executable,
		DisplayNames: make([]NameMapping, 0, len(files)),
	}

	collapse := len(dirs) == 1
	if collapse {
		for dir := range dirs {
			plan.WorkingDirectory = dir
		}
	}

	// Flags are fixed first; only file tokens are de-duplicated
	args := make([]string, 0, len(flags)+len(files))
	args = append(args, flags...)

	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		token := f
		if collapse {
			token = filepath.Base(f)
		}
		token = argumentSafe(token)

		plan.DisplayNames = append(plan.DisplayNames, NameMapping{Original: f, InProcess: token})

		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		args = append(args, token)
	}
	plan.Arguments = args

	return plan, nil
}

// FileTokens returns the de-duplicated file arguments in the order passed to the utility
func (p *Plan) FileTokens() []string {
	seen := make(map[string]struct{}, len(p.DisplayNames))
	tokens := make([]string, 0, len(p.DisplayNames))
	for _, m := range p.DisplayNames {
		if _, dup := seen[m.InProcess]; dup {
			continue
		}
		seen[m.InProcess] = struct{}{}
		tokens = append(tokens, m.InProcess)
	}
	return tokens
}

// CommandLine renders the invocation for logs only; it is never executed by a shell
func (p *Plan) CommandLine() string {
	return strings.Join(append([]string{p.Executable}, p.Arguments...), " ")
}

// argumentSafe keeps file names that start with a dash from being read as flags
func argumentSafe(token string) string {
	if strings.HasPrefix(token, "-") {
		return "." + string(filepath.Separator) + token
	}
	return token
}
