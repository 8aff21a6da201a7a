package shredder

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Action classifies a progress event
type Action string

const (
	Overwriting Action = "overwriting"
	Renaming    Action = "renaming"
)

// Progress is one structured event derived from the utility's verbose output.
//
// For Overwriting, Fraction is pass/total. For Renaming it is the length of the
// all-zero name divided by the length of the current file name. That ratio is a
// heuristic kept for compatibility; it is not a completion percentage and can
// go backwards.
type Progress struct {
	Action    Action
	Fraction  float64
	FileName  string
	Directory string
}

var (
	passPattern   = regexp.MustCompile(`^(.+): pass (\d+)/(\d+)`)
	renamePattern = regexp.MustCompile(`renamed to (.+)$`)
	zeroName      = regexp.MustCompile(`^0+$`)
)

// lineRule pairs a matcher with the handler for lines it matches.
// A matching rule consumes the line even if its handler emits nothing.
type lineRule struct {
	match  *regexp.Regexp
	handle func(p *progressParser, m []string) (Progress, bool)
}

// Tried in order, first match wins
var lineRules = []lineRule{
	{match: passPattern, handle: (*progressParser).onPass},
	{match: renamePattern, handle: (*progressParser).onRename},
}

// progressParser holds the state of one invocation's output stream.
// currentFile and currentDirectory carry over to lines that do not set them.
type progressParser struct {
	prefixes         []string
	workDir          string
	currentFile      string
	currentDirectory string
}

func newProgressParser(utilityPath, workDir string) *progressParser {
	prefixes := []string{utilityPath}
	if base := filepath.Base(utilityPath); base != utilityPath {
		prefixes = append(prefixes, base)
	}
	return &progressParser{prefixes: prefixes, workDir: workDir}
}

// Parse classifies one raw stderr line
func (p *progressParser) Parse(line string) (Progress, bool) {
	line = strings.TrimRight(line, "\r\n")

	rest, ok := p.stripPrefix(line)
	if !ok {
		return Progress{}, false
	}

	for _, rule := range lineRules {
		if m := rule.match.FindStringSubmatch(rest); m != nil {
			return rule.handle(p, m)
		}
	}
	return Progress{}, false
}

// stripPrefix drops the "<utility>: " lead-in. Lines from anything else are noise.
func (p *progressParser) stripPrefix(line string) (string, bool) {
	for _, prefix := range p.prefixes {
		if prefix == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, prefix+": "); ok {
			return rest, true
		}
	}
	return "", false
}

func (p *progressParser) onPass(m []string) (Progress, bool) {
	path := m[1]
	pass, _ := strconv.Atoi(m[2])
	total, _ := strconv.Atoi(m[3])

	dir := filepath.Dir(path)
	if dir == "." && p.workDir != "" {
		dir = p.workDir
	}
	p.currentDirectory = dir
	p.currentFile = filepath.Base(path)

	var fraction float64
	if total != 0 {
		fraction = float64(pass) / float64(total)
	}

	return Progress{
		Action:    Overwriting,
		Fraction:  fraction,
		FileName:  p.currentFile,
		Directory: p.currentDirectory,
	}, true
}

func (p *progressParser) onRename(m []string) (Progress, bool) {
	candidate := filepath.Base(m[1])
	// shred renames to shrinking all-zero names right before unlinking
	if !zeroName.MatchString(candidate) {
		return Progress{}, false
	}

	var fraction float64
	if p.currentFile != "" {
		fraction = float64(len(candidate)) / float64(len(p.currentFile))
	}

	return Progress{
		Action:    Renaming,
		Fraction:  fraction,
		FileName:  p.currentFile,
		Directory: p.currentDirectory,
	}, true
}
