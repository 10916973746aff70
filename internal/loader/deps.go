package loader

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// dependencyRefPattern matches "Depends-on:", "Depends:", "Requires:",
// "Closes", "Fixes", or "Resolves" followed by one or more reference
// tokens, the same case-insensitive keyword-then-reference shape GitHub
// itself recognizes in PR bodies. Longer alternatives are listed before
// their prefixes ("depends-on" before "depends") so the engine doesn't
// commit to the shorter alternative and leave a dangling "-on".
var dependencyRefPattern = regexp.MustCompile(`(?im)^(?:depends-on|depends|requires|closes|fixes|resolves):?\s*(.+)$`)

// refTokenPattern extracts "#N", "repo#N", "owner/repo#N", and "PR-N"
// reference tokens from a line of text.
var refTokenPattern = regexp.MustCompile(`(?i)[\w./-]*#\d+|PR-\d+`)

// frontMatterDeps is the subset of PR front matter this parser reads.
type frontMatterDeps struct {
	DependsOn []string `yaml:"depends_on"`
}

// ParseDependencyRefs extracts the dependency references a body declares
// itself dependent on, from "Depends-on:"/"Depends:"/"Requires:"/
// "Closes"/"Fixes"/"Resolves" lines and from a leading "---"-delimited
// YAML front-matter block's depends_on list, per spec.md §6's
// dependency-reference grammar. Each reference is normalized to "#N"
// (same-repo) or "<repo-or-owner/repo>#N" (cross-repo); results are
// deduplicated and returned sorted.
func ParseDependencyRefs(body string) []string {
	seen := make(map[string]struct{})

	if fm, rest := splitFrontMatter(body); fm != "" {
		var parsed frontMatterDeps
		if err := yaml.Unmarshal([]byte(fm), &parsed); err == nil {
			for _, ref := range parsed.DependsOn {
				if n, ok := parsePRNumber(ref); ok {
					seen[fmt.Sprintf("#%d", n)] = struct{}{}
				}
			}
		}
		body = rest
	}

	for _, lineMatch := range dependencyRefPattern.FindAllStringSubmatch(body, -1) {
		for _, tok := range refTokenPattern.FindAllString(lineMatch[1], -1) {
			seen[normalizeDependencyRef(tok)] = struct{}{}
		}
	}

	refs := make([]string, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// normalizeDependencyRef maps a raw "#N", "repo#N", "owner/repo#N", or
// "PR-N" token to its normalized "#N"/"<repo>#N" form.
func normalizeDependencyRef(tok string) string {
	if i := strings.IndexByte(tok, '#'); i >= 0 {
		prefix, num := tok[:i], tok[i+1:]
		if prefix == "" {
			return "#" + num
		}
		return prefix + "#" + num
	}
	// PR-N shorthand: everything after the last '-' is the number.
	i := strings.LastIndexByte(tok, '-')
	return "#" + tok[i+1:]
}

// splitFrontMatter returns the YAML body between leading "---" delimiters
// and the remaining text, or ("", body) if body has no front matter.
func splitFrontMatter(body string) (frontMatter, rest string) {
	trimmed := strings.TrimLeft(body, "\n")
	if !strings.HasPrefix(trimmed, "---\n") && trimmed != "---" {
		return "", body
	}
	remainder := strings.TrimPrefix(trimmed, "---\n")
	end := strings.Index(remainder, "\n---")
	if end < 0 {
		return "", body
	}
	return remainder[:end], remainder[end+len("\n---"):]
}

func parsePRNumber(ref string) (int, bool) {
	ref = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ref), "#"))
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0, false
	}
	return n, true
}
