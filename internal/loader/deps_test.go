package loader

import (
	"reflect"
	"testing"
)

func TestParseDependencyRefs_KeywordLines(t *testing.T) {
	body := "Implements the new widget.\n\nDepends-on: #12\nCloses #34\nFixes #56, #78\n"
	got := ParseDependencyRefs(body)
	want := []string{"#12", "#34", "#56", "#78"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseDependencyRefs() = %v, want %v", got, want)
	}
}

func TestParseDependencyRefs_Dedupes(t *testing.T) {
	body := "Depends-on: #1\nResolves #1\n"
	got := ParseDependencyRefs(body)
	want := []string{"#1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseDependencyRefs() = %v, want %v", got, want)
	}
}

func TestParseDependencyRefs_FrontMatter(t *testing.T) {
	body := "---\ndepends_on:\n  - \"#3\"\n  - \"5\"\n---\n\nBody text with no refs.\n"
	got := ParseDependencyRefs(body)
	want := []string{"#3", "#5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseDependencyRefs() = %v, want %v", got, want)
	}
}

func TestParseDependencyRefs_FrontMatterAndBodyCombine(t *testing.T) {
	body := "---\ndepends_on:\n  - \"#1\"\n---\nCloses #2\n"
	got := ParseDependencyRefs(body)
	want := []string{"#1", "#2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseDependencyRefs() = %v, want %v", got, want)
	}
}

func TestParseDependencyRefs_NoRefsReturnsEmpty(t *testing.T) {
	got := ParseDependencyRefs("Just a regular PR description.\n")
	if len(got) != 0 {
		t.Errorf("ParseDependencyRefs() = %v, want empty", got)
	}
}

// TestParseDependencyRefs_Scenario5 is spec.md §8 Scenario 5 verbatim.
func TestParseDependencyRefs_Scenario5(t *testing.T) {
	body := "Depends-on: #123, owner/repo#45\nCloses #7\n"
	got := ParseDependencyRefs(body)
	want := []string{"#123", "#7", "owner/repo#45"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseDependencyRefs() = %v, want %v", got, want)
	}
}

func TestParseDependencyRefs_DependsAndRequiresKeywords(t *testing.T) {
	body := "Depends: #1\nRequires: #2\n"
	got := ParseDependencyRefs(body)
	want := []string{"#1", "#2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseDependencyRefs() = %v, want %v", got, want)
	}
}

func TestParseDependencyRefs_RepoQualifiedAndPRShorthand(t *testing.T) {
	body := "Depends-on: repo#9, PR-4\n"
	got := ParseDependencyRefs(body)
	want := []string{"#4", "repo#9"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseDependencyRefs() = %v, want %v", got, want)
	}
}

func TestSplitFrontMatter_NoDelimiterReturnsWholeBodyAsRest(t *testing.T) {
	fm, rest := splitFrontMatter("no front matter here")
	if fm != "" || rest != "no front matter here" {
		t.Errorf("splitFrontMatter() = (%q, %q)", fm, rest)
	}
}

func TestParsePRNumber(t *testing.T) {
	cases := map[string]int{
		"#42": 42,
		"42":  42,
		" 7 ": 7,
	}
	for in, want := range cases {
		n, ok := parsePRNumber(in)
		if !ok || n != want {
			t.Errorf("parsePRNumber(%q) = (%d, %v), want (%d, true)", in, n, ok, want)
		}
	}
	if _, ok := parsePRNumber("not-a-number"); ok {
		t.Error("parsePRNumber(\"not-a-number\") expected ok=false")
	}
}

func TestNormalizeDependencyRef(t *testing.T) {
	cases := map[string]string{
		"#45":           "#45",
		"repo#9":        "repo#9",
		"owner/repo#45": "owner/repo#45",
		"PR-4":          "#4",
		"pr-7":          "#7",
	}
	for in, want := range cases {
		if got := normalizeDependencyRef(in); got != want {
			t.Errorf("normalizeDependencyRef(%q) = %q, want %q", in, got, want)
		}
	}
}
