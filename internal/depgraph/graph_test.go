package depgraph

import (
	"errors"
	"reflect"
	"testing"
)

type testNode struct {
	name string
	deps []string
}

func (n testNode) NodeName() string  { return n.name }
func (n testNode) NodeDeps() []string { return n.deps }

func nodes(items ...testNode) []Node {
	out := make([]Node, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

func TestLevelize_LinearChain(t *testing.T) {
	levels, err := Levelize(nodes(
		testNode{name: "a"},
		testNode{name: "b", deps: []string{"a"}},
		testNode{name: "c", deps: []string{"b"}},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][]string{{"a"}, {"b"}, {"c"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("Levelize() = %v, want %v", levels, want)
	}
}

func TestLevelize_Diamond(t *testing.T) {
	levels, err := Levelize(nodes(
		testNode{name: "a"},
		testNode{name: "b", deps: []string{"a"}},
		testNode{name: "c", deps: []string{"a"}},
		testNode{name: "d", deps: []string{"b", "c"}},
	))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := [][]string{{"a"}, {"b", "c"}, {"d"}}
	if !reflect.DeepEqual(levels, want) {
		t.Errorf("Levelize() = %v, want %v", levels, want)
	}
}

func TestLevelize_Cycle(t *testing.T) {
	_, err := Levelize(nodes(
		testNode{name: "x", deps: []string{"y"}},
		testNode{name: "y", deps: []string{"x"}},
	))
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(cycleErr.Residual) != 2 || cycleErr.Residual[0] != "x" || cycleErr.Residual[1] != "y" {
		t.Errorf("CycleError.Residual = %v, want [x y]", cycleErr.Residual)
	}
}

func TestLevelize_UnknownDependency(t *testing.T) {
	_, err := Levelize(nodes(
		testNode{name: "p", deps: []string{"q"}},
	))
	var unknownErr *UnknownDependencyError
	if !errors.As(err, &unknownErr) {
		t.Fatalf("expected UnknownDependencyError, got %v", err)
	}
	if unknownErr.Item != "p" || unknownErr.Missing != "q" {
		t.Errorf("UnknownDependencyError = %+v, want Item=p Missing=q", unknownErr)
	}
}

func TestLevelize_SelfDependency(t *testing.T) {
	_, err := Levelize(nodes(
		testNode{name: "a", deps: []string{"a"}},
	))
	var selfErr *SelfDependencyError
	if !errors.As(err, &selfErr) {
		t.Fatalf("expected SelfDependencyError, got %v", err)
	}
}

func TestLevelize_Deterministic(t *testing.T) {
	input := nodes(
		testNode{name: "c", deps: []string{"a", "b"}},
		testNode{name: "a"},
		testNode{name: "b", deps: []string{"a"}},
	)
	first, err := Levelize(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Levelize(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Levelize() not deterministic: %v != %v", first, second)
	}
}

func TestLevelize_EmptyInput(t *testing.T) {
	levels, err := Levelize(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(levels) != 0 {
		t.Errorf("Levelize(nil) = %v, want empty", levels)
	}
}
