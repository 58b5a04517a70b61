package locate

import (
	"errors"
	"strings"
	"testing"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

func parse(t *testing.T, text string) *ast.Program {
	t.Helper()
	program, err := parser.ParseFile(nil, "script.js", text, 0)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return program
}

func TestLoopFirstLookupByLine(t *testing.T) {
	text := "var total = 0;\nfor (const i of reloading([1, 2, 3])) {\n  total = total + i;\n}\n"
	program := parse(t, text)

	frag, err := Loop(program, text, "", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frag.Target != "i" {
		t.Errorf("expected target %q, got %q", "i", frag.Target)
	}
	if !strings.Contains(frag.Body, "total = total + i;") {
		t.Errorf("expected loop body, got %q", frag.Body)
	}
	if strings.Contains(frag.Body, "{") || strings.Contains(frag.Body, "for (") {
		t.Errorf("body should contain only the loop statements, got %q", frag.Body)
	}
	if frag.ID == "" {
		t.Error("expected an identity to be established")
	}
}

func TestLoopWrongLineIsMissing(t *testing.T) {
	text := "for (const i of reloading([1])) {\n}\n"
	program := parse(t, text)

	_, err := Loop(program, text, "", 40)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.Ambiguous {
		t.Error("zero matches must not report ambiguity")
	}
}

func TestLoopBodyLinesMatchFile(t *testing.T) {
	text := "// header\n// more\nfor (const i of reloading([1])) {\n  work(i);\n}\n"
	program := parse(t, text)

	frag, err := Loop(program, text, "", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lines := strings.Split(frag.Body, "\n")
	if len(lines) < 4 || !strings.Contains(lines[3], "work(i);") {
		t.Errorf("expected work(i) on line 4 of the padded body, got %q", frag.Body)
	}
}

func TestLoopIdentityStableAcrossBodyEdit(t *testing.T) {
	before := "for (const i of reloading(values)) {\n  total = total + i;\n}\n"
	after := "for (const i of reloading(values)) {\n  total = total + i * 10;\n  log(total);\n}\n"

	fragBefore, err := Loop(parse(t, before), before, "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fragAfter, err := Loop(parse(t, after), after, fragBefore.ID, 0)
	if err != nil {
		t.Fatalf("expected the edited loop to be re-found by identity: %v", err)
	}
	if fragBefore.ID != fragAfter.ID {
		t.Errorf("identity drifted: %q vs %q", fragBefore.ID, fragAfter.ID)
	}
	if !strings.Contains(fragAfter.Body, "i * 10") {
		t.Errorf("expected the edited body, got %q", fragAfter.Body)
	}
}

func TestLoopIdentityIgnoresHeaderWhitespace(t *testing.T) {
	compact := "for (const i of reloading(range(10))) {}\n"
	spaced := "for (const i of reloading( range( 10 ) )) {}\n"

	fragCompact, err := Loop(parse(t, compact), compact, "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Loop(parse(t, spaced), spaced, fragCompact.ID, 0); err != nil {
		t.Errorf("reformatted header should keep its identity: %v", err)
	}
}

func TestLoopAmbiguousByIdentity(t *testing.T) {
	text := "for (const i of reloading(xs)) {\n}\nfor (const i of reloading(xs)) {\n}\n"
	program := parse(t, text)

	frag, err := Loop(program, text, "", 1)
	if err != nil {
		t.Fatalf("line lookup should disambiguate: %v", err)
	}

	_, err = Loop(program, text, frag.ID, 0)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) || !notFound.Ambiguous {
		t.Fatalf("expected ambiguity error, got %v", err)
	}
}

func TestLoopEstablishedIdentityIgnoresLine(t *testing.T) {
	text := "for (const i of reloading(xs)) {\n}\nfor (const j of reloading(ys)) {\n}\n"
	program := parse(t, text)

	frag, err := Loop(program, text, "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The identity of the first loop must not match the second even though
	// a stale line number might.
	relocated, err := Loop(program, text, frag.ID, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if relocated.Target != "i" {
		t.Errorf("identity lookup bound the wrong loop: target %q", relocated.Target)
	}
}

func TestFormatTargetNestedDestructuring(t *testing.T) {
	text := "for (const [a, [b, c]] of reloading(pairs)) {\n}\n"
	program := parse(t, text)

	frag, err := Loop(program, text, "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frag.Target != "[a, [b, c]]" {
		t.Errorf("expected %q, got %q", "[a, [b, c]]", frag.Target)
	}
}

func TestFormatTargetBareAssignment(t *testing.T) {
	text := "for ([a, b] of reloading(pairs)) {\n}\n"
	program := parse(t, text)

	frag, err := Loop(program, text, "", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frag.Target != "[a, b]" {
		t.Errorf("expected %q, got %q", "[a, b]", frag.Target)
	}
}

func TestLoopInsideFunctionIsFound(t *testing.T) {
	text := "function run() {\n  for (const i of reloading(xs)) {\n    use(i);\n  }\n}\n"
	program := parse(t, text)

	if _, err := Loop(program, text, "", 2); err != nil {
		t.Errorf("expected loop nested in a function to be found: %v", err)
	}
}

func TestFunctionStripsOuterMarkersKeepsInner(t *testing.T) {
	text := "var f = trace(reloading(memo(function f(x) { return x + 1; })));\n"
	program := parse(t, text)

	inner, found := Function(program, text, "f")
	if !found {
		t.Fatal("expected the marked function to be found")
	}
	if strings.TrimSpace(inner) != "memo(function f(x) { return x + 1; })" {
		t.Errorf("unexpected isolation: %q", inner)
	}
}

func TestFunctionPlainMarker(t *testing.T) {
	text := "var greet = reloading(function greet() { return \"hi\"; });\n"
	program := parse(t, text)

	inner, found := Function(program, text, "greet")
	if !found {
		t.Fatal("expected the marked function to be found")
	}
	if strings.TrimSpace(inner) != "function greet() { return \"hi\"; }" {
		t.Errorf("unexpected isolation: %q", inner)
	}
}

func TestFunctionCurriedMarker(t *testing.T) {
	text := "var pow = reloading({ every: 2 })(function pow(x) { return x * x; });\n"
	program := parse(t, text)

	inner, found := Function(program, text, "pow")
	if !found {
		t.Fatal("expected the marked function to be found")
	}
	if strings.TrimSpace(inner) != "function pow(x) { return x * x; }" {
		t.Errorf("unexpected isolation: %q", inner)
	}
}

func TestFunctionNotFound(t *testing.T) {
	text := "var x = 1;\n"
	program := parse(t, text)

	if _, found := Function(program, text, "greet"); found {
		t.Error("expected no match in a file without the function")
	}
}

func TestFunctionWithoutMarkerNotFound(t *testing.T) {
	text := "var greet = function greet() { return \"hi\"; };\n"
	program := parse(t, text)

	if _, found := Function(program, text, "greet"); found {
		t.Error("a function without the marker must not match")
	}
}

func TestFunctionPaddingMatchesFile(t *testing.T) {
	text := "// one\n// two\nvar f = reloading(function f() { return 1; });\n"
	program := parse(t, text)

	inner, found := Function(program, text, "f")
	if !found {
		t.Fatal("expected the marked function to be found")
	}
	if !strings.HasPrefix(inner, "\n\n") {
		t.Errorf("expected two lines of padding, got %q", inner)
	}
}
