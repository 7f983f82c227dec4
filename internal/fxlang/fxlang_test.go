package fxlang

import (
	"fmt"
	"testing"

	"battlecore/internal/ident"
)

// recordingHost is a minimal Host that logs calls and answers member
// lookups from a flat map, enough to drive the evaluator without a real
// battle.
type recordingHost struct {
	members map[string]Value
	calls   []string
}

func (h *recordingHost) GetMember(recv Value, name string) (Value, error) {
	v, ok := h.members[name]
	if !ok {
		return Value{}, fmt.Errorf("no such member %q", name)
	}
	return v, nil
}

func (h *recordingHost) SetMember(recv Value, name string, v Value) error {
	if h.members == nil {
		h.members = map[string]Value{}
	}
	h.members[name] = v
	return nil
}

func (h *recordingHost) CallFunction(ctx *Context, name string, args []Value) (Value, error) {
	h.calls = append(h.calls, name)
	return Undefined(), nil
}

func run(t *testing.T, host Host, source string, flags ContextFlag, impl map[string]Value) Value {
	t.Helper()
	prog, err := Parse(source)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", source, err)
	}
	ev := NewEvaluator(host)
	ctx := NewContext(flags, impl)
	v, err := ev.Run(ctx, prog)
	if err != nil {
		t.Fatalf("Run(%q) error: %v", source, err)
	}
	return v
}

func TestArithmeticExpression(t *testing.T) {
	v := run(t, &recordingHost{}, "return 1 + 2 * 3", 0, nil)
	f, err := v.AsFraction()
	if err != nil {
		t.Fatal(err)
	}
	if f.Cmp(ident.Whole(7)) != 0 {
		t.Errorf("1 + 2 * 3 = %v, want 7", f)
	}
}

func TestFractionLiteral(t *testing.T) {
	v := run(t, &recordingHost{}, "return 1/3", 0, nil)
	f, _ := v.AsFraction()
	if f.Cmp(ident.F(1, 3)) != 0 {
		t.Errorf("1/3 literal = %v, want 1/3", f)
	}
}

func TestIfElseIfElseChain(t *testing.T) {
	host := &recordingHost{}
	source := "if $x == 1:\n\treturn 'one'\nelse if $x == 2:\n\treturn 'two'\nelse:\n\treturn 'other'"
	for x, want := range map[int64]string{1: "one", 2: "two", 3: "other"} {
		prog, err := Parse(source)
		if err != nil {
			t.Fatal(err)
		}
		ev := NewEvaluator(host)
		ctx := NewContext(0, nil)
		ctx.Set("x", SignedFraction(ident.Whole(x)))
		got, err := ev.Run(ctx, prog)
		if err != nil {
			t.Fatalf("Run error for x=%d: %v", x, err)
		}
		s, err := got.AsString()
		if err != nil {
			t.Fatal(err)
		}
		if s != want {
			t.Errorf("x=%d: got %q, want %q", x, s, want)
		}
	}
}

func TestForeachIteratesAndRestoresScope(t *testing.T) {
	host := &recordingHost{}
	source := "$total = 0\nforeach $item in $list:\n\t$total = $total + $item\nreturn $total"
	prog, err := Parse(source)
	if err != nil {
		t.Fatal(err)
	}
	ev := NewEvaluator(host)
	ctx := NewContext(0, nil)
	ctx.Set("list", List([]Value{
		SignedFraction(ident.Whole(1)),
		SignedFraction(ident.Whole(2)),
		SignedFraction(ident.Whole(3)),
	}))
	v, err := ev.Run(ctx, prog)
	if err != nil {
		t.Fatal(err)
	}
	f, _ := v.AsFraction()
	if f.Cmp(ident.Whole(6)) != 0 {
		t.Errorf("sum = %v, want 6", f)
	}
}

func TestFuncCallStmtInvokesHost(t *testing.T) {
	host := &recordingHost{}
	_ = run(t, host, "damage: $target 10", FlagTarget, map[string]Value{
		"target": Mon(ident.Handle(1)),
	})
	if len(host.calls) != 1 || host.calls[0] != "damage" {
		t.Errorf("calls = %v, want [damage]", host.calls)
	}
}

func TestMemberAccessGoesThroughHost(t *testing.T) {
	host := &recordingHost{members: map[string]Value{"hp": SignedFraction(ident.Whole(42))}}
	v := run(t, host, "return $mon.hp", FlagMon, map[string]Value{"mon": Mon(ident.Handle(1))})
	f, _ := v.AsFraction()
	if f.Cmp(ident.Whole(42)) != 0 {
		t.Errorf("$mon.hp = %v, want 42", f)
	}
}

func TestContextMissingImplicitVariableErrors(t *testing.T) {
	ctx := NewContext(FlagMon, map[string]Value{"mon": Mon(1)})
	if _, err := ctx.Get("target"); err == nil {
		t.Error("Get(\"target\") should fail: flag not requested for this dispatch")
	}
}

func TestContextUndeclaredVariableErrors(t *testing.T) {
	ctx := NewContext(0, nil)
	if _, err := ctx.Get("nope"); err == nil {
		t.Error("Get(\"nope\") should fail: no such local or implicit variable")
	}
}

func TestAndOrShortCircuit(t *testing.T) {
	host := &recordingHost{}
	// The right side calls a function; if short-circuit works it never runs.
	v := run(t, host, "if false and f():\n\treturn true\nreturn false", 0, nil)
	b, _ := v.AsBool()
	if b {
		t.Error("false and X should be false")
	}
	v = run(t, host, "if true or f():\n\treturn true\nreturn false", 0, nil)
	b, _ = v.AsBool()
	if !b {
		t.Error("true or X should be true")
	}
	if len(host.calls) != 0 {
		t.Errorf("calls = %v, want none (right operand must not run)", host.calls)
	}
}

func TestHasAndHasAny(t *testing.T) {
	list := List([]Value{String("a"), String("b")})
	ok, err := Has(list, String("a"))
	if err != nil || !ok {
		t.Errorf("Has(list, 'a') = %v, %v; want true, nil", ok, err)
	}
	ok, err = Has(list, String("z"))
	if err != nil || ok {
		t.Errorf("Has(list, 'z') = %v, %v; want false, nil", ok, err)
	}
	other := List([]Value{String("z"), String("b")})
	ok, err = HasAny(list, other)
	if err != nil || !ok {
		t.Errorf("HasAny overlap on 'b' = %v, %v; want true, nil", ok, err)
	}
}

func TestDivisionByZeroErrors(t *testing.T) {
	_, err := Arith('/', SignedFraction(ident.Whole(1)), SignedFraction(ident.Whole(0)))
	if err == nil {
		t.Error("division by zero should error")
	}
}

func TestCompareNumericWidening(t *testing.T) {
	ok, err := Compare("eq", U16(5), SignedFraction(ident.Whole(5)))
	if err != nil || !ok {
		t.Errorf("Compare(eq, u16(5), fraction(5)) = %v, %v; want true, nil", ok, err)
	}
}

func TestParseRejectsBadIndent(t *testing.T) {
	_, err := Parse("foo:\n\t\tbar:")
	if err == nil {
		t.Error("unexpected indentation should be rejected")
	}
}

func TestParseEmptyProgram(t *testing.T) {
	prog, err := Parse("")
	if err != nil {
		t.Fatal(err)
	}
	if len(prog.Statements) != 0 {
		t.Errorf("empty source produced %d statements, want 0", len(prog.Statements))
	}
}

func TestParseCommentLineIsNoop(t *testing.T) {
	host := &recordingHost{}
	v := run(t, host, "# a comment\nreturn 1", 0, nil)
	f, _ := v.AsFraction()
	if f.Cmp(ident.Whole(1)) != 0 {
		t.Errorf("got %v, want 1", f)
	}
}
