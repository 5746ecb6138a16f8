package fields

import (
	"reflect"
	"testing"
	"time"
)

// TestParse_Shapes verifies that the three configuration shapes resolve to
// the expected tagged Field values.
func TestParse_Shapes(t *testing.T) {
	t.Parallel()

	raw := []any{
		"email",
		map[string]any{"field": "created", "label": "Signup date"},
		map[string]any{"field": "confirmed", "label": "Confirmed", "decorator": "yesno"},
	}

	spec, err := Parse(raw, "EmailSignup")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	want := Spec{
		{Kind: PlainField, Model: "EmailSignup", Name: "email", Label: "email"},
		{Kind: LabeledField, Model: "EmailSignup", Name: "created", Label: "Signup date"},
		{Kind: DecoratedField, Model: "EmailSignup", Name: "confirmed", Label: "Confirmed", Decorator: "yesno"},
	}
	if !reflect.DeepEqual(spec, want) {
		t.Fatalf("spec = %+v, want %+v", spec, want)
	}
}

// TestParse_QualifiedNames verifies that "Model.field" entries keep their
// qualifier while bare names take the primary entity.
func TestParse_QualifiedNames(t *testing.T) {
	t.Parallel()

	spec, err := Parse([]any{"User.email", "name"}, "Account")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if got, want := spec[0].Model, "User"; got != want {
		t.Fatalf("spec[0].Model = %q, want %q", got, want)
	}
	if got, want := spec[0].Qualified(), "User.email"; got != want {
		t.Fatalf("spec[0].Qualified() = %q, want %q", got, want)
	}
	if got, want := spec[1].Qualified(), "Account.name"; got != want {
		t.Fatalf("spec[1].Qualified() = %q, want %q", got, want)
	}
}

// TestParse_UnknownDecorator verifies that decorator names are resolved at
// parse time, not later in the render path.
func TestParse_UnknownDecorator(t *testing.T) {
	t.Parallel()

	_, err := Parse([]any{
		map[string]any{"field": "x", "decorator": "sparkle"},
	}, "Thing")
	if err == nil {
		t.Fatalf("expected error for unknown decorator")
	}
}

// TestParse_BadEntry verifies that non-string, non-object entries are
// rejected with a positional error.
func TestParse_BadEntry(t *testing.T) {
	t.Parallel()

	if _, err := Parse([]any{42}, "Thing"); err == nil {
		t.Fatalf("expected error for numeric entry")
	}
	if _, err := Parse([]any{map[string]any{"label": "no field key"}}, "Thing"); err == nil {
		t.Fatalf("expected error for object without field key")
	}
	if _, err := Parse("not-an-array", "Thing"); err == nil {
		t.Fatalf("expected error for non-array spec")
	}
}

// TestSpec_ForeignModels verifies first-occurrence ordering and
// deduplication of foreign models.
func TestSpec_ForeignModels(t *testing.T) {
	t.Parallel()

	spec, err := Parse([]any{"User.email", "name", "User.id", "Group.title"}, "Account")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	got := spec.ForeignModels("Account")
	want := []string{"User", "Group"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ForeignModels = %v, want %v", got, want)
	}
}

// TestSpec_LabelsAndQualified verifies ordering of derived label and field
// name slices.
func TestSpec_LabelsAndQualified(t *testing.T) {
	t.Parallel()

	spec, err := Parse([]any{
		"email",
		map[string]any{"field": "created", "label": "Signup date"},
	}, "EmailSignup")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if got, want := spec.Labels(), []string{"email", "Signup date"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Labels = %v, want %v", got, want)
	}
	wantQ := []string{"EmailSignup.email", "EmailSignup.created"}
	if got := spec.Qualified(); !reflect.DeepEqual(got, wantQ) {
		t.Fatalf("Qualified = %v, want %v", got, wantQ)
	}
}

// TestSpec_Project verifies value lookup (qualified first, then bare),
// decorator application, and nil for missing keys.
func TestSpec_Project(t *testing.T) {
	t.Parallel()

	spec, err := Parse([]any{
		"email",
		map[string]any{"field": "confirmed", "decorator": "yesno"},
		"missing",
	}, "EmailSignup")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	rec := map[string]any{
		"EmailSignup.email": "a@b.c",
		"confirmed":         true,
	}
	got := spec.Project(rec)
	want := []any{"a@b.c", "yes", nil}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Project = %v, want %v", got, want)
	}
}

// TestFromRecord verifies the all-columns fallback projection: sorted
// column order, labels equal to names, values round-trip via Project.
func TestFromRecord(t *testing.T) {
	t.Parallel()

	rec := map[string]any{"email": "a@b.c", "created": "2024-01-01", "id": 7}
	spec := FromRecord(rec)

	if got, want := spec.Labels(), []string{"created", "email", "id"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Labels = %v, want %v", got, want)
	}
	if got, want := spec.Project(rec), []any{"2024-01-01", "a@b.c", 7}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Project = %v, want %v", got, want)
	}
}

// TestDecorator_Builtins spot-checks the built-in decorators.
func TestDecorator_Builtins(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   any
		want any
	}{
		{"yesno", true, "yes"},
		{"yesno", false, "no"},
		{"yesno", nil, "no"},
		{"yesno", "1", "yes"},
		{"yesno", "", "no"},
		{"yesno", 0, "no"},
		{"yesno", 3.5, "yes"},
		{"date", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "2024-01-02"},
		{"date", "2024-01-02 03:04:05", "2024-01-02"},
		{"date", "not a date", "not a date"},
		{"upper", "abc", "ABC"},
		{"lower", "ABC", "abc"},
		{"upper", 7, 7},
	}
	for _, tc := range cases {
		fn, err := Decorator(tc.name)
		if err != nil {
			t.Fatalf("Decorator(%q) error: %v", tc.name, err)
		}
		if got := fn(tc.in); got != tc.want {
			t.Fatalf("%s(%v) = %v, want %v", tc.name, tc.in, got, tc.want)
		}
	}
}

// TestRegisterDecorator_Override verifies that re-registering a name
// overrides the previous function.
func TestRegisterDecorator_Override(t *testing.T) {
	t.Parallel()

	RegisterDecorator("stars", func(any) any { return "*" })
	RegisterDecorator("stars", func(any) any { return "**" })

	fn, err := Decorator("stars")
	if err != nil {
		t.Fatalf("Decorator error: %v", err)
	}
	if got, want := fn(nil), "**"; got != want {
		t.Fatalf("stars decorator = %v, want %v", got, want)
	}
}
