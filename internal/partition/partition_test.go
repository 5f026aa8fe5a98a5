package partition

import (
	"reflect"
	"testing"
)

func testSpec() Spec {
	return Spec{Partitions: []Partition{
		{Name: "part0", Start: []string{"input"}, End: []string{"feat"}, SaveFile: "part0.mmdgo"},
		{Name: "part1", Start: []string{"feat"}, End: []string{"out"}, SaveFile: "part1.mmdgo"},
	}}
}

func TestRegisterResolveRoundTrip(t *testing.T) {
	if err := Register("cb-a", "staged", testSpec()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, err := Resolve("cb-a", "staged")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.Type != "staged" || len(got.Partitions) != 2 {
		t.Fatalf("unexpected spec: %+v", got)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	if err := Register("cb-det", "two_stage_like", testSpec()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	a, err := Resolve("cb-det", "two_stage_like")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	b, err := Resolve("cb-det", "two_stage_like")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected structurally identical specs, got %+v vs %+v", a, b)
	}
}

func TestResolveReturnsCopies(t *testing.T) {
	if err := Register("cb-copy", "scheme", testSpec()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	a, _ := Resolve("cb-copy", "scheme")
	a.Partitions[0].Start[0] = "mutated"
	a.Partitions[0].Name = "mutated"
	b, _ := Resolve("cb-copy", "scheme")
	if b.Partitions[0].Start[0] != "input" || b.Partitions[0].Name != "part0" {
		t.Fatalf("mutating a resolved spec leaked into the table: %+v", b.Partitions[0])
	}
}

func TestResolveUnknown(t *testing.T) {
	_, err := Resolve("cb-a", "no_such_scheme")
	if err == nil {
		t.Fatalf("expected error for unknown partition type")
	}
	if !IsUnknownPartitionType(err) {
		t.Fatalf("expected IsUnknownPartitionType, got %v", err)
	}
	_, err = Resolve("no_such_codebase", "staged")
	if !IsUnknownPartitionType(err) {
		t.Fatalf("expected IsUnknownPartitionType for unknown codebase, got %v", err)
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	if err := Register("cb-dup", "s", testSpec()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	err := Register("cb-dup", "s", testSpec())
	if err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if !IsDuplicateScheme(err) {
		t.Fatalf("expected IsDuplicateScheme, got %v", err)
	}
}

func TestTypesSorted(t *testing.T) {
	MustRegister("cb-types", "zeta", testSpec())
	MustRegister("cb-types", "alpha", testSpec())
	got := Types("cb-types")
	if len(got) != 2 || got[0] != "alpha" || got[1] != "zeta" {
		t.Fatalf("expected sorted types [alpha zeta] got %v", got)
	}
}
