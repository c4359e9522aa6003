package seccomp

import "testing"

func TestBuildProgramProducesWellFormedFilter(t *testing.T) {
	prog, err := buildProgram()
	if err != nil {
		t.Fatalf("buildProgram: %v", err)
	}
	if prog.Len == 0 {
		t.Fatal("expected a non-empty BPF program")
	}
	if prog.Filter == nil {
		t.Fatal("expected Filter to point at the instruction slice")
	}
}

func TestAllowAndDenyListsAreDisjoint(t *testing.T) {
	seen := make(map[uintptr]bool, len(allowList))
	for _, nr := range allowList {
		seen[nr] = true
	}
	for _, nr := range denyList {
		if seen[nr] {
			t.Fatalf("syscall %d appears in both allowList and denyList", nr)
		}
	}
}

func TestBuildProgramStaysUnderInstructionLimit(t *testing.T) {
	prog, err := buildProgram()
	if err != nil {
		t.Fatalf("buildProgram: %v", err)
	}
	if prog.Len > 4096 {
		t.Fatalf("filter program unexpectedly large: %d instructions", prog.Len)
	}
}
