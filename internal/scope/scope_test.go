package scope

import (
	"reflect"
	"testing"

	"icomnet.org/internal/identity"
)

func TestHas(t *testing.T) {
	cases := []struct {
		granted  []string
		required string
		want     bool
	}{
		{[]string{"icom:chat:write"}, "icom:chat:write", true},
		{[]string{"icom:chat:read"}, "icom:chat:write", false},
		{[]string{"icom:*"}, "icom:chat:write", true},
		{[]string{"icom:*"}, "icom:chat", true},
		{[]string{"icom:chat:*"}, "icom:chat:write", true},
		{[]string{"icom:chat:*"}, "icom:call:start", false},
		{[]string{"*"}, "anything:anything", true},
		{[]string{}, "icom:chat:write", false},
		{[]string{"icom:*"}, "icontact:read", false},
	}
	for _, tc := range cases {
		if got := Has(tc.granted, tc.required); got != tc.want {
			t.Fatalf("Has(%v, %q)=%v, want %v", tc.granted, tc.required, got, tc.want)
		}
	}
}

func TestParse(t *testing.T) {
	if s := Parse("*"); !s.Global {
		t.Fatalf("expected global scope, got %+v", s)
	}
	s := Parse("icom:chat:write")
	if s.Resource != "icom:chat" || s.Action != "write" || s.Wildcard || s.Global {
		t.Fatalf("unexpected parse: %+v", s)
	}
	s = Parse("icom:*")
	if s.Resource != "icom" || !s.Wildcard {
		t.Fatalf("unexpected wildcard parse: %+v", s)
	}
	if got := s.String(); got != "icom:*" {
		t.Fatalf("String()=%q", got)
	}
}

func TestCombinators(t *testing.T) {
	granted := []string{"icom:chat:read", "inbox:*"}
	if !HasAll(granted, "icom:chat:read", "inbox:write") {
		t.Fatalf("HasAll should pass")
	}
	if HasAll(granted, "icom:chat:read", "icom:call:start") {
		t.Fatalf("HasAll should fail on missing call scope")
	}
	if !HasAny(granted, "icom:call:start", "inbox:read") {
		t.Fatalf("HasAny should pass via inbox wildcard")
	}
	missing := Missing(granted, "icom:chat:read", "icom:call:start", "icorrespondance:send")
	want := []string{"icom:call:start", "icorrespondance:send"}
	if !reflect.DeepEqual(missing, want) {
		t.Fatalf("Missing=%v, want %v", missing, want)
	}
}

func TestCanAccessModule(t *testing.T) {
	if !CanAccessModule([]string{"icom:read"}, identity.ModuleICom) {
		t.Fatalf("icom:read should open icom")
	}
	if !CanAccessModule([]string{"icom:*"}, identity.ModuleICom) {
		t.Fatalf("icom:* should open icom")
	}
	if CanAccessModule([]string{"icom:chat:write"}, identity.ModuleICom) {
		t.Fatalf("chat write alone should not open icom")
	}

	// iasted rides on its chat grant, not a read grant.
	if !CanAccessModule([]string{"iasted:chat"}, identity.ModuleIAsted) {
		t.Fatalf("iasted:chat should open iasted")
	}
	if CanAccessModule([]string{"iasted:read"}, identity.ModuleIAsted) {
		t.Fatalf("iasted:read must not open iasted")
	}
	if !CanAccessModule([]string{"*"}, identity.ModuleIAsted) {
		t.Fatalf("global scope should open every module")
	}
}
