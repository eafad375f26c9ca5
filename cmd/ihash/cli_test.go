package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewRootCmdHasAllSubcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"set", "get", "update", "delete", "search", "doctor", "serve", "index", "export", "import"}
	got := make(map[string]bool)
	for _, c := range root.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("expected root command to register %q", name)
		}
	}
}

func TestSetCmdRejectsMalformedJSON(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"set", "users", "{not json"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected an error for a malformed JSON document")
	}
}

func TestGetCmdMissingKeyPrintsNull(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"get", "users", "does-not-exist"})

	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != "null" {
		t.Fatalf("output = %q, want null", out.String())
	}
}

func TestSearchCmdRejectsMalformedEqFlag(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"search", "users", "--eq", "no-equals-sign"})

	if err := root.Execute(); err == nil {
		t.Fatal("expected an error for an --eq flag missing '='")
	}
}

func TestSearchCmdEmptyNamespaceReturnsEmptyArray(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"search", "users", "--eq", "status=open"})

	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != "[]" {
		t.Fatalf("output = %q, want []", out.String())
	}
}

func TestDoctorCmdWithoutRepairFlagSucceeds(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"doctor"})

	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if out.Len() == 0 {
		t.Fatal("expected doctor to print a diagnostic message")
	}
}

func TestDoctorCmdRepairEmptyNamespaceSucceeds(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"doctor", "--repair", "users"})

	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
}

func TestParseEqFlagsLiteralAndJSON(t *testing.T) {
	q, err := parseEqFlags([]string{"status=open", "count=3", "active=true"})
	if err != nil {
		t.Fatal(err)
	}
	if len(q) != 3 {
		t.Fatalf("parseEqFlags returned %d terms, want 3", len(q))
	}
	if !q["status"].Matches("open") {
		t.Error("expected status=open to match the literal string \"open\"")
	}
	if !q["count"].Matches(3.0) {
		t.Error("expected count=3 to parse as a JSON number and match 3.0")
	}
	if !q["active"].Matches(true) {
		t.Error("expected active=true to parse as a JSON bool")
	}
}

func TestParseEqFlagsRejectsMissingEquals(t *testing.T) {
	if _, err := parseEqFlags([]string{"badflag"}); err == nil {
		t.Fatal("expected an error for a flag with no '='")
	}
}
