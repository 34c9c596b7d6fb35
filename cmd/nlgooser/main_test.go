package main

import (
	"reflect"
	"testing"
)

func TestParseArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"logon CORP\\alice", []string{"logon", `CORP\alice`}},
		{`logon alice@corp "pass word"`, []string{"logon", "alice@corp", "pass word"}},
		{"  status  ", []string{"status"}},
		{`logon bob 'it"s'`, []string{"logon", "bob", `it"s`}},
	}
	for _, tt := range tests {
		if got := parseArgs(tt.line); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseArgs(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestSplitUser(t *testing.T) {
	tests := []struct {
		in, def           string
		wantUser, wantDom string
	}{
		{`CORP\alice`, "", "alice", "CORP"},
		{"alice@corp.local", "", "alice", "corp.local"},
		{"alice", "CORP", "alice", "CORP"},
	}
	for _, tt := range tests {
		user, dom := splitUser(tt.in, tt.def)
		if user != tt.wantUser || dom != tt.wantDom {
			t.Errorf("splitUser(%q) = %q, %q", tt.in, user, dom)
		}
	}
}

func TestCommandRegistry(t *testing.T) {
	for _, name := range []string{"logon", "validate", "status", "reconnect", "close", "disconnect", "help", "?", "exit", "quit"} {
		if commands.Get(name) == nil {
			t.Errorf("command %q not registered", name)
		}
	}
	if got := len(commands.List()); got != 6 {
		t.Errorf("%d unique commands, want 6", got)
	}
}
