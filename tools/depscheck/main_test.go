package main

import "testing"

func TestViolations(t *testing.T) {
	pkgs := []packageInfo{
		{ImportPath: modulePath, Imports: []string{modulePath + "/internal/registry"}},
		{ImportPath: modulePath + "/internal/registry", Imports: []string{modulePath + "/internal/net/hub"}},
		{ImportPath: modulePath + "/internal/net", Imports: []string{modulePath, modulePath + "/internal/net/hub"}},
		{ImportPath: modulePath + "/internal/app", Imports: []string{modulePath + "/internal/net"}},
		{ImportPath: modulePath + "/internal/simulator", Imports: []string{modulePath + "/internal/net"}},
		{ImportPath: modulePath + "/internal/sim", Imports: []string{modulePath + "/internal/network"}},
	}

	got := violations(pkgs)
	if len(got) != 1 || got[0] != modulePath+"/internal/registry -> "+modulePath+"/internal/net/hub" {
		t.Fatalf("unexpected violations %v", got)
	}
}
