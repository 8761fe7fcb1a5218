// Command depscheck fails when a geometry package imports the reference
// host. The registry talks to hosts only through internal/transport.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePath = "github.com/OEOTYAN/BedrockServerClientInterface"

type packageInfo struct {
	ImportPath string
	Imports    []string
}

// rule forbids packages matching From from importing anything under To.
type rule struct {
	From []string
	To   []string
}

var rules = []rule{
	{
		From: []string{
			modulePath,
			modulePath + "/internal/registry",
			modulePath + "/internal/particle",
			modulePath + "/internal/draw",
			modulePath + "/internal/tessellate",
			modulePath + "/internal/transport",
			modulePath + "/internal/sim",
			modulePath + "/internal/config",
			modulePath + "/internal/geo",
			modulePath + "/internal/ids",
			modulePath + "/internal/shard",
		},
		To: []string{
			modulePath + "/internal/net",
			modulePath + "/internal/app",
		},
	},
}

func under(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func (r rule) applies(pkg string) bool {
	for _, from := range r.From {
		// The module root matches only itself.
		if from == modulePath {
			if pkg == modulePath {
				return true
			}
			continue
		}
		if under(pkg, from) {
			return true
		}
	}
	return false
}

func (r rule) forbids(imp string) bool {
	for _, to := range r.To {
		if under(imp, to) {
			return true
		}
	}
	return false
}

func violations(pkgs []packageInfo) []string {
	var out []string
	for _, pkg := range pkgs {
		for _, r := range rules {
			if !r.applies(pkg.ImportPath) {
				continue
			}
			for _, imp := range pkg.Imports {
				if r.forbids(imp) {
					out = append(out, fmt.Sprintf("%s -> %s", pkg.ImportPath, imp))
				}
			}
		}
	}
	sort.Strings(out)
	return out
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./...")
	cmd.Env = os.Environ()
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Stderr.Write(exitErr.Stderr)
		}
		fmt.Fprintf(os.Stderr, "depscheck: failed to list packages: %v\n", err)
		os.Exit(1)
	}

	decoder := json.NewDecoder(bytes.NewReader(output))

	var pkgs []packageInfo
	for {
		var pkg packageInfo
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			fmt.Fprintf(os.Stderr, "depscheck: failed to decode package info: %v\n", err)
			os.Exit(1)
		}
		pkgs = append(pkgs, pkg)
	}

	if found := violations(pkgs); len(found) > 0 {
		fmt.Fprintln(os.Stderr, "depscheck: found forbidden imports:")
		for _, violation := range found {
			fmt.Fprintf(os.Stderr, "  %s\n", violation)
		}
		os.Exit(1)
	}
}
