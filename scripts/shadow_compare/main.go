// Command shadow_compare replays read-only macro actions against the spreadsheet macro and
// the Go API and reports payload differences. Both sides may answer JSON or JSONP.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gopkg.in/yaml.v3"
)

type target struct {
	Name     string            `yaml:"name"`
	Params   map[string]string `yaml:"params"`
	Critical bool              `yaml:"critical"`
	// Ignore lists top-level keys excluded from the comparison.
	Ignore []string `yaml:"ignore"`
}

type targetsFile struct {
	Targets []target `yaml:"targets"`
}

type comparison struct {
	Target         target
	Diff           string
	Error          error
	DurationGo     time.Duration
	DurationLegacy time.Duration
}

func (c comparison) ok() bool {
	return c.Error == nil && c.Diff == ""
}

func main() {
	var (
		goURL       string
		legacyURL   string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&goURL, "go-url", "http://localhost:8080/api/v1/macro", "Go macro endpoint")
	flag.StringVar(&legacyURL, "legacy-url", "", "Spreadsheet macro endpoint (…/exec)")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "shadow_compare", "targets.yaml"), "Path to YAML targets file")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if legacyURL == "" {
		log.Fatal("-legacy-url is required")
	}
	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		comparisons  []comparison
		breaking     int
		optionalDiff int
	)
	for _, t := range targets {
		comp := compareTarget(client, goURL, legacyURL, t)
		if !comp.ok() {
			if t.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
		comparisons = append(comparisons, comp)
	}

	printReport(os.Stdout, comparisons)
	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file targetsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	for i, t := range file.Targets {
		if t.Params["action"] == "" {
			return nil, fmt.Errorf("target %d (%s) has no action", i, t.Name)
		}
		if t.Params["action"] == "setWeekBulk" {
			return nil, fmt.Errorf("target %s: setWeekBulk writes data and cannot be shadowed", t.Name)
		}
	}
	return file.Targets, nil
}

func compareTarget(client *http.Client, goURL, legacyURL string, tgt target) comparison {
	comp := comparison{Target: tgt}
	goBody, goDur, goErr := fetch(client, goURL, tgt.Params)
	legacyBody, legacyDur, legacyErr := fetch(client, legacyURL, tgt.Params)
	comp.DurationGo = goDur
	comp.DurationLegacy = legacyDur

	if goErr != nil {
		comp.Error = fmt.Errorf("go request failed: %w", goErr)
		return comp
	}
	if legacyErr != nil {
		comp.Error = fmt.Errorf("legacy request failed: %w", legacyErr)
		return comp
	}

	diff, err := diffPayloads(legacyBody, goBody, tgt.Ignore)
	if err != nil {
		comp.Error = err
		return comp
	}
	comp.Diff = diff
	return comp
}

func fetch(client *http.Client, base string, params map[string]string) ([]byte, time.Duration, error) {
	if client == nil {
		return nil, 0, errors.New("nil client")
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, 0, err
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	start := time.Now()
	resp, err := client.Get(u.String())
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("status %d", resp.StatusCode)
	}
	return body, time.Since(start), nil
}

var jsonpPattern = regexp.MustCompile(`(?s)^\s*[A-Za-z_$][\w$.]*\((.*)\);?\s*$`)

// stripJSONP returns the JSON inside a callback(...) wrapper, or raw when unwrapped.
func stripJSONP(raw []byte) []byte {
	if m := jsonpPattern.FindSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}

// diffPayloads compares two macro answers and returns a go-cmp diff (-legacy +go).
// Numbers compare with a cent tolerance because the spreadsheet sums floats.
func diffPayloads(legacy, goBody []byte, ignore []string) (string, error) {
	var lv, gv map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(stripJSONP(legacy)), &lv); err != nil {
		return "", fmt.Errorf("decode legacy body: %w", err)
	}
	if err := json.Unmarshal(bytes.TrimSpace(stripJSONP(goBody)), &gv); err != nil {
		return "", fmt.Errorf("decode go body: %w", err)
	}
	for _, key := range ignore {
		delete(lv, key)
		delete(gv, key)
	}
	return cmp.Diff(lv, gv,
		cmpopts.EquateApprox(0, 0.005),
		cmpopts.EquateEmpty(),
	), nil
}

func printReport(w io.Writer, results []comparison) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Target.Critical && !results[j].Target.Critical })
	fmt.Fprintln(w, "Shadow Compare Report")
	fmt.Fprintln(w, "======================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if res.Diff != "" {
			status = "DIFF"
		}
		fmt.Fprintf(w, "[%s] %s action=%s\n", status, res.Target.Name, res.Target.Params["action"])
		fmt.Fprintf(w, "  Go: %s | Legacy: %s | Critical: %t\n", res.DurationGo, res.DurationLegacy, res.Target.Critical)
		if res.Error != nil {
			fmt.Fprintf(w, "  Error: %v\n", res.Error)
		}
		if res.Diff != "" {
			fmt.Fprintf(w, "  Diff (-legacy +go):\n%s\n", indent(res.Diff, "    "))
		}
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
