// Command shadow_compare replays read-only storefront requests against the Go
// service and the legacy service and reports where their answers diverge.
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
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
)

// Compare modes.
const (
	modeBody    = "body"
	modeRanking = "ranking"
)

var defaultIgnored = []string{"traceId", "processing_time_ms", "cache_hit", "stack"}

type target struct {
	Method   string   `json:"method"`
	Path     string   `json:"path"`
	Mode     string   `json:"mode"`
	Ignore   []string `json:"ignore"`
	Critical bool     `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type comparison struct {
	Target         target
	LegacyStatus   int
	GoStatus       int
	StatusMatch    bool
	BodyMatch      bool
	Detail         string
	Error          error
	DurationGo     time.Duration
	DurationLegacy time.Duration
}

func (c comparison) diverged() bool {
	return c.Error != nil || !c.StatusMatch || !c.BodyMatch
}

func main() {
	var (
		goBase      string
		legacyBase  string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&goBase, "go-base", "http://localhost:8080", "Go API base URL")
	flag.StringVar(&legacyBase, "legacy-base", "http://localhost:5000", "Legacy API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "shadow_compare", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

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
		comp := compareTarget(client, goBase, legacyBase, t)
		if comp.diverged() {
			if t.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
		comparisons = append(comparisons, comp)
	}

	printReport(comparisons)
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
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	for i := range cfg.Targets {
		switch cfg.Targets[i].Mode {
		case "":
			cfg.Targets[i].Mode = modeBody
		case modeBody, modeRanking:
		default:
			return nil, fmt.Errorf("target %s: unknown mode %q", cfg.Targets[i].Path, cfg.Targets[i].Mode)
		}
	}
	return cfg.Targets, nil
}

func compareTarget(client *http.Client, goBase, legacyBase string, tgt target) comparison {
	comp := comparison{Target: tgt}

	goStatus, goBody, goDur, err := fetch(client, goBase, tgt)
	comp.DurationGo = goDur
	if err != nil {
		comp.Error = fmt.Errorf("go request failed: %w", err)
		return comp
	}
	legacyStatus, legacyBody, legacyDur, err := fetch(client, legacyBase, tgt)
	comp.DurationLegacy = legacyDur
	if err != nil {
		comp.Error = fmt.Errorf("legacy request failed: %w", err)
		return comp
	}

	comp.GoStatus = goStatus
	comp.LegacyStatus = legacyStatus
	comp.StatusMatch = goStatus == legacyStatus

	ignored := append(append([]string{}, defaultIgnored...), tgt.Ignore...)
	if tgt.Mode == modeRanking {
		comp.BodyMatch, comp.Detail = rankingsEqual(goBody, legacyBody)
		return comp
	}
	comp.BodyMatch = bodiesEqual(goBody, legacyBody, ignored)
	return comp
}

func fetch(client *http.Client, base string, tgt target) (int, []byte, time.Duration, error) {
	if client == nil {
		return 0, nil, 0, errors.New("nil client")
	}
	method := strings.ToUpper(strings.TrimSpace(tgt.Method))
	if method == "" {
		method = http.MethodGet
	}
	path := tgt.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequest(method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return 0, nil, 0, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, time.Since(start), nil
}

// searchPage is the subset of a search response both services must agree on.
type searchPage struct {
	Products []struct {
		ID string `json:"id"`
	} `json:"products"`
	Meta struct {
		TotalProducts int  `json:"totalProducts"`
		CurrentPage   int  `json:"currentPage"`
		TotalPages    int  `json:"totalPages"`
		HasNextPage   bool `json:"hasNextPage"`
		HasPrevPage   bool `json:"hasPrevPage"`
	} `json:"meta"`
}

// rankingsEqual compares the ordered inventory ids and pagination meta of two
// search responses, ignoring every other field.
func rankingsEqual(a, b []byte) (bool, string) {
	var pa, pb searchPage
	if err := json.Unmarshal(a, &pa); err != nil {
		return false, "go body is not a search page"
	}
	if err := json.Unmarshal(b, &pb); err != nil {
		return false, "legacy body is not a search page"
	}
	if pa.Meta != pb.Meta {
		return false, fmt.Sprintf("meta go=%+v legacy=%+v", pa.Meta, pb.Meta)
	}
	if len(pa.Products) != len(pb.Products) {
		return false, fmt.Sprintf("product count go=%d legacy=%d", len(pa.Products), len(pb.Products))
	}
	for i := range pa.Products {
		if pa.Products[i].ID != pb.Products[i].ID {
			return false, fmt.Sprintf("position %d go=%s legacy=%s", i, pa.Products[i].ID, pb.Products[i].ID)
		}
	}
	return true, ""
}

func bodiesEqual(a, b []byte, ignored []string) bool {
	if bytes.Equal(bytes.TrimSpace(a), bytes.TrimSpace(b)) {
		return true
	}

	var aj, bj interface{}
	if err := json.Unmarshal(a, &aj); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bj); err != nil {
		return false
	}
	skip := make(map[string]struct{}, len(ignored))
	for _, key := range ignored {
		skip[key] = struct{}{}
	}
	normalize(&aj, skip)
	normalize(&bj, skip)
	return reflect.DeepEqual(aj, bj)
}

func normalize(v *interface{}, skip map[string]struct{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		for k, v2 := range val {
			if _, drop := skip[k]; drop {
				delete(val, k)
				continue
			}
			normalize(&v2, skip)
			val[k] = v2
		}
	case []interface{}:
		for i, v2 := range val {
			normalize(&v2, skip)
			val[i] = v2
		}
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}

func printReport(results []comparison) {
	fmt.Println("Storefront Shadow Compare")
	fmt.Println("=========================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if res.diverged() {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s %s (%s)\n", status, res.Target.Method, res.Target.Path, res.Target.Mode)
		fmt.Printf("  Go Status: %d (%s)\n", res.GoStatus, res.DurationGo)
		fmt.Printf("  Legacy Status: %d (%s)\n", res.LegacyStatus, res.DurationLegacy)
		switch {
		case res.Error != nil:
			fmt.Printf("  Error: %v\n", res.Error)
		case res.Detail != "":
			fmt.Printf("  %s\n", res.Detail)
		default:
			fmt.Printf("  Status match: %t | Body match: %t | Critical: %t\n", res.StatusMatch, res.BodyMatch, res.Target.Critical)
		}
	}
}
