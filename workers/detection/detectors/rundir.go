package detectors

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// RunPrefix names run directories: predict, predict2, predict3, ...
const RunPrefix = "predict"

var runDirPattern = regexp.MustCompile(`^` + RunPrefix + `(\d*)$`)

// runNumber returns the counter embedded in a run directory name. The
// unnumbered first run counts as 1.
func runNumber(name string) (int, bool) {
	m := runDirPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	if m[1] == "" {
		return 1, true
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

type runDir struct {
	path   string
	number int
}

func listRuns(base string) ([]runDir, error) {
	entries, err := os.ReadDir(base)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read run directory root %s: %w", base, err)
	}

	var runs []runDir
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if n, ok := runNumber(e.Name()); ok {
			runs = append(runs, runDir{path: filepath.Join(base, e.Name()), number: n})
		}
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].number < runs[j].number })
	return runs, nil
}

// LatestRunDir returns the run directory under base with the highest counter,
// or "" when there is none. Ordering is numeric, so predict10 beats predict9.
func LatestRunDir(base string) (string, error) {
	runs, err := listRuns(base)
	if err != nil || len(runs) == 0 {
		return "", err
	}
	return runs[len(runs)-1].path, nil
}

// NextRunDir creates and returns a fresh run directory numbered one past the latest.
func NextRunDir(base string) (string, error) {
	runs, err := listRuns(base)
	if err != nil {
		return "", err
	}

	name := RunPrefix
	if len(runs) > 0 {
		name = RunPrefix + strconv.Itoa(runs[len(runs)-1].number+1)
	}

	path := filepath.Join(base, name)
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", fmt.Errorf("create run directory root: %w", err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}
	return path, nil
}

// CollectCrops lists <runDir>/crops/<class>/*.jpg for each class, sorted by name.
// A missing class directory contributes no crops.
func CollectCrops(runDir string, classes []string) (*Result, error) {
	result := NewResult(runDir)
	for _, class := range classes {
		files, err := filepath.Glob(filepath.Join(runDir, "crops", class, "*.jpg"))
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		for _, f := range files {
			result.Add(class, f)
		}
	}
	return result, nil
}
