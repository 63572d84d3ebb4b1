// Package batch runs the key-normalization pipeline over a directory tree.
package batch

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
)

// Job maps one discovered input onto its flat output path. A shadowed job
// shares its output name with a later input and is not processed.
type Job struct {
	Input    string
	Output   string
	Shadowed bool
}

// Discover walks root recursively and returns the files whose extension is
// in extensions (case-insensitive), in lexicographic order
func Discover(root string, extensions []string) ([]string, error) {
	wanted := make([]string, len(extensions))
	for i, ext := range extensions {
		wanted[i] = strings.ToLower(ext)
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if slices.Contains(wanted, strings.ToLower(filepath.Ext(path))) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.Sort(files)
	return files, nil
}

// PlanJobs places every input directly under outputDir by base name. When
// several inputs share a base name the last one wins, which matches what a
// sequential run overwriting the same file would leave behind.
func PlanJobs(inputs []string, outputDir string) []Job {
	last := make(map[string]int, len(inputs))
	for i, in := range inputs {
		last[filepath.Base(in)] = i
	}

	jobs := make([]Job, len(inputs))
	for i, in := range inputs {
		name := filepath.Base(in)
		jobs[i] = Job{
			Input:    in,
			Output:   filepath.Join(outputDir, name),
			Shadowed: last[name] != i,
		}
	}
	return jobs
}
