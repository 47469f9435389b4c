package main

import (
	"os"
	"path/filepath"
	"sort"
)

const schemaFilename = "ddb.schema.yaml"

// skipDirs are never searched for schema files.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".ddb":         true,
	"_examples":    true,
}

// discoverSchemas finds all ddb.schema.yaml files below root.
func discoverSchemas(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == schemaFilename {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}
