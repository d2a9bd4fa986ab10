package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// variant returns path's sibling ".N" file, e.g. "part.3" for variant(path,
// 3) where path is "part" — ported from
// original_source/rrdt-cli/src/utils.rs's PathExt::variant.
func variant(path string, n int) string {
	dir, name := filepath.Split(path)
	return filepath.Join(dir, fmt.Sprintf("%s.%d", name, n))
}

func mergeNeighbour(path string, count int) error {
	target := variant(path, count)
	source := variant(path, count+1)

	if _, err := os.Stat(target); err != nil {
		return fmt.Errorf("merge target not found: %w", err)
	}
	if _, err := os.Stat(source); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer dst.Close()

	src, err := os.Open(source)
	if err != nil {
		return err
	}
	defer src.Close()

	_, err = io.Copy(dst, src)
	return err
}

// merge folds the total per-stream temporary files at path.0 .. path.(total-1)
// pairwise into a single final file at path, halving the file count each
// round — ported from original_source/rrdt-cli/src/utils.rs's merge.
func merge(path string, total int) error {
	for total > 1 {
		for count := 0; count < total; count += 2 {
			if err := mergeNeighbour(path, count); err != nil {
				return err
			}
		}
		for count := 1; count < total; count += 2 {
			if err := os.Remove(variant(path, count)); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
		for count := 0; count < total; count += 2 {
			from := variant(path, count)
			to := variant(path, count/2)
			if from != to {
				if err := os.Rename(from, to); err != nil {
					return err
				}
			}
		}
		total = (total + 1) / 2
	}

	return os.Rename(variant(path, 0), path)
}
