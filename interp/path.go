// Copyright (c) 2017, Daniel Martí <mvdan@mvdan.cc>
// See LICENSE for licensing information

package interp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/coreshell/coreshell/env"
)

// LookPathDir resolves file against PATH (split on ':', searched
// left-to-right per spec §6), relative to cwd for any path-like
// argument that already contains a separator.
func LookPathDir(cwd string, e *env.Env, file string) (string, error) {
	if strings.ContainsRune(file, '/') {
		return checkExecutable(absolutize(cwd, file))
	}
	pathVar := e.Get("PATH")
	var dirs []string
	if pathVar != "" {
		dirs = strings.Split(pathVar, ":")
	}
	for _, dir := range dirs {
		if dir == "" {
			dir = "."
		}
		candidate := absolutize(cwd, filepath.Join(dir, file))
		if p, err := checkExecutable(candidate); err == nil {
			return p, nil
		}
	}
	return "", &CommandNotFound{Name: file}
}

func absolutize(cwd, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cwd, p)
}

func checkExecutable(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s: is a directory", path)
	}
	if info.Mode()&0o111 == 0 {
		return "", fmt.Errorf("%s: permission denied", path)
	}
	return path, nil
}
