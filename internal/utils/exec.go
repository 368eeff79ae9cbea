package utils

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultPathExt = ".COM;.EXE;.BAT;.CMD"

// IsWindowsExecutable reports whether path ends in one of the extensions
// listed in PATHEXT.
func IsWindowsExecutable(path string) bool {
	ext := filepath.Ext(path)
	if ext == "" {
		return false
	}
	pathext := os.Getenv("PATHEXT")
	if pathext == "" {
		pathext = defaultPathExt
	}
	for _, candidate := range SplitAndTrim(pathext, ";") {
		if !strings.HasPrefix(candidate, ".") {
			candidate = "." + candidate
		}
		if strings.EqualFold(candidate, ext) {
			return true
		}
	}
	return false
}
