package providers

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/nibzard/clear-go/internal/utils"
)

// FindBinary resolves a cli provider binary through PATH.
func FindBinary(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("provider binary %q not found in PATH: %w", name, err)
	}
	return path, nil
}

// ValidateBinary checks if a binary exists and is executable.
// On Windows, we only check if the file exists and has a valid executable extension.
// On Unix, we also check the execute permission bit.
func ValidateBinary(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("binary not found: %s", path)
		}
		return fmt.Errorf("stat binary: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("binary path is a directory: %s", path)
	}

	if runtime.GOOS == "windows" {
		if !utils.IsWindowsExecutable(path) {
			return fmt.Errorf("binary is not executable: %s", path)
		}
		return nil
	}
	if info.Mode().Perm()&0111 == 0 {
		return fmt.Errorf("binary is not executable: %s", path)
	}
	return nil
}
