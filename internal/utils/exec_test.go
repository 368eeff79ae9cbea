package utils

import "testing"

func TestIsWindowsExecutable(t *testing.T) {
	tests := []struct {
		pathext string
		path    string
		want    bool
	}{
		{"", `C:\tools\judge.exe`, true},
		{"", `C:\tools\judge.CMD`, true},
		{"", `C:\tools\judge`, false},
		{"", `C:\tools\notes.txt`, false},
		{"", "", false},
		{".EXE;PS1", `C:\tools\run.ps1`, true},
		{".EXE;PS1", `C:\tools\run.bat`, false},
		{" .exe ; ", "/usr/local/bin/judge.exe", true},
	}
	for _, tt := range tests {
		t.Setenv("PATHEXT", tt.pathext)
		if got := IsWindowsExecutable(tt.path); got != tt.want {
			t.Errorf("IsWindowsExecutable(%q) with PATHEXT=%q = %v, want %v", tt.path, tt.pathext, got, tt.want)
		}
	}
}
