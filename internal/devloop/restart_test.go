package devloop

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRestartArgv(t *testing.T) {
	goRun := filepath.Join(t.TempDir(), "go-build3418", "b001", "exe", "myapp")
	installed := filepath.Join(t.TempDir(), "bin", "myapp")
	args := []string{"serve", "--port", "9000"}

	tests := []struct {
		name     string
		exe      string
		mainPath string
		want     []string
	}{
		{
			name:     "go run of a package is repeated",
			exe:      goRun,
			mainPath: "example.com/myapp/cmd/myapp",
			want:     []string{"go", "run", "example.com/myapp/cmd/myapp", "serve", "--port", "9000"},
		},
		{
			name:     "go run of a file list re-executes the binary",
			exe:      goRun,
			mainPath: "command-line-arguments",
			want:     []string{goRun, "serve", "--port", "9000"},
		},
		{
			name:     "installed binary is re-executed",
			exe:      installed,
			mainPath: "example.com/myapp/cmd/myapp",
			want:     []string{installed, "serve", "--port", "9000"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RestartArgv(tt.exe, tt.mainPath, args))
		})
	}
}

func TestConfiguredRestartCommandWins(t *testing.T) {
	s := &Supervisor{RestartCommand: []string{"make", "dev"}}
	assert.Equal(t, []string{"make", "dev"}, s.restartCommand())
}
