// Package provision locates and verifies the external ssh client used by the
// SFTP engine when configured to run over an external process.
//
// State is process-wide. Init must run before the first session that needs
// the executable and Teardown resets it.
package provision

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/TrevorEdris/transfer-utils/pkg/errors"
	"github.com/TrevorEdris/transfer-utils/pkg/log"
)

// DefaultExecutable is looked up in $PATH when no path is configured.
const DefaultExecutable = "ssh"

type (
	Config struct {
		ExecutablePath string `mapstructure:"executablePath" yaml:"executablePath"`
		// RequiredVersion must prefix the reported version when set.
		RequiredVersion string `mapstructure:"requiredVersion" yaml:"requiredVersion"`
	}

	Executable struct {
		Path    string
		Version string
	}
)

var (
	mu      sync.Mutex
	current *Executable
)

// Init provisions the executable once. Later calls return the already
// provisioned executable until Teardown.
func Init(ctx context.Context, cfg Config) (*Executable, error) {
	mu.Lock()
	defer mu.Unlock()

	if current != nil {
		return current, nil
	}

	path, err := resolve(cfg.ExecutablePath)
	if err != nil {
		return nil, err
	}

	version, err := probeVersion(ctx, path)
	if err != nil {
		return nil, err
	}
	if cfg.RequiredVersion != "" && !strings.HasPrefix(version, cfg.RequiredVersion) {
		return nil, eris.Wrapf(errors.ErrExecutableVersion, "%s reports %q, want %q", path, version, cfg.RequiredVersion)
	}

	current = &Executable{Path: path, Version: version}
	log.FromCtx(ctx).Info("Provisioned client executable", zap.String("path", path), zap.String("version", version))
	return current, nil
}

func Current() (*Executable, error) {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		return nil, errors.ErrNotProvisioned
	}
	return current, nil
}

func Teardown() {
	mu.Lock()
	defer mu.Unlock()
	current = nil
}

func resolve(configured string) (string, error) {
	name := strings.TrimSpace(configured)
	if name == "" {
		name = DefaultExecutable
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", eris.Wrapf(errors.ErrExecutableNotFound, "%s: %v", name, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", eris.Wrapf(errors.ErrExecutableNotFound, "%s: %v", path, err)
	}
	if !info.Mode().IsRegular() || info.Mode().Perm()&0o111 == 0 {
		return "", eris.Wrapf(errors.ErrExecutableNotFound, "%s is not an executable file", path)
	}
	return path, nil
}

// probeVersion runs "<path> -V"; ssh prints its version on stderr.
func probeVersion(ctx context.Context, path string) (string, error) {
	out, err := exec.CommandContext(ctx, path, "-V").CombinedOutput()
	if err != nil {
		return "", eris.Wrapf(errors.ErrExecutableVersion, "%s -V: %v", path, err)
	}

	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			return line, nil
		}
	}
	return "", eris.Wrapf(errors.ErrExecutableVersion, "%s -V printed nothing", path)
}
