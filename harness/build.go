package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// ResolveBinary returns the expected engine path for target given the
// directory the engines are built into.
func ResolveBinary(binDir, target string) string {
	return filepath.Join(binDir, target)
}

// Build compiles the engine target inside an already configured CMake
// build directory and returns the binary path under binDir.
func Build(
	ctx context.Context,
	logger *slog.Logger,
	buildDir, binDir, target string,
) (string, error) {
	binPath := ResolveBinary(binDir, target)

	logger.InfoContext(ctx, "building engine",
		slog.String("target", target),
		slog.String("build_dir", buildDir),
	)

	cmd := exec.CommandContext(
		ctx, "cmake", "--build", buildDir, "--target", target,
	)

	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("build %s: %w", target, err)
	}

	if _, err := os.Stat(binPath); err != nil {
		return "", fmt.Errorf(
			"build %s: binary not found at %s", target, binPath,
		)
	}

	logger.InfoContext(ctx, "engine built",
		slog.String("target", target),
		slog.String("binary", binPath),
	)

	return binPath, nil
}
