package script

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"webenv/internal/envconfig"
)

// WriteFile renders cfg to path. The previous file stays in place until the
// new content has been synced, then it is replaced with a single rename.
func WriteFile(path string, cfg envconfig.FirebaseConfig, opts Options) error {
	if opts.FileName == "" {
		opts.FileName = filepath.Base(path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create script directory: %w", err)
		}
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending script file: %w", err)
	}
	defer func() {
		_ = pending.Cleanup()
	}()

	if err := Render(pending, cfg, opts); err != nil {
		return err
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace script file: %w", err)
	}
	return nil
}
