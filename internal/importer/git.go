package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-git/go-git/v5"
)

// SyncGit clones url into dir, or pulls when dir already holds a clone.
// An up-to-date repository is not an error.
func SyncGit(ctx context.Context, url, dir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	_, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		logger.Info("importer: cloning repository", slog.String("url", url), slog.String("dir", dir))
		if _, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{URL: url}); err != nil {
			return fmt.Errorf("importer: clone %s: %w", url, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("importer: stat %s: %w", dir, err)
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("importer: open repository %s: %w", dir, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("importer: worktree %s: %w", dir, err)
	}
	logger.Info("importer: pulling repository", slog.String("dir", dir))
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("importer: pull %s: %w", dir, err)
	}
	return nil
}
