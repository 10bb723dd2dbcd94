package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/conorfennell/knoldeck/internal/domain"
)

// Git imports the markdown cards of a git repository. The repository is
// cloned below CacheDir on first use and pulled afterwards.
type Git struct {
	URL      string
	CacheDir string
	Progress io.Writer
	Logger   *slog.Logger
}

// DeckName implements Source.
func (g *Git) DeckName() string {
	name := strings.TrimSuffix(strings.TrimRight(g.URL, "/"), ".git")
	if i := strings.LastIndexAny(name, "/:"); i >= 0 {
		name = name[i+1:]
	}
	return "📚 " + name
}

// Generate implements Source.
func (g *Git) Generate(ctx context.Context) ([]domain.Pair, error) {
	localPath, err := LocalPath(g.CacheDir, g.URL)
	if err != nil {
		return nil, generationError("git", err)
	}
	if err := g.sync(ctx, localPath); err != nil {
		return nil, generationError("git", err)
	}
	return (&Markdown{Path: localPath}).Generate(ctx)
}

// sync clones the repository if it doesn't exist at localPath, or pulls the
// latest changes if it does.
func (g *Git) sync(ctx context.Context, localPath string) error {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}

	_, err := os.Stat(localPath)
	switch {
	case os.IsNotExist(err):
		logger.Info("Cloning repository", "url", g.URL, "path", localPath)
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL:      g.URL,
			Progress: g.Progress,
		})
		if err != nil {
			return fmt.Errorf("failed to clone repo %s: %w", g.URL, err)
		}
	case err == nil:
		logger.Info("Pulling latest changes", "path", localPath)
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing repo at %s: %w", localPath, err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("failed to get worktree for repo at %s: %w", localPath, err)
		}
		err = worktree.PullContext(ctx, &git.PullOptions{
			RemoteName: "origin",
			Progress:   g.Progress,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return fmt.Errorf("failed to pull changes for repo at %s: %w", localPath, err)
		}
	default:
		return fmt.Errorf("error checking path %s: %w", localPath, err)
	}
	return nil
}

// LocalPath maps an https or scp-style git URL to a directory below baseDir,
// e.g. git@github.com:me/cards.git -> baseDir/github.com/me/cards. URLs that
// would resolve outside their host directory are rejected.
func LocalPath(baseDir, repoURL string) (string, error) {
	var host, repoPath string
	parsedURL, err := url.Parse(repoURL)
	if err == nil && (parsedURL.Scheme == "https" || parsedURL.Scheme == "http") {
		host, repoPath = parsedURL.Host, parsedURL.Path
	} else if at := strings.Index(repoURL, "@"); at >= 0 {
		host, repoPath, _ = strings.Cut(repoURL[at+1:], ":")
	}
	repoPath = strings.TrimSuffix(strings.Trim(repoPath, "/"), ".git")
	if host == "" || repoPath == "" {
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}
	if host == "." || host == ".." || strings.ContainsAny(host, `/\`) {
		return "", fmt.Errorf("%w: invalid host in git URL %s", domain.ErrValidation, repoURL)
	}

	hostDir := filepath.Join(baseDir, host)
	localPath := filepath.Join(hostDir, repoPath)
	if localPath == hostDir {
		return "", fmt.Errorf("%w: git URL %s has no repository path", domain.ErrValidation, repoURL)
	}
	if err := within(hostDir, localPath); err != nil {
		return "", fmt.Errorf("%w: git URL %s escapes the cache directory", domain.ErrValidation, repoURL)
	}
	return localPath, nil
}
