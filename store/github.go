package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
)

// GitHub stores objects as files in a repository. The file blob SHA serves
// as the revision token for conflict-free overwrites.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
	log    zerolog.Logger
}

func NewGitHub(token, owner, repo string, log zerolog.Logger) *GitHub {
	return &GitHub{
		client: github.NewClient(nil).WithAuthToken(token),
		owner:  owner,
		repo:   repo,
		log:    log.With().Str("component", "store").Logger(),
	}
}

func (g *GitHub) Get(ctx context.Context, path string) ([]byte, string, error) {
	file, _, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, path, nil)
	if err != nil {
		return nil, "", g.mapError(err, false)
	}
	if file == nil {
		return nil, "", ErrNotFound
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, "", fmt.Errorf("decode %s: %w", path, err)
	}
	return []byte(content), file.GetSHA(), nil
}

func (g *GitHub) Put(ctx context.Context, path string, payload []byte, revision string) (string, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String("Update " + path),
		Content: payload,
	}
	var (
		resp *github.RepositoryContentResponse
		err  error
	)
	if revision == "" {
		resp, _, err = g.client.Repositories.CreateFile(ctx, g.owner, g.repo, path, opts)
	} else {
		opts.SHA = github.String(revision)
		resp, _, err = g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, path, opts)
	}
	if err != nil {
		return "", g.mapError(err, true)
	}
	return resp.Content.GetSHA(), nil
}

func (g *GitHub) Delete(ctx context.Context, path string, revision string) error {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String("Delete " + path),
		SHA:     github.String(revision),
	}
	if _, _, err := g.client.Repositories.DeleteFile(ctx, g.owner, g.repo, path, opts); err != nil {
		return g.mapError(err, true)
	}
	return nil
}

func (g *GitHub) List(ctx context.Context, prefix string) ([]Entry, error) {
	dir, namePrefix := splitPrefix(prefix)
	_, listing, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, dir, nil)
	if err != nil {
		mapped := g.mapError(err, false)
		if errors.Is(mapped, ErrNotFound) {
			return nil, nil
		}
		return nil, mapped
	}

	var entries []Entry
	for _, item := range listing {
		if item.GetType() != "file" || !strings.HasPrefix(item.GetName(), namePrefix) {
			continue
		}
		entries = append(entries, Entry{
			Name:     item.GetName(),
			Revision: item.GetSHA(),
			Size:     int64(item.GetSize()),
		})
	}
	return entries, nil
}

func splitPrefix(prefix string) (dir, name string) {
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		return prefix[:i], prefix[i+1:]
	}
	return "", prefix
}

func (g *GitHub) mapError(err error, write bool) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusConflict:
			return ErrConflict
		case http.StatusUnprocessableEntity:
			// The contents API reports a stale SHA as 422.
			if write {
				return ErrConflict
			}
		}
	}
	g.log.Warn().Err(err).Msg("remote store request failed")
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
