// Package gdrive bootstraps and reuses the Google Drive OAuth token used for off-site backups.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// ErrNoCredentials is returned when no OAuth client file exists in any searched location.
var ErrNoCredentials = errors.New("could not find credentials file")

// Scopes only grant access to files the tool created.
var Scopes = []string{drive.DriveFileScope}

// FindCredentials returns the first existing path.
func FindCredentials(paths []string) (string, error) {
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", ErrNoCredentials
}

// LoadOAuthConfig reads a client secret file downloaded from the Google Cloud console.
func LoadOAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(raw, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials file %s: %w", credentialsFile, err)
	}
	return cfg, nil
}

// SaveToken writes the token readable by the owner only.
func SaveToken(path string, tok *oauth2.Token) error {
	raw, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return os.Chmod(path, 0600)
}

func LoadToken(path string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token (run gdrive-auth first): %w", err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("invalid token file %s: %w", path, err)
	}
	return &tok, nil
}

// savingTokenSource writes refreshed tokens back to disk.
type savingTokenSource struct {
	base oauth2.TokenSource
	path string
	last string
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := SaveToken(s.path, tok); err != nil {
			return nil, err
		}
	}
	return tok, nil
}

// NewService opens Drive with the stored token, persisting refreshes to tokenFile.
func NewService(ctx context.Context, cfg *oauth2.Config, tokenFile string, opts ...option.ClientOption) (*drive.Service, error) {
	tok, err := LoadToken(tokenFile)
	if err != nil {
		return nil, err
	}
	ts := oauth2.ReuseTokenSource(tok, &savingTokenSource{
		base: cfg.TokenSource(ctx, tok),
		path: tokenFile,
		last: tok.AccessToken,
	})
	opts = append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive client: %w", err)
	}
	return svc, nil
}

type AccountInfo struct {
	DisplayName string
	Email       string
	UsageBytes  int64
	LimitBytes  int64
}

// About fetches the signed-in user and storage quota.
func About(ctx context.Context, svc *drive.Service) (*AccountInfo, error) {
	about, err := svc.About.Get().
		Fields("user(displayName,emailAddress),storageQuota(usage,limit)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("drive about: %w", err)
	}
	info := &AccountInfo{}
	if about.User != nil {
		info.DisplayName = about.User.DisplayName
		info.Email = about.User.EmailAddress
	}
	if about.StorageQuota != nil {
		info.UsageBytes = about.StorageQuota.Usage
		info.LimitBytes = about.StorageQuota.Limit
	}
	return info, nil
}
