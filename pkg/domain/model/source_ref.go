package model

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrInvalidNotionID is returned when the input cannot be parsed as a Notion ID
	ErrInvalidNotionID = goerr.New("invalid Notion ID")
	// ErrInvalidGitHubRepo is returned when the input is not owner/repo or a GitHub repository URL
	ErrInvalidGitHubRepo = goerr.New("invalid GitHub repository")
)

var (
	notionHexPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)
	githubNamePart   = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// ParseNotionID accepts a raw 32 hex ID, a dashed UUID or a notion.so URL and
// returns the ID in the 8-4-4-4-12 form the Notion API expects.
func ParseNotionID(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrInvalidNotionID
	}

	candidate := input
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		u, err := url.Parse(input)
		if err != nil {
			return "", ErrInvalidNotionID
		}
		if host := u.Hostname(); host != "www.notion.so" && host != "notion.so" {
			return "", ErrInvalidNotionID
		}
		segments := strings.Split(strings.TrimRight(u.Path, "/"), "/")
		candidate = segments[len(segments)-1]

		// The ID trails the page title, e.g. My-Database-<32 hex>
		clean := strings.ReplaceAll(candidate, "-", "")
		if len(clean) < 32 {
			return "", ErrInvalidNotionID
		}
		candidate = clean[len(clean)-32:]
	}

	hex := strings.ToLower(strings.ReplaceAll(candidate, "-", ""))
	if !notionHexPattern.MatchString(hex) {
		return "", ErrInvalidNotionID
	}
	return hex[0:8] + "-" + hex[8:12] + "-" + hex[12:16] + "-" + hex[16:20] + "-" + hex[20:32], nil
}

// ParseGitHubRepo accepts "owner/repo" or https://github.com/owner/repo[.git] and returns both parts
func ParseGitHubRepo(input string) (owner, repo string, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", "", ErrInvalidGitHubRepo
	}

	path := input
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		u, parseErr := url.Parse(input)
		if parseErr != nil || u.Hostname() != "github.com" {
			return "", "", goerr.Wrap(ErrInvalidGitHubRepo, "unsupported repository URL", goerr.V("input", input))
		}
		path = strings.Trim(u.Path, "/")
		path = strings.TrimSuffix(path, ".git")
	}

	parts := strings.Split(path, "/")
	if len(parts) != 2 || !githubNamePart.MatchString(parts[0]) || !githubNamePart.MatchString(parts[1]) {
		return "", "", goerr.Wrap(ErrInvalidGitHubRepo, "repository must be owner/repo", goerr.V("input", input))
	}
	return parts[0], parts[1], nil
}
