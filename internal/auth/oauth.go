package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPIURL = "https://api.github.com"

// GitHubUser is the part of the GitHub profile used for sign-in.
type GitHubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"` // empty when the user hides it; Exchange then asks /user/emails
}

// DisplayName is Name, or Login when the profile has no name.
func (u *GitHubUser) DisplayName() string {
	if strings.TrimSpace(u.Name) != "" {
		return strings.TrimSpace(u.Name)
	}
	return u.Login
}

// GitHubProvider runs the OAuth 2.0 authorization code flow against GitHub.
//
// FLOW:
//  1. AuthURL sends the browser to GitHub with a random state
//  2. GitHub redirects back with ?code=...&state=...
//  3. Exchange trades the code for a token (server to server, with the client
//     secret) and reads the profile and primary email
//
// The access token never reaches the browser and is dropped after Exchange.
type GitHubProvider struct {
	config *oauth2.Config
	apiURL string
}

// NewGitHubProvider creates a GitHubProvider. callbackURL must match the
// "Authorization callback URL" of the OAuth App exactly.
func NewGitHubProvider(clientID, clientSecret, callbackURL string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiURL: githubAPIURL,
	}
}

// AuthURL returns the GitHub authorization URL. state must be random and
// checked on callback, otherwise another site could complete a sign-in into
// an account of its choosing.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the flow and returns the GitHub profile with a verified
// email filled in. A profile without any verified email is an error: the
// account could not be matched to a local one.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	// The client adds "Authorization: Bearer <token>" to every request.
	client := p.config.Client(ctx, token)

	var ghUser GitHubUser
	if err := getJSON(ctx, client, p.apiURL+"/user", &ghUser); err != nil {
		return nil, err
	}
	if ghUser.ID == 0 {
		return nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	if ghUser.Email == "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(ctx, client, p.apiURL+"/user/emails", &emails); err != nil {
			return nil, err
		}
		for _, e := range emails {
			if e.Verified && (e.Primary || ghUser.Email == "") {
				ghUser.Email = e.Email
			}
		}
	}
	if ghUser.Email == "" {
		return nil, fmt.Errorf("auth: GitHub account %q has no verified email", ghUser.Login)
	}

	return &ghUser, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("auth: building GitHub request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling GitHub %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: GitHub %s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("auth: decoding GitHub %s response: %w", url, err)
	}
	return nil
}
