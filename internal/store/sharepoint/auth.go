package sharepoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/vargulf/hvseed/utils"
	"golang.org/x/oauth2"
)

const (
	authEndpoint  = "https://login.microsoftonline.com/common/oauth2/v2.0/authorize"
	tokenEndpoint = "https://login.microsoftonline.com/common/oauth2/v2.0/token"
)

// TokenForSite obtains a bearer token for the site's API scope, derived
// from the site's scheme and host. A cached token is reused and refreshed
// where possible; otherwise the operator signs in interactively.
func TokenForSite(ctx context.Context, siteURL string, tokenFile string) (string, error) {
	clientID := os.Getenv("HVSEED_CLIENT_ID")
	if clientID == "" {
		return "", errors.New("HVSEED_CLIENT_ID environment variable is not set")
	}
	parsed, err := url.Parse(siteURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid site URL %q", siteURL)
	}
	config := &oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authEndpoint,
			TokenURL: tokenEndpoint,
		},
		Scopes:      []string{fmt.Sprintf("%s://%s/.default", parsed.Scheme, parsed.Host), "offline_access"},
		RedirectURL: "http://localhost",
	}

	token, err := getOAuthToken(ctx, config, tokenFile)
	if err != nil {
		return "", fmt.Errorf("unable to get OAuth token: %w", err)
	}
	if !token.Valid() {
		if token.RefreshToken == "" {
			return "", errors.New("OAuth token is expired and cannot be refreshed")
		}
		newToken, err := config.TokenSource(ctx, token).Token()
		if err != nil {
			return "", fmt.Errorf("unable to refresh token: %w", err)
		}
		token = newToken
		if err := saveToken(tokenFile, token); err != nil {
		}
	}
	return token.AccessToken, nil
}

func getOAuthToken(ctx context.Context, config *oauth2.Config, tokenFile string) (*oauth2.Token, error) {
	token, err := tokenFromFile(tokenFile)
	if err == nil {
		return token, nil
	}
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	utils.PrintDetail("\nVisit this URL to sign in and get the authorization code:\n")
	fmt.Printf("%s\n", authURL)
	utils.PrintDetail("\nAfter authorizing, enter the authorization code:")
	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("unable to read authorization code: %w", err)
	}
	token, err = config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("unable to exchange auth code for token: %w", err)
	}
	if err := saveToken(tokenFile, token); err != nil {
	}
	clearLength := 6
	clearLength += len(authURL)/utils.GetTerminalWidth() + 1
	fmt.Printf("\033[%dA\033[J", clearLength)
	return token, nil
}

func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	token := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(token)
	if err != nil {
		return nil, err
	}
	if !token.Valid() && token.RefreshToken == "" {
		return nil, errors.New("cached token is expired")
	}
	return token, nil
}

func saveToken(file string, token *oauth2.Token) error {
	dir := filepath.Dir(file)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("unable to create token directory: %w", err)
		}
	}
	f, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to cache oauth token: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
