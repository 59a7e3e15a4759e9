package strava

import (
	"context"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/2beens/stravadash/internal/telemetry/tracing"
)

const DefaultScope = "read,activity:read_all,profile:read_all"

type Endpoint struct {
	AuthURL     string
	TokenURL    string
	RedirectURL string
}

// Token is the result of a successful grant. The refresh token may differ
// from the one used for the grant; callers must persist the new one.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
	Scope        string
	AthleteID    int64
}

// Authenticator performs the OAuth grants against the token endpoint.
type Authenticator struct {
	conf       *oauth2.Config
	httpClient *http.Client
}

func NewAuthenticator(clientID, clientSecret string, endpoint Endpoint, httpClient *http.Client) *Authenticator {
	return &Authenticator{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   endpoint.AuthURL,
				TokenURL:  endpoint.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
			RedirectURL: endpoint.RedirectURL,
			Scopes:      []string{DefaultScope},
		},
		httpClient: httpClient,
	}
}

// AuthURL is the consent page the athlete opens once to obtain a code.
func (a *Authenticator) AuthURL(state string) string {
	return a.conf.AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "force"))
}

func (a *Authenticator) clientCtx(ctx context.Context) context.Context {
	if a.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

// ExchangeCode trades a one-time authorization code for tokens.
func (a *Authenticator) ExchangeCode(ctx context.Context, code string) (_ *Token, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "strava.exchangeCode")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	tok, err := a.conf.Exchange(a.clientCtx(ctx), code)
	if err != nil {
		return nil, toAuthError(err)
	}

	log.Debugf("authorization code exchanged, token expires at %s", tok.Expiry)
	return fromOAuthToken(tok), nil
}

// Refresh performs one refresh-token grant and returns the new access token.
func (a *Authenticator) Refresh(ctx context.Context, refreshToken string) (_ *Token, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "strava.refresh")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if refreshToken == "" {
		return nil, &AuthError{Err: errors.New("empty refresh token")}
	}

	src := a.conf.TokenSource(a.clientCtx(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, toAuthError(err)
	}

	if tok.RefreshToken != refreshToken {
		log.Infoln("refresh token rotated")
	}
	return fromOAuthToken(tok), nil
}

func toAuthError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return &AuthError{StatusCode: retrieveErr.Response.StatusCode, Err: err}
	}
	return &AuthError{Err: err}
}

func fromOAuthToken(tok *oauth2.Token) *Token {
	t := &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		t.Scope = scope
	}
	if athlete, ok := tok.Extra("athlete").(map[string]any); ok {
		if id, ok := athlete["id"].(float64); ok {
			t.AthleteID = int64(id)
		}
	}
	return t
}
