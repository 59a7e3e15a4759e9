package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/stravadash/internal/config"
	"github.com/2beens/stravadash/internal/logging"
	"github.com/2beens/stravadash/internal/strava"
	"github.com/2beens/stravadash/internal/tokenstore"
)

// Two steps: run without -code to get the consent URL, open it, then run
// again with the code from the redirect.
func main() {
	env := flag.String("env", "development", "environment [prod | production | dev | development]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	dotEnvPath := flag.String("dotenv", ".env", "optional .env file with secrets")
	code := flag.String("code", "", "authorization code from the redirect url")
	flag.Parse()

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}
	if err := config.LoadDotEnv(*dotEnvPath); err != nil {
		log.Fatalf("load dotenv: %s", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	secrets, err := config.LoadSecrets(ctx)
	if err != nil {
		log.Fatalf("load secrets: %s", err)
	}

	logging.Setup(logging.LoggerSetupParams{
		LogToStdout: true,
		LogLevel:    cfg.LogLevel,
		Environment: cfg.Environment,
	})

	if err := secrets.RequireStrava(); err != nil {
		log.Fatalf("missing secrets: %s", err)
	}

	authenticator := strava.NewAuthenticator(secrets.ClientID, secrets.ClientSecret, strava.Endpoint{
		AuthURL:     cfg.StravaAuthURL,
		TokenURL:    cfg.StravaTokenURL,
		RedirectURL: cfg.StravaRedirectURL,
	}, &http.Client{Timeout: cfg.HTTPTimeout()})

	if *code == "" {
		fmt.Println("open this url, approve access and copy the code param from the redirect:")
		fmt.Println(authenticator.AuthURL(uuid.NewString()))
		return
	}

	token, err := authenticator.ExchangeCode(ctx, *code)
	if err != nil {
		log.Fatalf("exchange code: %s", err)
	}
	log.Infof("token granted for athlete %d, scope [%s]", token.AthleteID, token.Scope)

	tokens, closeTokens := tokenstore.Open(cfg, secrets.RedisPassword)
	defer func() {
		if err := closeTokens(); err != nil {
			log.Errorf("close token store: %s", err)
		}
	}()

	if tokens == nil {
		fmt.Printf("REFRESH_TOKEN=%s\n", token.RefreshToken)
		return
	}
	if err := tokens.Save(ctx, token.RefreshToken); err != nil {
		log.Errorf("save refresh token: %s", err)
		fmt.Printf("REFRESH_TOKEN=%s\n", token.RefreshToken)
		return
	}
	log.Infoln("refresh token saved")
}
