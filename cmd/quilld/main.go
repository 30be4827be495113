package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/quillworks/quill/internal/httpapi"
	"github.com/quillworks/quill/internal/quill"
)

func main() {
	mintUser := flag.String("mint-token", "", "print a development token for the given user id and exit")
	mintTTL := flag.Duration("mint-ttl", 24*time.Hour, "lifetime of the minted development token")
	flag.Parse()

	jwtSecret := os.Getenv("QUILL_JWT_SECRET")

	if *mintUser != "" {
		secret := jwtSecret
		if secret == "" {
			secret = "dev-secret"
		}
		token, err := httpapi.SignToken(secret, *mintUser, []string{httpapi.ScopeWorkspaceRead, httpapi.ScopeWorkspaceWrite}, *mintTTL, time.Now().UTC())
		if err != nil {
			log.Fatalf("failed to mint token: %v", err)
		}
		fmt.Println(token)
		return
	}

	addr := os.Getenv("QUILL_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	stateBackend, err := buildStateBackendFromEnv()
	if err != nil {
		log.Fatalf("failed to initialize state backend: %v", err)
	}

	store := quill.NewStoreWithOptions(quill.StoreOptions{
		StateBackend:    stateBackend,
		StateFile:       os.Getenv("QUILL_STATE_FILE"),
		MaxStoredEvents: intEnv("QUILL_MAX_STORED_EVENTS", 0),
	})
	defer store.Close()

	server := httpapi.NewServerWithConfig(store, httpapi.ServerConfig{
		JWTSecret:       jwtSecret,
		RateLimitMax:    intEnv("QUILL_RATE_LIMIT_MAX", 0),
		RateLimitWindow: durationEnv("QUILL_RATE_LIMIT_WINDOW", time.Minute),
		MaxBodyBytes:    int64Env("QUILL_MAX_BODY_BYTES", 0),
	})

	log.Printf("quilld listening on %s", addr)
	if err := http.ListenAndServe(addr, server); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func intEnv(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %d", name, raw, fallback)
		return fallback
	}
	return value
}

func int64Env(name string, fallback int64) int64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %d", name, raw, fallback)
		return fallback
	}
	return value
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %s", name, raw, fallback.String())
		return fallback
	}
	return value
}

func buildStateBackendFromEnv() (quill.StateBackend, error) {
	profileDSN, err := storageProfileDSNFromEnv()
	if err != nil {
		return nil, err
	}
	stateBackendDSN := strings.TrimSpace(os.Getenv("QUILL_STATE_BACKEND_DSN"))
	stateFile := strings.TrimSpace(os.Getenv("QUILL_STATE_FILE"))
	switch {
	case stateBackendDSN != "":
		return quill.BuildStateBackendFromDSN(stateBackendDSN)
	case stateFile != "":
		return quill.BuildStateBackendFromDSN(stateFile)
	case profileDSN != "":
		return quill.BuildStateBackendFromDSN(profileDSN)
	default:
		return nil, nil
	}
}

func storageProfileDSNFromEnv() (string, error) {
	profile := strings.ToLower(strings.TrimSpace(os.Getenv("QUILL_BACKEND_PROFILE")))
	dataDir := strings.TrimSpace(os.Getenv("QUILL_DATA_DIR"))
	if dataDir == "" {
		dataDir = ".quill"
	}
	switch profile {
	case "", "custom":
		return "", nil
	case "memory", "inmemory":
		return "memory://", nil
	case "production", "prod":
		productionDSN := strings.TrimSpace(os.Getenv("QUILL_PRODUCTION_DSN"))
		if productionDSN == "" {
			productionDSN = strings.TrimSpace(os.Getenv("QUILL_POSTGRES_DSN"))
		}
		if productionDSN == "" {
			return "", fmt.Errorf("QUILL_PRODUCTION_DSN or QUILL_POSTGRES_DSN is required when QUILL_BACKEND_PROFILE=%s", profile)
		}
		return productionDSN, nil
	case "durable-local", "local-durable":
		return "file://" + filepath.Join(dataDir, "state.json"), nil
	default:
		return "", fmt.Errorf("unsupported QUILL_BACKEND_PROFILE: %s", profile)
	}
}
