package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/quillworks/quill/internal/workspace"
)

func main() {
	configPath := flag.String("config", strings.TrimSpace(os.Getenv("QUILL_CONFIG")), "path to a YAML config file")
	baseURL := flag.String("base-url", "", "quill server base URL")
	token := flag.String("token", "", "bearer token")
	userID := flag.String("user", "", "workspace owner id")
	guest := flag.Bool("guest", false, "run fully offline with a seeded guest workspace")
	pageSize := flag.Int("page-size", 0, "page size for collection loads")
	interval := flag.Duration("interval", 0, "sync interval")
	intervalJitter := flag.Float64("interval-jitter", -1, "sync interval jitter ratio (0.0-1.0)")
	timeout := flag.Duration("timeout", 0, "per-sync timeout")
	once := flag.Bool("once", false, "run one sync cycle and exit")
	grantXP := flag.Int("grant-xp", 0, "grant this much XP after the first sync cycle")
	flag.Parse()

	cfg, err := loadConfigFile(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	override := cliConfig{
		BaseURL:  strings.TrimSpace(*baseURL),
		Token:    strings.TrimSpace(*token),
		UserID:   strings.TrimSpace(*userID),
		Guest:    *guest,
		PageSize: *pageSize,
		Interval: *interval,
		Timeout:  *timeout,
	}
	if *intervalJitter >= 0 {
		override.IntervalJitter = intervalJitter
	}
	cfg = mergeConfig(cfg, override)
	applyConfigDefaults(&cfg)
	jitter := clampJitterRatio(floatEnv("QUILL_SYNC_INTERVAL_JITTER", 0.2))
	if cfg.IntervalJitter != nil {
		jitter = clampJitterRatio(*cfg.IntervalJitter)
	}

	if cfg.UserID == "" {
		log.Fatalf("user is required (--user, QUILL_USER, or userId in the config file)")
	}
	if !cfg.Guest && cfg.Token == "" {
		log.Fatalf("token is required outside guest mode (--token, QUILL_TOKEN, or token in the config file)")
	}

	opts := workspace.SessionOptions{
		OwnerID:  cfg.UserID,
		Guest:    cfg.Guest,
		PageSize: cfg.PageSize,
		Logger:   log.Default(),
	}
	if !cfg.Guest {
		opts.Client = workspace.NewHTTPClient(cfg.BaseURL, workspace.StaticTokenSource(cfg.Token), &http.Client{Timeout: cfg.Timeout})
	}
	session, err := workspace.NewSession(opts)
	if err != nil {
		log.Fatalf("failed to open session: %v", err)
	}
	defer session.Close()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := func(reset bool) {
		ctx, cancel := context.WithTimeout(rootCtx, cfg.Timeout)
		defer cancel()
		if err := syncOnce(ctx, session, reset); err != nil {
			log.Printf("sync cycle failed: %v", err)
			return
		}
		printSummary(session)
	}

	run(true)

	if *grantXP != 0 {
		ctx, cancel := context.WithTimeout(rootCtx, cfg.Timeout)
		profile, mutation, err := session.GrantXP(ctx, *grantXP)
		if err != nil {
			log.Printf("xp grant failed: %v", err)
		} else {
			if mutation != nil {
				_ = mutation.Wait(ctx)
			}
			log.Printf("granted %d xp: total %d, streak %d", *grantXP, profile.XP, profile.StreakCount)
		}
		cancel()
	}

	if *once || cfg.Guest {
		return
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	timer := time.NewTimer(jitteredIntervalWithSample(cfg.Interval, jitter, rng.Float64()))
	defer timer.Stop()
	for {
		select {
		case <-rootCtx.Done():
			log.Printf("sync stopping: %v", rootCtx.Err())
			return
		case <-timer.C:
			run(false)
			timer.Reset(jitteredIntervalWithSample(cfg.Interval, jitter, rng.Float64()))
		}
	}
}

// syncOnce refreshes the profile, the project collection, and the
// artifacts of every loaded project. Guest sessions are pre-seeded and
// exhausted, so every load is a local no-op.
func syncOnce(ctx context.Context, session *workspace.Session, reset bool) error {
	if err := session.LoadProfile(ctx); err != nil {
		return err
	}
	if err := session.LoadProjects(ctx, reset); err != nil {
		return err
	}
	for session.CanLoadMore(workspace.ProjectsCollection) {
		if err := session.LoadProjects(ctx, false); err != nil {
			return err
		}
	}
	for _, project := range session.Projects() {
		if err := session.LoadArtifacts(ctx, project.ID, reset); err != nil {
			return err
		}
	}
	return nil
}

func printSummary(session *workspace.Session) {
	profile := session.Profile()
	projects := session.Projects()
	total := 0
	for _, project := range projects {
		total += len(session.Artifacts(project.ID))
	}
	log.Printf("synced %d projects, %d artifacts (xp %d, streak %d)", len(projects), total, profile.XP, profile.StreakCount)
}

// mergeConfig lays override on top of base field by field. Zero values
// in override leave the base value untouched; IntervalJitter is a
// pointer because 0 is a meaningful ratio.
func mergeConfig(base, override cliConfig) cliConfig {
	if override.BaseURL != "" {
		base.BaseURL = override.BaseURL
	}
	if override.Token != "" {
		base.Token = override.Token
	}
	if override.UserID != "" {
		base.UserID = override.UserID
	}
	if override.Guest {
		base.Guest = true
	}
	if override.PageSize > 0 {
		base.PageSize = override.PageSize
	}
	if override.Interval > 0 {
		base.Interval = override.Interval
	}
	if override.IntervalJitter != nil {
		base.IntervalJitter = override.IntervalJitter
	}
	if override.Timeout > 0 {
		base.Timeout = override.Timeout
	}
	return base
}

func applyConfigDefaults(cfg *cliConfig) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = envOrDefault("QUILL_BASE_URL", "http://127.0.0.1:8080")
	}
	if cfg.Token == "" {
		cfg.Token = strings.TrimSpace(os.Getenv("QUILL_TOKEN"))
	}
	if cfg.UserID == "" {
		cfg.UserID = strings.TrimSpace(os.Getenv("QUILL_USER"))
	}
	if cfg.Interval <= 0 {
		cfg.Interval = durationEnv("QUILL_SYNC_INTERVAL", 30*time.Second)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = durationEnv("QUILL_SYNC_TIMEOUT", 15*time.Second)
	}
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
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

func floatEnv(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %f", name, raw, fallback)
		return fallback
	}
	return value
}

func clampJitterRatio(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func jitteredIntervalWithSample(base time.Duration, jitterRatio, sample float64) time.Duration {
	if base <= 0 {
		return 0
	}
	jitterRatio = clampJitterRatio(jitterRatio)
	if jitterRatio == 0 {
		return base
	}
	if sample < 0 {
		sample = 0
	} else if sample > 1 {
		sample = 1
	}
	factor := 1 + ((sample*2)-1)*jitterRatio
	if factor < 0 {
		factor = 0
	}
	delay := time.Duration(float64(base) * factor)
	if delay < time.Millisecond {
		return time.Millisecond
	}
	return delay
}
