package qobuz

import (
	"fmt"
	"time"

	"github.com/vitiko98/mopidy-qobuz/backend/config"
	"github.com/vitiko98/mopidy-qobuz/backend/platform"
	platformplugins "github.com/vitiko98/mopidy-qobuz/backend/platform/plugins"
	"github.com/vitiko98/mopidy-qobuz/plugins/qobuz/stream"
)

func init() {
	if err := platformplugins.Register(platformName, buildContribution); err != nil {
		panic(err)
	}
}

func buildContribution(deps platformplugins.Deps) (*platformplugins.Contribution, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if cfg.HasPluginKey(platformName, "enabled") && !cfg.GetPluginBool(platformName, "enabled") {
		return nil, nil
	}

	settings, err := settingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	opts := BackendOptions{
		Sessions: deps.Sessions,
		Pool:     deps.Pool,
	}
	if deps.Logger != nil {
		opts.Logger = deps.Logger.With("backend", platformName)
	}
	if deps.Metrics != nil {
		opts.Observer = deps.Metrics
	}

	b, err := NewBackend(settings, opts)
	if err != nil {
		return nil, err
	}
	return &platformplugins.Contribution{Backend: b}, nil
}

func settingsFromConfig(cfg *config.Config) (Settings, error) {
	get := func(key string) string { return cfg.GetPluginString(platformName, key) }
	getInt := func(key string, def int) int { return cfg.GetPluginIntDefault(platformName, key, def) }
	seconds := func(key string, def int) time.Duration { return time.Duration(getInt(key, def)) * time.Second }
	millis := func(key string, def int) time.Duration { return time.Duration(getInt(key, def)) * time.Millisecond }

	quality := platform.DefaultQuality
	if raw := get("quality"); raw != "" {
		q, err := platform.ParseQuality(raw)
		if err != nil {
			return Settings{}, fmt.Errorf("qobuz quality: %w", err)
		}
		quality = q
	}

	rateLimit := 5.0
	if cfg.HasPluginKey(platformName, "rate_limit_per_second") {
		rateLimit = cfg.GetPluginFloat64(platformName, "rate_limit_per_second")
	}

	baseURL := get("base_url")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return Settings{
		Username: get("username"),
		Password: get("password"),
		AppID:    get("app_id"),
		Secret:   get("secret"),
		Quality:  quality,
		Search: SearchLimits{
			Albums:  getInt("search_album_count", 10),
			Tracks:  getInt("search_track_count", 10),
			Artists: getInt("search_artist_count", 0),
		},
		CustomLibraries: get("custom_libraries"),
		HiresRequired:   cfg.GetPluginBool(platformName, "hires_required"),
		CacheSize:       getInt("cache_size", stream.DefaultCacheSize),
		URLValidity:     seconds("url_validity_sec", int(stream.DefaultValidity/time.Second)),
		ResolveAttempts: getInt("resolve_attempts", stream.DefaultAttempts),
		AttemptTimeout:  seconds("attempt_timeout_sec", int(stream.DefaultAttemptTimeout/time.Second)),
		RetryWaitMin:    millis("retry_wait_min_ms", 200),
		RetryWaitMax:    millis("retry_wait_max_ms", 2000),
		PrefetchTimeout: seconds("prefetch_timeout_sec", int(defaultPrefetchTimeout/time.Second)),
		RateLimit:       rateLimit,
		RateBurst:       getInt("rate_limit_burst", 10),
		BaseURL:         baseURL,
		UserAgent:       get("user_agent"),
		CheckSecret:     cfg.GetPluginBool(platformName, "check_secret"),
	}, nil
}
