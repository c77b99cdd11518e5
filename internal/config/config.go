package config // package config loads application configuration from environment variables

import (
    "log"      // log is used to report configuration errors and halt execution
    "os"       // os provides access to environment variables
    "strings"
    "time"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    DBAutoMigrate  bool   // create tables on startup
    JWTSecret      string // secret used to sign JWTs
    JWTIssuer      string // iss claim written into and required from every token
    AccessTTLMin   int    // access token time-to-live in minutes
    RefreshTTLDays int    // refresh token time-to-live in days
    BcryptCost     int    // bcrypt cost for password hashing
    Timezone       string // location whose calendar day bounds "today"

    QueueServerURL     string        // base URL of the remote queue server
    QueueServerTimeout time.Duration // per-call bound for remote queue requests
    WaitTimePoll       time.Duration // how often ride wait times are refreshed

    CookieSecure bool     // mark session cookies Secure
    CookieDomain string   // optional cookie Domain attribute
    CORSOrigins  []string // allowed origins for credentialed requests

    SentryDSN string // empty disables error reporting
    LogLevel  string
    LogFormat string
}

// Load reads configuration values from environment variables. Required
// variables are enforced by must() and missing values cause the program to
// exit with a fatal log message.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),
        Port:           must("APP_PORT"),
        DBUser:         must("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"), // empty allowed
        DBHost:         must("DB_HOST"),
        DBPort:         must("DB_PORT"),
        DBName:         must("DB_NAME"),
        DBAutoMigrate:  envBool("DB_AUTO_MIGRATE", true),
        JWTSecret:      must("JWT_SECRET"),
        JWTIssuer:      envStr("JWT_ISSUER", "simple-auth-server"),
        AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 60),
        RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 30),
        BcryptCost:     envInt("BCRYPT_COST", 12),
        Timezone:       envStr("APP_TIMEZONE", "Local"),

        QueueServerURL:     must("QUEUE_SERVER_URL"),
        QueueServerTimeout: envDur("QUEUE_SERVER_TIMEOUT", 10*time.Second),
        WaitTimePoll:       envDur("WAIT_TIME_POLL_INTERVAL", time.Minute),

        CookieSecure: envBool("COOKIE_SECURE", false),
        CookieDomain: os.Getenv("COOKIE_DOMAIN"),
        CORSOrigins:  splitList(envStr("CORS_ALLOW_ORIGINS", "http://localhost:3000")),

        SentryDSN: os.Getenv("SENTRY_DSN"),
        LogLevel:  envStr("LOG_LEVEL", "info"),
        LogFormat: envStr("LOG_FORMAT", "json"),
    }
}

// AccessTTL and RefreshTTL expose the token lifetimes as durations.
func (c Config) AccessTTL() time.Duration  { return time.Duration(c.AccessTTLMin) * time.Minute }
func (c Config) RefreshTTL() time.Duration { return time.Duration(c.RefreshTTLDays) * 24 * time.Hour }

// Location resolves Timezone, falling back to the process local zone.
func (c Config) Location() *time.Location {
    if c.Timezone == "" || strings.EqualFold(c.Timezone, "Local") {
        return time.Local
    }
    loc, err := time.LoadLocation(c.Timezone)
    if err != nil {
        log.Printf("config: unknown APP_TIMEZONE %q, using Local", c.Timezone)
        return time.Local
    }
    return loc
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

func splitList(s string) []string {
    var out []string
    for _, p := range strings.Split(s, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}
