package config // package config loads application configuration from environment variables

import (
    "log"      // log is used to report configuration errors and halt execution
    "os"       // os provides access to environment variables
    "time"

    "github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Policy values live in Policy and are loaded
// separately by LoadPolicy so they can be passed explicitly to the engine.
type Config struct {
    Env          string // application environment (e.g. "dev", "prod")
    Port         string // HTTP port to listen on
    DBDriver     string // "mysql" (default) or "sqlite"
    DBUser       string // database username
    DBPass       string // database password (optional)
    DBHost       string // database host address
    DBPort       string // database port number
    DBName       string // database name
    SQLitePath   string // database file when DBDriver is "sqlite"
    JWTSecret    string // secret used to verify bearer tokens
    AccessTTLMin int    // lifetime of tokens minted by the token command

    RabbitURL    string // broker for the notification dispatcher; empty disables it
    NotifyQueue  string // durable queue carrying notification events
    NotifyEmail  string // practice address copied on booking notifications
    NotifyOutbox string // file the notify-worker appends events to

    CalendarID          string // Google calendar the therapist books against
    CalendarCredentials string // service-account JSON for the calendar API; empty disables sync

    SideEffectTimeout time.Duration // bound on each post-commit calendar/notification call
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is applied first when it
// exists.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    _ = godotenv.Load() // optional; real environment wins

    cfg := Config{
        Env:          envStr("APP_ENV", "dev"),
        Port:         envStr("APP_PORT", "8080"),
        DBDriver:     envStr("DB_DRIVER", "mysql"),
        JWTSecret:    must("JWT_SECRET"),
        AccessTTLMin: envInt("ACCESS_TOKEN_TTL_MIN", 60),

        RabbitURL:    rabbitURL(),
        NotifyQueue:  envStr("NOTIFY_QUEUE", "booking.notifications"),
        NotifyEmail:  os.Getenv("PRACTICE_NOTIFY_EMAIL"),
        NotifyOutbox: envStr("NOTIFY_OUTBOX", "notifications.outbox"),

        CalendarID:          envStr("GOOGLE_CALENDAR_ID", "primary"),
        CalendarCredentials: os.Getenv("GOOGLE_CREDENTIALS_FILE"),

        SideEffectTimeout: envDur("SIDE_EFFECT_TIMEOUT", 5*time.Second),
    }
    switch cfg.DBDriver {
    case "sqlite":
        cfg.SQLitePath = envStr("SQLITE_PATH", "practice.db")
    default:
        cfg.DBDriver = "mysql"
        cfg.DBUser = must("DB_USER")
        cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
        cfg.DBHost = must("DB_HOST")
        cfg.DBPort = must("DB_PORT")
        cfg.DBName = must("DB_NAME")
    }
    return cfg
}

// rabbitURL honours both RABBITMQ_URL and the older AMQP_URL name.
func rabbitURL() string {
    if v := os.Getenv("RABBITMQ_URL"); v != "" {
        return v
    }
    return os.Getenv("AMQP_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}
