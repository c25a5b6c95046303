package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"love-sync-backend/internal/config"
	"love-sync-backend/internal/database"
	"love-sync-backend/internal/models"
	"love-sync-backend/internal/services"
	"love-sync-backend/internal/sessions"
	"love-sync-backend/internal/syncclient"
	"love-sync-backend/internal/unlock"

	"github.com/alecthomas/kong"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var cli struct {
	Config   string `help:"Path to the YAML config file." default:"config.yaml" type:"path"`
	LogLevel string `help:"Override log.level (debug, info, warn, error)."`

	Serve    ServeCmd    `cmd:"" help:"Run the API server and background workers." default:"1"`
	Migrate  MigrateCmd  `cmd:"" help:"Apply database migrations."`
	Watch    WatchCmd    `cmd:"" help:"Follow a shared session until it resolves."`
	Calendar CalendarCmd `cmd:"" help:"Print the unlock calendar as a role sees it."`
}

// Run parses the command line and runs the selected command
func Run() {
	kctx := kong.Parse(&cli,
		kong.Name("love-sync"),
		kong.Description("Valentine week calendar and two-party session backend"),
		kong.UsageOnError(),
	)

	// Load configuration
	cfg, err := config.Load(cli.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}

	// Setup logger
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := kctx.Run(cfg); err != nil {
		log.Fatal().Err(err).Str("command", kctx.Command()).Msg("Command failed")
	}
}

// setupLogger configures the global zerolog logger
func setupLogger(level, format string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func loadCalendar(cfg *config.Config) (*unlock.Calendar, error) {
	days, err := cfg.Calendar.ContentDays()
	if err != nil {
		return nil, err
	}
	return unlock.NewCalendar(days), nil
}

// MigrateCmd applies the embedded SQL migrations
type MigrateCmd struct{}

func (c *MigrateCmd) Run(cfg *config.Config) error {
	if err := database.RunMigrations(cfg.Database.URL()); err != nil {
		return err
	}
	log.Info().Str("database", cfg.Database.DBName).Msg("Migrations applied")
	return nil
}

// CalendarCmd prints every configured day for one role
type CalendarCmd struct {
	Role string `help:"Viewer role." enum:"guest,user,premium" default:"guest"`
	At   string `help:"Evaluate at this RFC3339 instant instead of now."`
}

func (c *CalendarCmd) Run(cfg *config.Config) error {
	calendar, err := loadCalendar(cfg)
	if err != nil {
		return err
	}

	clock := clockwork.NewRealClock()
	if c.At != "" {
		at, err := time.Parse(time.RFC3339, c.At)
		if err != nil {
			return fmt.Errorf("failed to parse --at: %w", err)
		}
		clock = clockwork.NewFakeClockAt(at)
	}

	role := map[string]models.ViewerRole{
		"guest":   models.RoleGuest,
		"user":    models.RoleAuthenticated,
		"premium": models.RolePremiumCouple,
	}[c.Role]

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DAY\tTITLE\tUNLOCKS\tSTATUS")
	for _, e := range services.NewCalendarService(calendar, clock).Entries(role) {
		status := "open"
		switch {
		case e.RequiresPremium:
			status = "premium only"
		case !e.Visible:
			status = "in " + e.Display
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.Day, e.Title, e.UnlockAt.Format("Mon Jan 2 15:04 MST"), status)
	}
	return w.Flush()
}

// WatchCmd polls one session the way a participant's device does and logs every phase change
type WatchCmd struct {
	ID          string        `arg:"" help:"Session id (the part after the last / of a share link)."`
	Server      string        `help:"API base URL." default:"http://localhost:8080"`
	Token       string        `help:"Bearer token to send." env:"LOVESYNC_TOKEN"`
	AutoStart   bool          `help:"Issue start once both chocolate players have joined."`
	MaxFailures int           `help:"Give up after this many consecutive failed polls; 0 retries forever." default:"0"`
	Interval    time.Duration `help:"Poll interval; defaults to sessions.poll_interval."`
}

func (c *WatchCmd) Run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	interval := c.Interval
	if interval <= 0 {
		interval = cfg.Sessions.PollInterval
	}

	var opts []syncclient.Option
	if c.Token != "" {
		opts = append(opts, syncclient.WithToken(c.Token))
	}
	client := syncclient.New(c.Server, opts...)

	poller := syncclient.NewPoller(client, c.ID, clockwork.NewRealClock(), syncclient.PollerConfig{
		Interval:    interval,
		MaxFailures: c.MaxFailures,
		AutoStart:   c.AutoStart,
		Joined:      true,
	})

	var last sessions.Phase
	poller.OnUpdate(func(sess *models.Session, phase sessions.Phase) {
		if phase == last {
			return
		}
		last = phase
		ev := log.Info().
			Str("session_id", sess.ID).
			Str("kind", string(sess.Kind)).
			Str("status", string(sess.Status)).
			Str("phase", string(phase)).
			Int64("version", sess.Version)
		if phase == sessions.PhaseCountdown {
			ev = ev.Dur("starts_in", sessions.CountdownRemaining(sess, time.Now()))
		}
		ev.Msg("Session phase changed")
	})

	log.Info().Str("session_id", c.ID).Str("server", c.Server).Dur("interval", interval).Msg("Watching session")

	sess, err := poller.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Println(describeOutcome(sess))
	return nil
}

func describeOutcome(sess *models.Session) string {
	o := sess.Outcome
	switch {
	case o == nil:
		return "unresolved"
	case o.Pairing != nil:
		return fmt.Sprintf("%s + %s", o.Pairing.Initiator.Name, o.Pairing.Responder.Name)
	case o.Score != nil:
		if o.TimedOut {
			return "timed out, score 0%"
		}
		return fmt.Sprintf("score %d%% (%s), %dms apart", *o.Score, sessions.Band(*o.Score), deref(o.DeltaMillis))
	case o.Answer != "":
		return "answer: " + strings.ToLower(o.Answer)
	case o.Reaction != "":
		return "reaction: " + o.Reaction
	}
	return "resolved"
}

func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
