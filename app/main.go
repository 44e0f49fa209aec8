package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kingdomunited/prayers/app/metrics"
	"github.com/kingdomunited/prayers/app/storage"
	"github.com/kingdomunited/prayers/app/storage/engine"
	"github.com/kingdomunited/prayers/app/webapi"
	"github.com/kingdomunited/prayers/lib/contentfilter"
	"github.com/kingdomunited/prayers/lib/validator"
)

type options struct {
	Server struct {
		Listen      string  `long:"listen" env:"LISTEN" default:":8080" description:"listen address"`
		AdminPasswd string  `long:"admin-passwd" env:"ADMIN_PASSWD" description:"admin password for user \"admin\", admin api disabled if not set"`
		RateLimit   float64 `long:"rate-limit" env:"RATE_LIMIT" default:"60" description:"max requests per minute per ip, 0 to disable"`
	} `group:"server" namespace:"server" env-namespace:"SERVER"`

	DB struct {
		URL string `long:"url" env:"URL" default:"prayers.db" description:"database url, sqlite file or postgres://"`
		GID string `long:"gid" env:"GID" default:"default" description:"group id, a community sharing the database"`
	} `group:"db" namespace:"db" env-namespace:"DB"`

	Filter struct {
		Strictness        contentfilter.Strictness `long:"strictness" env:"STRICTNESS" default:"moderate" description:"filter strictness: lenient, moderate or strict"`
		NoSensitiveTopics bool                     `long:"no-sensitive-topics" env:"NO_SENSITIVE_TOPICS" description:"don't let sensitive topics suppress disallowed patterns"`
		NoCache           bool                     `long:"no-cache" env:"NO_CACHE" description:"disable results cache"`
		CacheLimit        int                      `long:"cache-limit" env:"CACHE_LIMIT" default:"500" description:"max cached results"`
		CacheEvict        int                      `long:"cache-evict" env:"CACHE_EVICT" default:"400" description:"oldest results evicted when the cache is full"`
		MinLength         int                      `long:"min-len" env:"MIN_LEN" default:"5" description:"min prayer request length"`
		MaxLength         int                      `long:"max-len" env:"MAX_LEN" default:"125" description:"max prayer request length"`
	} `group:"filter" namespace:"filter" env-namespace:"FILTER"`

	Logger struct {
		Enabled    bool   `long:"enabled" env:"ENABLED" description:"enable rotated log of rejected submissions"`
		FileName   string `long:"file" env:"FILE" default:"prayers-rejected.log" description:"location of rejected submissions log"`
		MaxSize    string `long:"max-size" env:"MAX_SIZE" default:"100M" description:"maximum size before it gets rotated"`
		MaxBackups int    `long:"max-backups" env:"MAX_BACKUPS" default:"10" description:"maximum number of old log files to retain"`
	} `group:"logger" namespace:"logger" env-namespace:"LOGGER"`

	Dbg bool `long:"dbg" env:"DEBUG" description:"debug mode"`
}

var revision = "local"

func main() {
	fmt.Printf("prayers %s\n", revision)
	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) || flagsErr.Type != flags.ErrHelp {
			log.Printf("[ERROR] cli error: %v", err)
		}
		os.Exit(2)
	}

	setupLog(opts.Dbg, opts.Server.AdminPasswd)
	log.Printf("[DEBUG] options: %+v", opts)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		// catch signal and invoke graceful termination
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		log.Printf("[WARN] interrupt signal")
		cancel()
	}()

	if err := execute(ctx, opts); err != nil {
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, opts options) error {
	db, err := engine.New(ctx, opts.DB.URL, opts.DB.GID)
	if err != nil {
		return fmt.Errorf("can't make db engine for %s: %w", opts.DB.URL, err)
	}
	defer db.Close()
	log.Printf("[INFO] using %s database, group %q", db.Type(), db.GID())

	prayers, err := storage.NewPrayers(ctx, db)
	if err != nil {
		return fmt.Errorf("can't make prayers storage: %w", err)
	}
	rejected, err := storage.NewRejected(ctx, db)
	if err != nil {
		return fmt.Errorf("can't make rejected storage: %w", err)
	}

	rejLog, err := makeRejectionLogWriter(opts)
	if err != nil {
		return fmt.Errorf("can't make rejection log writer: %w", err)
	}
	defer rejLog.Close()

	filter := makeFilter(opts)
	srv := webapi.NewServer(webapi.Config{
		Version:      revision,
		ListenAddr:   opts.Server.Listen,
		Prayers:      prayers,
		Rejected:     rejected,
		Validator:    validator.New(filter, validator.Params{MinLength: opts.Filter.MinLength, MaxLength: opts.Filter.MaxLength}),
		Filter:       filter,
		Metrics:      metrics.New(func() int { return filter.CacheStats().Size }),
		RejectionLog: rejLog,
		AdminPasswd:  opts.Server.AdminPasswd,
		RateLimit:    opts.Server.RateLimit,
	})
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("webapi server failed: %w", err)
	}
	return nil
}

func makeFilter(opts options) *contentfilter.Filter {
	res := contentfilter.New(contentfilter.Config{
		Strictness:        opts.Filter.Strictness,
		NoSensitiveTopics: opts.Filter.NoSensitiveTopics,
		NoCache:           opts.Filter.NoCache,
		CacheLimit:        opts.Filter.CacheLimit,
		CacheEvict:        opts.Filter.CacheEvict,
	})
	log.Printf("[INFO] content filter %s, cache enabled: %v, limit %d", res.Strictness, !res.NoCache, res.CacheLimit)
	return res
}

// makeRejectionLogWriter creates a writer keeping json lines about rejected submissions,
// it parses options and makes lumberjack logger with rotation
func makeRejectionLogWriter(opts options) (io.WriteCloser, error) {
	if !opts.Logger.Enabled {
		return nopWriteCloser{io.Discard}, nil
	}

	maxSize, err := sizeParse(opts.Logger.MaxSize)
	if err != nil {
		return nil, fmt.Errorf("can't parse logger MaxSize: %w", err)
	}
	maxSize /= 1048576

	log.Printf("[INFO] rejection log enabled for %s, max size %dM", opts.Logger.FileName, maxSize)
	return &lumberjack.Logger{
		Filename:   opts.Logger.FileName,
		MaxSize:    int(maxSize), // in MB
		MaxBackups: opts.Logger.MaxBackups,
		Compress:   true,
		LocalTime:  true,
	}, nil
}

// sizeParse converts size with optional k/m/g/t suffix to bytes
func sizeParse(inp string) (uint64, error) {
	if inp == "" {
		return 0, errors.New("empty value")
	}
	for i, sfx := range []string{"k", "m", "g", "t"} {
		if strings.HasSuffix(strings.ToLower(inp), sfx) {
			val, err := strconv.Atoi(inp[:len(inp)-1])
			if err != nil {
				return 0, fmt.Errorf("can't parse %s: %w", inp, err)
			}
			return uint64(float64(val) * math.Pow(1024, float64(i+1))), nil
		}
	}
	return strconv.ParseUint(inp, 10, 64)
}

type nopWriteCloser struct{ io.Writer }

func (n nopWriteCloser) Close() error { return nil }

func setupLog(dbg bool, secrets ...string) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	var nonEmpty []string
	for _, s := range secrets {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	if len(nonEmpty) > 0 {
		logOpts = append(logOpts, lgr.Secret(nonEmpty...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
