package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AntonStoeckl/movr-workload-go/config"
)

const (
	envPrefix = "MOVR"

	flagURL                  = "url"
	flagNumThreads           = "num-threads"
	flagReportInterval       = "report-interval"
	flagAdapter              = "adapter"
	flagLogLevel             = "log-level"
	flagEchoSQL              = "echo-sql"
	flagObservabilityEnabled = "observability-enabled"
	flagOTLPEndpoint         = "otlp-endpoint"
	flagGracePeriod          = "grace-period"
	flagSeed                 = "seed"

	defaultNumThreads     = 5
	defaultReportInterval = 5 * time.Second
	defaultGracePeriod    = 10 * time.Second
)

var (
	// errInvalidThreads is returned when fewer than one thread is requested.
	errInvalidThreads = errors.New("number of threads must be > 0")

	// errInvalidLogLevel is returned for log levels slog does not know.
	errInvalidLogLevel = errors.New("invalid log level")
)

type globalSettings struct {
	URL                  string
	Threads              int
	ReportInterval       time.Duration
	Adapter              config.Adapter
	LogLevel             slog.Level
	EchoSQL              bool
	ObservabilityEnabled bool
	OTLPEndpoint         string
	GracePeriod          time.Duration
	Seed                 int64
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:           "movr",
		Short:         "Generate MovR ride-sharing workload against a Postgres compatible database",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(v, cmd)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.String(flagURL, config.DefaultURL, "connection URL of the database")
	flags.Int(flagNumThreads, defaultNumThreads, "number of concurrent workers")
	flags.Duration(flagReportInterval, defaultReportInterval, "interval between latency reports, 0 disables them")
	flags.String(flagAdapter, string(config.AdapterPGX), "database adapter: pgx, sql or sqlx")
	flags.String(flagLogLevel, "info", "log level: debug, info, warn or error")
	flags.Bool(flagEchoSQL, false, "log every SQL statement")
	flags.Bool(flagObservabilityEnabled, false, "export traces and metrics via OTLP")
	flags.String(flagOTLPEndpoint, config.DefaultOTLPEndpoint, "OTLP gRPC endpoint")
	flags.Duration(flagGracePeriod, defaultGracePeriod, "time workers get to finish after a stop signal")
	flags.Int64(flagSeed, 0, "random seed, 0 picks one")

	cmd.AddCommand(
		newLoadCommand(v, stdout, stderr),
		newRunCommand(v, stdout, stderr),
	)

	return cmd
}

// bindFlags lets every flag be overridden by a MOVR_ prefixed environment variable, e.g. MOVR_NUM_THREADS.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return nil
}

func readGlobalSettings(v *viper.Viper) (globalSettings, error) {
	threads := v.GetInt(flagNumThreads)
	if threads < 1 {
		return globalSettings{}, errInvalidThreads
	}

	adapter, err := config.ParseAdapter(v.GetString(flagAdapter))
	if err != nil {
		return globalSettings{}, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString(flagLogLevel))); err != nil {
		return globalSettings{}, errors.Join(errInvalidLogLevel, fmt.Errorf("%q", v.GetString(flagLogLevel)))
	}

	return globalSettings{
		URL:                  v.GetString(flagURL),
		Threads:              threads,
		ReportInterval:       v.GetDuration(flagReportInterval),
		Adapter:              adapter,
		LogLevel:             level,
		EchoSQL:              v.GetBool(flagEchoSQL),
		ObservabilityEnabled: v.GetBool(flagObservabilityEnabled),
		OTLPEndpoint:         v.GetString(flagOTLPEndpoint),
		GracePeriod:          v.GetDuration(flagGracePeriod),
		Seed:                 v.GetInt64(flagSeed),
	}, nil
}
