package config

import (
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable read by viper,
// e.g. QUANTCYCLE_VERBOSE.
const EnvPrefix = "QUANTCYCLE"

type Config struct {
	ConfigFile string `mapstructure:"config"`
	Verbose    bool   `mapstructure:"verbose"`
	Input      string `mapstructure:"input"`
	Output     string `mapstructure:"output"`
	LogLevel   string `mapstructure:"log_level"`
	LogFormat  string `mapstructure:"log_format"`
}

// looseBool treats any value other than "false" as true.
type looseBool bool

var _ pflag.Value = (*looseBool)(nil)

func (b *looseBool) Set(s string) error {
	*b = looseBool(s != "false")
	return nil
}

func (b *looseBool) String() string {
	if *b {
		return "true"
	}
	return "false"
}

func (b *looseBool) Type() string { return "bool" }

func setupFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.PersistentFlags()

	flags.String("config", "", "YAML config file path")

	verbose := new(looseBool)
	flags.VarP(verbose, "verbose", "v", "Verbose output")
	flags.Lookup("verbose").NoOptDefVal = "true"
	flags.StringP("input", "i", "", "Input path")
	flags.StringP("output", "o", "", "Output path")
	flags.String("log_level", "INFO", "Log level")
	flags.String("log_format", "text", "Log format (text or json)")

	if err := v.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("failed to bind flags: %v", err))
	}

	// unrecognised flags are dropped, not rejected
	cmd.FParseErrWhitelist = cobra.FParseErrWhitelist{UnknownFlags: true}
}

// stringFlags maps the short and long spellings of value-taking path flags
// to their long name.
var stringFlags = map[string]string{
	"-i": "input", "--input": "input",
	"-o": "output", "--output": "output",
}

// normalizeArgs rewrites args so that a path flag never swallows a
// following flag and a trailing path flag gets an empty value instead of
// a parse error. "--verbose false" becomes "--verbose=false".
func normalizeArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			out = append(out, args[i:]...)
			break
		}
		hasValue := i+1 < len(args) && !strings.HasPrefix(args[i+1], "-")

		if name, ok := stringFlags[arg]; ok {
			if !hasValue {
				arg = "--" + name + "="
			}
			out = append(out, arg)
			continue
		}

		// short clusters such as -vi: the trailing letter takes the value
		if cluster, ok := shortCluster(arg); ok && !hasValue {
			last := cluster[len(cluster)-1:]
			if name, ok := stringFlags["-"+last]; ok {
				out = append(out, "-"+cluster[:len(cluster)-1], "--"+name+"=")
				continue
			}
		}

		if (arg == "-v" || arg == "--verbose") && i+1 < len(args) &&
			(args[i+1] == "true" || args[i+1] == "false") {
			out = append(out, "--verbose="+args[i+1])
			i++
			continue
		}

		out = append(out, arg)
	}
	return out
}

// shortCluster reports the letters of a combined short flag like -vi, where
// every letter before the last is the boolean -v.
func shortCluster(arg string) (string, bool) {
	if len(arg) < 3 || arg[0] != '-' || arg[1] == '-' {
		return "", false
	}
	letters := arg[1:]
	if strings.Trim(letters[:len(letters)-1], "v") != "" {
		return "", false
	}
	return letters, true
}

func setupConfig(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	v.SetTypeByDefaultValue(true)
}

func loadConfigFile(v *viper.Viper) error {
	cfgFile := v.GetString("config")
	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", cfgFile, err)
	}
	return nil
}

// Log writes every resolved value at debug level, keyed by the
// environment variable that would set it.
func (c Config) Log(logger *slog.Logger) {
	v := reflect.ValueOf(c)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		key := EnvPrefix + "_" + strings.ToUpper(t.Field(i).Tag.Get("mapstructure"))
		logger.Debug("config value", key, v.Field(i).Interface())
	}
}

// NewCommand returns the root command bound to args. Flags, QUANTCYCLE_*
// environment variables and an optional YAML file are merged into a Config
// which is handed to runFn.
func NewCommand(runFn func(Config) error, args []string) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "quantcycle",
		Short: "Run the QuantCycle application",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return loadConfigFile(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg Config
			if err := v.Unmarshal(&cfg); err != nil {
				return fmt.Errorf("unmarshal config: %w", err)
			}
			return runFn(cfg)
		},
	}

	setupFlags(cmd, v)
	setupConfig(v)
	cmd.SetArgs(normalizeArgs(args))

	return cmd
}
