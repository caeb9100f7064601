package main

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/screenguard/internal/config"
	"github.com/spf13/cobra"
)

var validateDump bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration file",
	Long: `Load the configuration the way serve would, report keys ScreenGuard does
not recognise, and optionally print every effective setting.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Print every effective setting, marking those changed from the defaults")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	cfg, err := config.Load(configPath)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "✗ %s: %v\n", configPath, err)
		return err
	}

	unknown, err := config.UnknownKeys(configPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintf(errOut, "could not scan for unknown keys: %v\n", err)
	}

	_, _ = fmt.Fprintf(out, "✓ %s (storage: %s)\n", configPath, cfg.Storage.Type)

	if len(unknown) > 0 {
		warn := color.New(color.FgRed, color.Bold)
		_, _ = warn.Fprintf(out, "\n%d unrecognised key(s), ignored:\n", len(unknown))
		for _, key := range unknown {
			_, _ = warn.Fprintf(out, "  %s\n", key)
		}
	}

	if validateDump {
		rule := strings.Repeat("-", 72)
		_, _ = fmt.Fprintf(out, "\n%s\neffective configuration (changed values in yellow)\n%s\n", rule, rule)
		dumpConfig(cfg, config.Defaults())
	}

	return nil
}

// dumpConfig prints every section, highlighting values that differ from defaults.
func dumpConfig(cfg, defaults *config.Config) {
	cyan := color.New(color.FgCyan, color.Bold)
	actual := reflect.ValueOf(*cfg)
	def := reflect.ValueOf(*defaults)

	for i := 0; i < actual.NumField(); i++ {
		section := actual.Type().Field(i)
		_, _ = cyan.Printf("\n[%s]\n", section.Tag.Get("mapstructure"))
		dumpSection("  ", actual.Field(i), def.Field(i))
	}
	fmt.Println()
}

func dumpSection(indent string, actual, def reflect.Value) {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen)

	for i := 0; i < actual.NumField(); i++ {
		field := actual.Type().Field(i)
		name := field.Tag.Get("mapstructure")
		value := actual.Field(i)

		if value.Kind() == reflect.Struct {
			fmt.Printf("%s%s:\n", indent, name)
			dumpSection(indent+"  ", value, def.Field(i))
			continue
		}

		shown := value.Interface()
		if isSecret(name) && !value.IsZero() {
			shown = "********"
		}
		if reflect.DeepEqual(value.Interface(), def.Field(i).Interface()) {
			_, _ = green.Printf("%s%s = %v\n", indent, name, shown)
		} else {
			_, _ = yellow.Printf("%s%s = %v (default: %v)\n", indent, name, shown, def.Field(i).Interface())
		}
	}
}

func isSecret(key string) bool {
	return key == "token" || key == "password"
}
