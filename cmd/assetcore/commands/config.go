package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiwec/neosu-sub001/cvar"
)

// ConfigCmd inspects and edits the cvar registry this subsystem's
// subsystems are configured through.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "inspect and edit cvar configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "show every registered cvar and its effective value",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "show a single cvar's effective value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configLoadCmd = &cobra.Command{
	Use:   "load PATH",
	Short: "load client values from a config file",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigLoad,
}

func init() {
	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configGetCmd)
	ConfigCmd.AddCommand(configLoadCmd)
}

// defaultRegistry registers the cvars this subsystem's components read at
// runtime. Names mirror the directories they configure.
func defaultRegistry() *cvar.Registry {
	r := cvar.NewRegistry()
	r.Register("io.workers", cvar.KindInt, cvar.IntValue(4), cvar.FlagClientMutable)
	r.Register("resource.workers", cvar.KindInt, cvar.IntValue(4), cvar.FlagClientMutable)
	r.Register("cache.avatar.max_loaded", cvar.KindInt, cvar.IntValue(512), cvar.FlagClientMutable)
	r.Register("cache.thumbnail.max_loaded", cvar.KindInt, cvar.IntValue(256), cvar.FlagClientMutable)
	r.Register("cache.background.max_loaded", cvar.KindInt, cvar.IntValue(32), cvar.FlagClientMutable)
	r.Register("net.user_agent", cvar.KindString, cvar.StringValue("assetcore/1.0"), cvar.FlagClientMutable|cvar.FlagNoSave)
	return r
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	r := defaultRegistry()
	for _, name := range r.Names() {
		printCVar(r, name)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	r := defaultRegistry()
	name := args[0]
	if r.Get(name) == nil {
		return fmt.Errorf("no such cvar: %s", name)
	}
	printCVar(r, name)
	return nil
}

func runConfigLoad(cmd *cobra.Command, args []string) error {
	r := defaultRegistry()
	if err := runConfigLoadInto(r, args[0]); err != nil {
		return err
	}
	for _, name := range r.Names() {
		printCVar(r, name)
	}
	return nil
}

// runConfigLoadInto applies path's contents onto r, split out from
// runConfigLoad so it can be exercised directly in tests without a cobra
// command.
func runConfigLoadInto(r *cvar.Registry, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := r.LoadFromViper(v); err != nil {
		return fmt.Errorf("applying config file: %w", err)
	}
	return nil
}

func printCVar(r *cvar.Registry, name string) {
	cv := r.Get(name)
	v := cv.Effective()
	switch v.Kind {
	case cvar.KindBool:
		fmt.Printf("%s = %v\n", name, v.Bool)
	case cvar.KindInt:
		fmt.Printf("%s = %d\n", name, v.Int)
	case cvar.KindFloat:
		fmt.Printf("%s = %g\n", name, v.Float)
	case cvar.KindString:
		fmt.Printf("%s = %q\n", name, v.String)
	}
}
