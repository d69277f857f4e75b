package cmd

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	viper.AutomaticEnv()
}

// FlagBuilder chains persistent flag definitions onto one or more commands.
//
// Each flag is started with a typed method and may then be bound to viper,
// an environment variable, and marked as required:
//
//	NewFlagBuilder(c).Flag().String("database-url", "", "...").Env("DATABASE_URL").Bind("database-url").Require()
type FlagBuilder struct {
	commands []*cobra.Command
	key      string
}

// NewFlagBuilder creates a new FlagBuilder for command.
func NewFlagBuilder(command *cobra.Command) *FlagBuilder {
	fb := &FlagBuilder{}
	if command != nil {
		fb.AddCommand(command)
	}

	return fb
}

// AddCommand adds a command the flags are attached to.
func (fb *FlagBuilder) AddCommand(command *cobra.Command) *FlagBuilder {
	fb.commands = append(fb.commands, command)
	return fb
}

// Flag resets the builder so the next flag can be defined.
func (fb *FlagBuilder) Flag() *FlagBuilder {
	fb.key = ""
	return fb
}

func (fb *FlagBuilder) setKey(key string) *FlagBuilder {
	if fb.key != "" {
		Must(fmt.Errorf("flag '%s' is still being defined, call Flag() before defining '%s'", fb.key, key))
	}

	fb.key = key

	return fb
}

// String attaches a string flag.
func (fb *FlagBuilder) String(key, defaultValue, description string) *FlagBuilder {
	return fb.setKey(key).each(func(c *cobra.Command) {
		c.PersistentFlags().String(key, defaultValue, description)
	})
}

// StringSlice attaches a comma separated string slice flag.
func (fb *FlagBuilder) StringSlice(key string, defaultValue []string, description string) *FlagBuilder {
	return fb.setKey(key).each(func(c *cobra.Command) {
		c.PersistentFlags().StringSlice(key, defaultValue, description)
	})
}

// Bool attaches a bool flag.
func (fb *FlagBuilder) Bool(key string, defaultValue bool, description string) *FlagBuilder {
	return fb.setKey(key).each(func(c *cobra.Command) {
		c.PersistentFlags().Bool(key, defaultValue, description)
	})
}

// Int attaches an int flag.
func (fb *FlagBuilder) Int(key string, defaultValue int, description string) *FlagBuilder {
	return fb.setKey(key).each(func(c *cobra.Command) {
		c.PersistentFlags().Int(key, defaultValue, description)
	})
}

// Int64 attaches an int64 flag.
func (fb *FlagBuilder) Int64(key string, defaultValue int64, description string) *FlagBuilder {
	return fb.setKey(key).each(func(c *cobra.Command) {
		c.PersistentFlags().Int64(key, defaultValue, description)
	})
}

// Duration attaches a duration flag.
func (fb *FlagBuilder) Duration(key string, defaultValue time.Duration, description string) *FlagBuilder {
	return fb.setKey(key).each(func(c *cobra.Command) {
		c.PersistentFlags().Duration(key, defaultValue, description)
	})
}

// Bind binds the current flag to the viper key.
func (fb *FlagBuilder) Bind(key string) *FlagBuilder {
	return fb.each(func(c *cobra.Command) {
		Must(viper.BindPFlag(key, c.PersistentFlags().Lookup(fb.key)))
	})
}

// Env binds the current flag to an environment variable.
func (fb *FlagBuilder) Env(env string) *FlagBuilder {
	Must(viper.BindEnv(fb.key, env))
	return fb
}

// Require marks the current flag as required.
func (fb *FlagBuilder) Require() *FlagBuilder {
	return fb.each(func(c *cobra.Command) {
		Must(c.MarkPersistentFlagRequired(fb.key))
	})
}

func (fb *FlagBuilder) each(fn func(*cobra.Command)) *FlagBuilder {
	for _, c := range fb.commands {
		fn(c)
	}

	return fb
}

// Must exits the process when err is not nil.
func Must(err error) {
	if err != nil {
		log.Printf("failed to initialize: %s\n", err.Error())
		os.Exit(1)
	}
}
