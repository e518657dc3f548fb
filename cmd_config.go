package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Jon-Bright/estufa/command"
	"github.com/Jon-Bright/estufa/mqtt"
	"github.com/Jon-Bright/estufa/plant"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const configExamples = `  # Configure for growing tomatoes
  estufa config --config tomate

  # Configure for lettuce
  estufa config --config alface

  # Only change the irrigation threshold
  estufa config --threshold 30

  # Disable automatic irrigation
  estufa config --disable-auto

  # Enable automatic irrigation
  estufa config --enable-auto

  # Custom configuration
  estufa config --custom my_config.json

  # List available plants
  estufa config --list`

type configFlags struct {
	profile     string
	threshold   int
	enableAuto  bool
	disableAuto bool
	custom      string
	list        bool
	output      string
	profiles    string
	topic       string
	publish     bool
}

func newConfigCmd() (*cobra.Command, error) {
	var cf configFlags
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Generate a plant configuration for the irrigation system",
		Example: configExamples,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig(cmd, &cf)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&cf.profile, "config", "c", "", "Predefined plant type ("+strings.Join(plant.Names(), ", ")+")")
	fs.IntVarP(&cf.threshold, "threshold", "t", 0, "Irrigation threshold (percentage below ideal)")
	fs.BoolVar(&cf.enableAuto, "enable-auto", false, "Enable automatic irrigation")
	fs.BoolVar(&cf.disableAuto, "disable-auto", false, "Disable automatic irrigation")
	fs.StringVar(&cf.custom, "custom", "", "JSON file with a custom configuration, merged over the plant type")
	fs.BoolVarP(&cf.list, "list", "l", false, "List available plants")
	fs.StringVarP(&cf.output, "output", "o", "", "Also save the JSON to this file")
	fs.StringVar(&cf.profiles, "profiles", "", "JSON file with additional or replacement plant types")
	fs.StringVar(&cf.topic, "topic", command.TOPIC_CONFIG, "Topic the configuration is published to")
	fs.BoolVar(&cf.publish, "publish", false, "Publish the configuration to the broker")
	err := mqtt.InitFlags(fs)
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// anyLocalFlag reports whether a flag of cmd's own was given. Inherited
// flags like --logfile don't count.
func anyLocalFlag(cmd *cobra.Command) bool {
	set := false
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if cmd.InheritedFlags().Lookup(f.Name) == nil {
			set = true
		}
	})
	return set
}

// capitalize upper-cases the first rune of s.
func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

func listProfiles(w io.Writer) error {
	fmt.Fprintf(w, "\nAvailable plants:\n")
	for _, n := range plant.Names() {
		p, err := plant.Get(n)
		if err != nil {
			return err
		}
		plant.PrintSummary(w, capitalize(n), &p.Config)
	}
	return nil
}

func publishConfig(ctx context.Context, w io.Writer, topic string, cfg *plant.Config) error {
	payload, err := cfg.Marshal()
	if err != nil {
		return err
	}
	mq, err := mqtt.New(log, nil, nil)
	if err != nil {
		return fmt.Errorf("unable to initialize MQTT: %w", err)
	}
	err = mq.Connect(ctx)
	if err != nil {
		return fmt.Errorf("unable to connect MQTT: %w", err)
	}
	defer mq.Disconnect(250)
	err = mq.Publish(topic, payload)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nPublished to '%s' on %s\n", topic, mqtt.BrokerURL())
	return nil
}

func runConfig(cmd *cobra.Command, cf *configFlags) error {
	w := cmd.OutOrStdout()
	if !anyLocalFlag(cmd) {
		return cmd.Help()
	}
	if cf.profiles != "" {
		err := plant.LoadProfiles(cf.profiles)
		if err != nil {
			return err
		}
		log.Info.Printf("Loaded profiles from %s", cf.profiles)
	}
	if cf.list {
		return listProfiles(w)
	}

	o := plant.Options{
		Profile:      cf.profile,
		OverrideFile: cf.custom,
		EnableAuto:   cf.enableAuto,
		DisableAuto:  cf.disableAuto,
	}
	if cmd.Flags().Changed("threshold") {
		o.Threshold = &cf.threshold
	}
	b, err := plant.Build(o)
	if err != nil {
		return err
	}
	for _, n := range b.Notes() {
		fmt.Fprintf(w, "\n%s\n", n)
	}
	cfg, err := b.Config()
	if errors.Is(err, plant.ErrEmptyConfig) {
		fmt.Fprintf(w, "\nNo configuration specified. Use --help to see the options.\n")
		return nil
	} else if err != nil {
		return err
	}

	plant.PrintSummary(w, "Generated configuration", cfg)
	js, err := cfg.MarshalIndent()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nJSON to publish over MQTT:\n%s\n%s\n%s\n", ruler("-"), js, ruler("-"))

	fmt.Fprintf(w, "\nHow to use it in AWS IoT Core:\n")
	fmt.Fprintf(w, "   1. Open: AWS IoT Console -> Test -> MQTT test client\n")
	fmt.Fprintf(w, "   2. Topic: %s\n", cf.topic)
	fmt.Fprintf(w, "   3. Paste the JSON above\n")
	fmt.Fprintf(w, "   4. Click 'Publish'\n")

	if cf.output != "" {
		err = os.WriteFile(cf.output, js, 0644)
		if err != nil {
			return fmt.Errorf("error saving file: %w", err)
		}
		fmt.Fprintf(w, "\nConfiguration saved to: %s\n", cf.output)
	}
	if cf.publish {
		err = publishConfig(cmd.Context(), w, cf.topic, cfg)
		if err != nil {
			return err
		}
	}

	compact, err := cfg.Marshal()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTo copy it easily, use:\n")
	fmt.Fprintf(w, "   echo '%s' | xclip -selection clipboard\n\n", compact)
	log.Info.Printf("Generated configuration %s", compact)
	return nil
}
