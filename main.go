package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/Jon-Bright/estufa/logs"
	"github.com/Jon-Bright/estufa/plant"
	"github.com/spf13/cobra"
)

var log *logs.Loggers

func ruler(c string) string {
	return strings.Repeat(c, plant.RULER_WIDTH)
}

func newRootCmd() (*cobra.Command, error) {
	var logName string
	root := &cobra.Command{
		Use:          "estufa",
		Short:        "Test tools for the ESP32 smart greenhouse",
		Long:         "estufa builds plant configurations for the ESP32 greenhouse controller and sends it commands over MQTT.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = logs.New(logName)
			log.Info.Printf("Starting %s", cmd.CommandPath())
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&logName, "logfile", "estufa.log", "Name of the log file to use, empty for stderr")

	cfg, err := newConfigCmd()
	if err != nil {
		return nil, err
	}
	con, err := newConsoleCmd()
	if err != nil {
		return nil, err
	}
	root.AddCommand(cfg, con)
	return root, nil
}

func main() {
	root, err := newRootCmd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	err = root.Execute()
	if err != nil {
		os.Exit(1)
	}
}
