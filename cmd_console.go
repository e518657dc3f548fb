package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Jon-Bright/estufa/command"
	"github.com/Jon-Bright/estufa/console"
	"github.com/Jon-Bright/estufa/mqtt"
	"github.com/Jon-Bright/estufa/ui"
	"github.com/spf13/cobra"
	"github.com/thlib/go-timezone-local/tzlocal"
)

type consoleFlags struct {
	commandTopic   string
	subscribeTopic string
	replyWait      time.Duration
	timezone       string
	httpListen     string
}

func defaultTimezone() string {
	tz, err := tzlocal.RuntimeTZ()
	if err != nil || tz == "" {
		return "Local"
	}
	return tz
}

func newConsoleCmd() (*cobra.Command, error) {
	var cf consoleFlags
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Send commands to the ESP32 over MQTT and show its replies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, &cf)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&cf.commandTopic, "command_topic", command.TOPIC_COMMANDS, "Topic commands are published to")
	fs.StringVar(&cf.subscribeTopic, "subscribe_topic", command.TOPIC_WILDCARD, "Topic filter whose messages are shown")
	fs.DurationVar(&cf.replyWait, "reply_wait", console.DEFAULT_REPLY_WAIT, "How long to wait for replies after each command")
	fs.StringVar(&cf.timezone, "timezone", defaultTimezone(), "Timezone for displaying device timestamps. Default is this machine's timezone.")
	fs.StringVar(&cf.httpListen, "http_listen", "", "Address for the web panel, e.g. :3000. Disabled if empty.")
	err := mqtt.InitFlags(fs)
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

func runConsole(cmd *cobra.Command, cf *consoleFlags) error {
	out := console.NewSyncWriter(cmd.OutOrStdout())
	loc, err := time.LoadLocation(cf.timezone)
	if err != nil {
		return fmt.Errorf("unable to load timezone '%s': %w", cf.timezone, err)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(out, "%s\n  ESP32 Smart Greenhouse - MQTT test client\n%s\n", ruler("="), ruler("="))
	mon := console.NewMonitor(out, log, loc)
	mq, err := mqtt.New(log, func(resumed bool) {
		if resumed {
			fmt.Fprintf(out, "\nConnection resumed\n")
		}
	}, func(err error) {
		fmt.Fprintf(out, "\nConnection interrupted: %v\n", err)
	})
	if err != nil {
		return fmt.Errorf("unable to initialize MQTT: %w", err)
	}

	fmt.Fprintf(out, "Connecting to %s...\n", mqtt.BrokerURL())
	err = mq.Connect(ctx)
	if errors.Is(err, context.Canceled) {
		return interrupted(out, mq)
	} else if err != nil {
		return fmt.Errorf("unable to connect MQTT: %w", err)
	}
	fmt.Fprintf(out, "Connected!\n")
	fmt.Fprintf(out, "Subscribing to '%s'...\n", cf.subscribeTopic)
	err = mq.Subscribe(ctx, cf.subscribeTopic, mon.Handle)
	if errors.Is(err, context.Canceled) {
		return interrupted(out, mq)
	} else if err != nil {
		mq.Disconnect(0)
		return err
	}
	fmt.Fprintf(out, "Subscribed!\n")

	cat := command.Default()
	sender := console.NewSender(mq, cf.commandTopic)
	if cf.httpListen != "" {
		addr, err := ui.Init(log, sender, mon, cat, cf.httpListen)
		if err != nil {
			mq.Disconnect(0)
			return err
		}
		fmt.Fprintf(out, "Web panel on http://%s/\n", addr)
	}

	c := console.New(console.Config{
		In:        cmd.InOrStdin(),
		Out:       out,
		Log:       log,
		Catalog:   cat,
		Sender:    sender,
		ReplyWait: cf.replyWait,
	})
	err = c.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return interrupted(out, mq)
	} else if err != nil {
		mq.Disconnect(250)
		return err
	}

	fmt.Fprintf(out, "\nDisconnecting...\n")
	mq.Disconnect(250)
	fmt.Fprintf(out, "Disconnected!\n")
	return nil
}

func interrupted(w io.Writer, mq *mqtt.MQTT) error {
	fmt.Fprintf(w, "\n\nInterrupted by user\n")
	log.Info.Printf("Interrupted by user")
	mq.Disconnect(250)
	return nil
}
