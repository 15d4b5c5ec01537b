/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	libprm "github.com/sabouaram/webserv/file/perm"
	libcfg "github.com/sabouaram/webserv/internal/config"
	libhdl "github.com/sabouaram/webserv/internal/handler"
	libsrv "github.com/sabouaram/webserv/internal/server"
	libfds "github.com/sabouaram/webserv/ioutils/fileDescriptor"
	"github.com/sabouaram/webserv/logger"
	logcfg "github.com/sabouaram/webserv/logger/config"
	loglvl "github.com/sabouaram/webserv/logger/level"
)

const defaultConfigPath = "config/default.conf"

// defaultMaxOpenFiles is the RLIMIT_NOFILE ceiling requested at startup so
// the poll-based event loop isn't starved of descriptors under many
// concurrent connections; raising never lowers an existing higher limit.
const defaultMaxOpenFiles = 65536

func main() {
	os.Exit(run())
}

func run() int {
	var (
		logLevel       string
		logFile        string
		logSyslog      string
		logSyslogNet   string
		printLogConfig bool
		maxOpenFiles   int
	)

	flags := pflag.NewFlagSet("webserv", pflag.ContinueOnError)
	flags.StringVar(&logLevel, "log-level", "info", "minimum log level (debug|info|warning|error)")
	flags.StringVar(&logFile, "log-file", "", "optional path to also write logs to")
	flags.StringVar(&logSyslog, "log-syslog", "", "optional remote syslog address (host:port) to also write logs to")
	flags.StringVar(&logSyslogNet, "log-syslog-network", "udp", "network used to reach -log-syslog (tcp|udp)")
	flags.BoolVar(&printLogConfig, "print-log-config", false, "print the resolved log configuration and exit")
	flags.IntVar(&maxOpenFiles, "max-open-files", defaultMaxOpenFiles, "RLIMIT_NOFILE ceiling requested at startup")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return 1
	}

	configPath := defaultConfigPath
	if args := flags.Args(); len(args) > 0 {
		configPath = args[0]
	}

	log := logger.New(context.Background())
	log.SetLevel(loglvl.Parse(logLevel))

	opt := &logcfg.Options{
		Stdout: &logcfg.OptionsStd{EnableTrace: true},
	}

	if logFile != "" {
		opt.LogFile = logcfg.OptionsFiles{{
			LogLevel:   []string{logLevel},
			Filepath:   logFile,
			Create:     true,
			CreatePath: true,
			FileMode:   libprm.Perm(0o644),
			PathMode:   libprm.Perm(0o755),
		}}
	}

	if logSyslog != "" {
		opt.LogSyslog = logcfg.OptionsSyslogs{{
			LogLevel: []string{logLevel},
			Network:  logSyslogNet,
			Host:     logSyslog,
			Tag:      "webserv",
		}}
	}

	if printLogConfig {
		fmt.Printf("%+v\n", opt)
		return 0
	}

	if err := log.SetOptions(opt); err != nil {
		fmt.Fprintf(os.Stderr, "webserv: invalid log configuration: %v\n", err)
		return 1
	}

	if curFD, maxFD, err := libfds.SystemFileDescriptor(maxOpenFiles); err != nil {
		log.Warning("could not raise open-file limit", err)
	} else {
		log.Info("open-file limit", nil, "current", curFD, "max", maxFD)
	}

	cfg, err := libcfg.Load(configPath)
	if err != nil {
		log.Error("failed to load configuration", err)
		return 1
	}

	if err := libcfg.Validate(cfg); err != nil {
		log.Error("invalid configuration", err)
		return 1
	}

	loop, err := libsrv.New(cfg, libhdl.Handle, log)
	if err != nil {
		log.Error("failed to start listeners", err)
		return 1
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	signal.Ignore(syscall.SIGPIPE)

	go func() {
		<-sig
		loop.Stop()
	}()

	if err := loop.Run(); err != nil {
		log.Error("server exited with an error", err)
		return 1
	}

	return 0
}
