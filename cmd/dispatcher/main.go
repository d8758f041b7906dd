package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/srand/jolt/grid/pkg/identity"
	"github.com/srand/jolt/grid/pkg/log"
	"github.com/srand/jolt/grid/pkg/pool"
	"github.com/srand/jolt/grid/pkg/utils"
)

var config = &Config{}

var rootCmd = &cobra.Command{
	Use:   "dispatcher",
	Short: "Grid worker token dispatcher service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		viper.SetEnvPrefix("grid")
		viper.AutomaticEnv()

		viper.SetConfigName("dispatcher.yaml")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/grid/")
		viper.AddConfigPath("$HOME/.config/grid")
		viper.AddConfigPath(".")

		if err := viper.ReadInConfig(); err != nil {
			log.Debug(err)
		}

		if err := utils.UnmarshalConfig(viper.GetViper(), config); err != nil {
			log.Fatal(err)
		}

		log.SetVerbosity(config.Verbosity)
		config.Log()
	},
	Run: func(cmd *cobra.Command, args []string) {
		tokens := pool.NewPool()

		for _, worker := range config.Workers {
			identities, err := worker.Identities()
			if err != nil {
				log.Fatal(err)
			}
			for _, id := range identities {
				tokens.Register(id)
			}
		}

		if config.LocalWorker {
			hostname, err := os.Hostname()
			if err != nil {
				log.Fatal(err)
			}

			local, err := identity.LoadConfig(viper.GetViper(), hostname)
			if err != nil {
				log.Fatal(err)
			}
			tokens.Register(local)
		}

		if tokens.Len() == 0 {
			log.Warn("No workers configured")
		}

		metrics := prometheus.NewRegistry()
		metrics.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			pool.NewCapacityCollector(tokens, config.CapacityGroups...),
		)

		defaults := pool.SelectDefaults{
			MatchTimeout:   config.MatchTimeout,
			NoMatchTimeout: config.NoMatchTimeout,
		}

		for _, uri := range config.ListenHttp {
			host, err := utils.ParseHttpUrl(uri)
			if err != nil {
				log.Fatal(err)
			}

			log.Info("Listening on http", host)

			r := utils.NewEcho()
			r.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})))
			pool.NewHttpHandler(tokens, defaults, r)

			go func() {
				if err := http.ListenAndServe(host, r); err != nil {
					log.Fatal(err)
				}
			}()
		}

		select {}
	},
}

func init() {
	rootCmd.Flags().StringSliceP("listen-http", "l", []string{"tcp://:8080"}, "Addresses to listen on for HTTP connections")
	rootCmd.Flags().Duration("match-timeout", 0, "Default time to wait for a busy matching worker (default 1h)")
	rootCmd.Flags().Duration("no-match-timeout", 0, "Default time to wait when no worker can match (default 30s)")
	rootCmd.Flags().StringSliceP("group", "G", nil, "Attribute keys used to group capacity metrics")
	rootCmd.Flags().Bool("local-worker", false, "Register the local node as a worker")
	rootCmd.Flags().StringSliceP("attribute", "a", nil, "Attribute of the local worker, key=value (repeatable)")
	rootCmd.Flags().CountP("verbose", "v", "Verbosity (repeatable)")

	viper.SetDefault("match_timeout", "1h")
	viper.SetDefault("no_match_timeout", "30s")

	viper.BindPFlag("listen_http", rootCmd.Flags().Lookup("listen-http"))
	viper.BindPFlag("match_timeout", rootCmd.Flags().Lookup("match-timeout"))
	viper.BindPFlag("no_match_timeout", rootCmd.Flags().Lookup("no-match-timeout"))
	viper.BindPFlag("capacity_groups", rootCmd.Flags().Lookup("group"))
	viper.BindPFlag("local_worker", rootCmd.Flags().Lookup("local-worker"))
	viper.BindPFlag("attributes", rootCmd.Flags().Lookup("attribute"))
	viper.BindPFlag("verbosity", rootCmd.Flags().Lookup("verbose"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
