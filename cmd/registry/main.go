package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/srand/jolt/grid/pkg/log"
	"github.com/srand/jolt/grid/pkg/registry"
	"github.com/srand/jolt/grid/pkg/utils"
)

var config = &Config{}

var rootCmd = &cobra.Command{
	Use:   "registry",
	Short: "Grid file registry service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		viper.SetEnvPrefix("grid")
		viper.AutomaticEnv()

		viper.SetConfigName("registry.yaml")
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
		fs, err := utils.NewFs(config.Path)
		if err != nil {
			log.Fatal(err)
		}

		reg := registry.NewRegistry(fs)

		for _, path := range config.Files {
			id, err := reg.RegisterFile(path)
			if err != nil {
				log.Fatal(err)
			}
			log.Infof("Registered %s as %s", path, id)
		}

		for _, uri := range config.ListenGrpc {
			go serveGrpc(reg, &config.GRPCOptions, uri)
		}

		for _, uri := range config.ListenHttp {
			host, err := utils.ParseHttpUrl(uri)
			if err != nil {
				log.Fatal(err)
			}

			log.Info("Listening on http", host)

			r := utils.NewEcho()
			registry.NewHttpHandler(reg, r)

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
	rootCmd.Flags().StringSliceP("listen-grpc", "g", []string{"tcp://:9090"}, "Addresses to listen on for GRPC connections")
	rootCmd.Flags().StringP("path", "p", "/data", "Path to registered files on disk, or 'memory' for uploads only.")
	rootCmd.Flags().StringSliceP("file", "f", nil, "File or directory below the data path to register at startup (repeatable)")
	rootCmd.Flags().CountP("verbose", "v", "Verbosity (repeatable)")

	viper.BindPFlag("listen_grpc", rootCmd.Flags().Lookup("listen-grpc"))
	viper.BindPFlag("listen_http", rootCmd.Flags().Lookup("listen-http"))
	viper.BindPFlag("path", rootCmd.Flags().Lookup("path"))
	viper.BindPFlag("files", rootCmd.Flags().Lookup("file"))
	viper.BindPFlag("verbosity", rootCmd.Flags().Lookup("verbose"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
