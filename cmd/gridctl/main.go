package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/srand/jolt/grid/pkg/log"
	"github.com/srand/jolt/grid/pkg/utils"
)

var configData = ControlConfig{}

var rootCmd = &cobra.Command{
	Use:   "gridctl",
	Short: "Grid control command",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		viper.SetConfigName("gridctl.yaml")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/grid/")
		viper.AddConfigPath("$HOME/.config/grid")
		viper.AddConfigPath(".")
		viper.ReadInConfig()

		viper.SetEnvPrefix("grid")
		viper.AutomaticEnv()

		if err := utils.UnmarshalConfig(viper.GetViper(), &configData); err != nil {
			log.Fatal(err)
		}

		log.SetVerbosity(configData.Verbosity)
	},
}

func main() {
	rootCmd.PersistentFlags().StringP("dispatcher-uri", "d", "http://dispatcher:8080", "Dispatcher HTTP URI")
	rootCmd.PersistentFlags().StringP("registry-uri", "r", "http://registry:8080", "Registry HTTP URI")
	rootCmd.PersistentFlags().StringP("registry-grpc-uri", "g", "", "Registry gRPC URI, e.g. tcp://registry:9090")
	rootCmd.PersistentFlags().StringP("cache-dir", "c", ".grid", "Directory where fetched files are stored")
	rootCmd.PersistentFlags().DurationP("timeout", "t", 0, "Request deadline (default 30s)")
	rootCmd.PersistentFlags().CountP("verbose", "v", "Verbosity (repeatable)")

	viper.SetDefault("timeout", "30s")

	viper.BindPFlag("dispatcher_uri", rootCmd.PersistentFlags().Lookup("dispatcher-uri"))
	viper.BindPFlag("registry_uri", rootCmd.PersistentFlags().Lookup("registry-uri"))
	viper.BindPFlag("registry_grpc_uri", rootCmd.PersistentFlags().Lookup("registry-grpc-uri"))
	viper.BindPFlag("cache_dir", rootCmd.PersistentFlags().Lookup("cache-dir"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("verbosity", rootCmd.PersistentFlags().Lookup("verbose"))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
