package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/srand/jolt/grid/pkg/identity"
	"github.com/srand/jolt/grid/pkg/log"
	"github.com/srand/jolt/grid/pkg/pool"
)

var selectCmd = &cobra.Command{
	Use:   "select <key>=<value>|<key>~<pattern>...",
	Short: "Lease a worker token matching the interests",
	Run: func(cmd *cobra.Command, args []string) {
		interests, err := identity.ParseInterests(args)
		if err != nil {
			log.Fatal(err)
		}

		matchTimeout, _ := cmd.Flags().GetDuration("match-timeout")
		noMatchTimeout, _ := cmd.Flags().GetDuration("no-match-timeout")

		request := pool.SelectRequest{Interests: interests}
		if matchTimeout > 0 {
			request.MatchTimeout = matchTimeout.String()
		}
		if noMatchTimeout > 0 {
			request.NoMatchTimeout = noMatchTimeout.String()
		}

		ctx, cancel := DefaultDeadlineContext()
		defer cancel()

		info, err := NewDispatcherClient().Select(ctx, request)
		if err != nil {
			log.Fatal(err)
		}

		fmt.Println(info.Id)

		keys := make([]string, 0, len(info.Attributes))
		for key := range info.Attributes {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Printf("  Identity: %s\n", info.Identity)
		for _, key := range keys {
			fmt.Printf("    %s: %s\n", key, info.Attributes[key])
		}
	},
}

var returnCmd = &cobra.Command{
	Use:   "return <token>...",
	Short: "Return leased worker tokens",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := DefaultDeadlineContext()
		defer cancel()

		client := NewDispatcherClient()
		for _, id := range args {
			if err := client.Return(ctx, id); err != nil {
				log.Fatal(err)
			}
		}
	},
}

var capacityCmd = &cobra.Command{
	Use:   "capacity [<key>...]",
	Short: "Show worker usage and capacity grouped by attribute keys",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := DefaultDeadlineContext()
		defer cancel()

		groups, err := NewDispatcherClient().Capacity(ctx, args...)
		if err != nil {
			log.Fatal(err)
		}

		for _, group := range groups {
			values := make([]string, 0, len(args))
			for _, key := range args {
				values = append(values, fmt.Sprintf("%s=%s", key, group.Key[key]))
			}

			label := strings.Join(values, " ")
			if label == "" {
				label = "*"
			}

			fmt.Printf("%4d / %-4d %s\n", group.Usage, group.Capacity, label)
		}
	},
}

func init() {
	selectCmd.Flags().Duration("match-timeout", 0, "Time to wait for a busy matching worker")
	selectCmd.Flags().Duration("no-match-timeout", 0, "Time to wait when no worker can match")

	rootCmd.AddCommand(selectCmd)
	rootCmd.AddCommand(returnCmd)
	rootCmd.AddCommand(capacityCmd)
}
