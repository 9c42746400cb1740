// chordctl is the operator's window into a running ring: distributed
// lookups, ring inspection, driving joins and leaves, hop-counter
// benchmarking and dataset seeding.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/DmMeta/ChordSeek/internal/chord"
	"github.com/DmMeta/ChordSeek/internal/crawler"
	"github.com/DmMeta/ChordSeek/internal/logger"
	"github.com/DmMeta/ChordSeek/internal/ring"
	"github.com/DmMeta/ChordSeek/internal/seed"
	"github.com/DmMeta/ChordSeek/internal/transport"
)

var ftSize int

func main() {
	root := &cobra.Command{
		Use:           "chordctl",
		Short:         "Operate a ChordSeek ring",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().IntVar(&ftSize, "ft-size", 7, "identifier-space exponent m, shared by all peers")

	root.AddCommand(
		lookupCmd(),
		fingerTableCmd(),
		neighborCmd("successor"),
		neighborCmd("predecessor"),
		joinCmd(),
		leaveCmd(),
		clearHopsCmd(),
		seedCmd(),
		crawlCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newClient() *transport.Client {
	return transport.NewClient(logger.New(logger.Config{Level: "ERROR", Format: "TEXT"}))
}

func lookupCmd() *cobra.Command {
	var node, education string
	var awards int

	cmd := &cobra.Command{
		Use:   "lookup",
		Short: "Find the computer scientists of a university with a minimum number of awards",
		RunE: func(cmd *cobra.Command, args []string) error {
			if awards < 0 {
				return fmt.Errorf("awards must be a non-negative integer")
			}
			client := newClient()
			space := ring.New(ftSize)

			owner, err := client.FindSuccessor(cmd.Context(), node, space.ID(education))
			if err != nil {
				return err
			}
			records, err := client.GetData(cmd.Context(), owner.Addr, education, awards)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Printf("No records found for %s with at least %d awards.\n", education, awards)
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Surname", "Education", "Awards"})
			for _, r := range records {
				table.Append([]string{r.Surname, r.Education, strconv.Itoa(r.Awards)})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&node, "node", "", "address of any ring node")
	cmd.Flags().StringVar(&education, "education", "", "university to search for")
	cmd.Flags().IntVar(&awards, "awards", 0, "minimum number of awards")
	_ = cmd.MarkFlagRequired("node")
	_ = cmd.MarkFlagRequired("education")
	return cmd
}

func fingerTableCmd() *cobra.Command {
	var node string

	cmd := &cobra.Command{
		Use:   "finger-table",
		Short: "Print a node's finger table",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			fingers, err := client.GetFingerTable(cmd.Context(), node)
			if err != nil {
				return err
			}
			self := ring.New(ftSize).ID(node)

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Start", "Interval", "Node", "Node IP"})
			for i, f := range fingers {
				hi := self
				if i+1 < len(fingers) {
					hi = fingers[i+1].Start
				}
				table.Append([]string{
					strconv.FormatUint(f.Start, 10),
					fmt.Sprintf("[%d, %d)", f.Start, hi),
					strconv.FormatUint(f.Node, 10),
					f.Addr,
				})
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&node, "node", "", "address of the node to inspect")
	_ = cmd.MarkFlagRequired("node")
	return cmd
}

func neighborCmd(kind string) *cobra.Command {
	var node string

	cmd := &cobra.Command{
		Use:   kind,
		Short: fmt.Sprintf("Print a node's %s", kind),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()

			var ref chord.NodeRef
			var err error
			if kind == "successor" {
				ref, err = client.GetSuccessor(cmd.Context(), node)
			} else {
				ref, err = client.GetPredecessor(cmd.Context(), node)
			}
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Node", "Node IP", kind, kind + " IP"})
			table.Append([]string{
				strconv.FormatUint(ring.New(ftSize).ID(node), 10),
				node,
				strconv.FormatUint(ref.ID, 10),
				ref.Addr,
			})
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&node, "node", "", "address of the node to inspect")
	_ = cmd.MarkFlagRequired("node")
	return cmd
}

func joinCmd() *cobra.Command {
	var node, bootstrap string
	var initRing, transfer bool

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Drive a node's join against a bootstrap peer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !initRing && bootstrap == "" {
				return fmt.Errorf("--bootstrap is required unless --init is set")
			}
			client := newClient()
			hops, err := client.Join(cmd.Context(), node, bootstrap, initRing, transfer)
			if err != nil {
				return err
			}
			fmt.Printf("Node %s joined (num_hops=%d).\n", node, hops)
			return nil
		},
	}
	cmd.Flags().StringVar(&node, "node", "", "address of the joining node")
	cmd.Flags().StringVar(&bootstrap, "bootstrap", "", "address of any live ring node")
	cmd.Flags().BoolVar(&initRing, "init", false, "bootstrap a brand new ring")
	cmd.Flags().BoolVar(&transfer, "transfer", true, "pull owned records from the successor")
	_ = cmd.MarkFlagRequired("node")
	return cmd
}

func leaveCmd() *cobra.Command {
	var node string

	cmd := &cobra.Command{
		Use:   "leave",
		Short: "Drive a node's graceful leave",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()
			hops, err := client.Leave(cmd.Context(), node)
			if err != nil {
				return err
			}
			fmt.Printf("Node %s left (num_hops=%d).\n", node, hops)
			return nil
		},
	}
	cmd.Flags().StringVar(&node, "node", "", "address of the leaving node")
	_ = cmd.MarkFlagRequired("node")
	return cmd
}

func clearHopsCmd() *cobra.Command {
	var nodes []string

	cmd := &cobra.Command{
		Use:   "clear-hops",
		Short: "Collect and reset the hop counters of the given nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := newClient()

			var total int64
			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Node", "Hops"})
			for _, node := range nodes {
				hops, err := client.ClearHops(cmd.Context(), node)
				if err != nil {
					return err
				}
				total += hops
				table.Append([]string{node, strconv.FormatInt(hops, 10)})
			}
			table.Append([]string{"total", strconv.FormatInt(total, 10)})
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&nodes, "nodes", nil, "ring node addresses")
	_ = cmd.MarkFlagRequired("nodes")
	return cmd
}

func seedCmd() *cobra.Command {
	var file string
	var nodes []string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Distribute a crawled dataset across the ring",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := seed.Load(file)
			if err != nil {
				return err
			}

			lg := logger.New(logger.Config{Level: "INFO", Format: "TEXT"})
			seeder := seed.New(ring.New(ftSize), transport.NewClient(lg), lg)
			seeded, err := seeder.Run(cmd.Context(), ds, nodes)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d of %d university groups.\n", seeded, len(ds))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "scientists.json", "dataset file")
	cmd.Flags().StringSliceVar(&nodes, "nodes", nil, "ring node addresses")
	_ = cmd.MarkFlagRequired("nodes")
	return cmd
}

func crawlCmd() *cobra.Command {
	var out string
	var limit, workers int

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the Wikipedia computer-scientists dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			lg := logger.New(logger.Config{Level: "INFO", Format: "TEXT"})
			c := crawler.New(crawler.Config{
				ListURL:   "https://en.wikipedia.org/wiki/List_of_computer_scientists",
				BaseURL:   "https://en.wikipedia.org",
				UserAgent: "ChordSeek/1.0 (research crawler)",
				Workers:   workers,
				Limit:     limit,
			}, lg)

			ds, err := c.Run(cmd.Context())
			if err != nil {
				return err
			}

			raw, err := json.MarshalIndent(ds, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, raw, 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %d university groups to %s.\n", len(ds), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "scientists.json", "output file")
	cmd.Flags().IntVar(&limit, "limit", 0, "cap on scientists fetched (0 = all)")
	cmd.Flags().IntVar(&workers, "workers", 4, "concurrent page fetches")
	return cmd
}
