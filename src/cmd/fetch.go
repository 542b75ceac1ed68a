package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/evmarchive/archiver/src/fetch"

	"github.com/spf13/cobra"
)

var (
	fetchInputFile string
	fetchForce     bool
	fetchDryRun    bool
	fetchStrict    bool
)

func init() {
	fetchCmd.Flags().StringVar(&fetchInputFile, "input", "", "file with one chain:address per line")
	fetchCmd.Flags().BoolVar(&fetchForce, "force", false, "re-fetch even when the provenance record is fresh")
	fetchCmd.Flags().BoolVar(&fetchDryRun, "dry-run", false, "fetch but don't write anything")
	fetchCmd.Flags().BoolVar(&fetchStrict, "strict", false, "abort the run on the first failed contract")
	RootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [chain:address ...]",
	Short: "Archive the given contracts with their metadata, ABI and sources",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		refs, err := parseRefs(args, fetchInputFile)
		if err != nil {
			return
		}
		if len(refs) == 0 {
			return errors.New("nothing to fetch, pass chain:address arguments or --input")
		}

		if fetchForce {
			conf.Fetcher.Force = true
		}
		if fetchDryRun {
			conf.Fetcher.DryRun = true
		}
		if fetchStrict {
			conf.Fetcher.Strict = true
		}

		controller, err := fetch.NewController(conf, refs)
		if err != nil {
			return
		}

		err = controller.Start()
		if err != nil {
			return
		}

		finished := make(chan struct{})
		go func() {
			controller.WaitFinished()
			close(finished)
		}()

		select {
		case <-finished:
		case <-ctx.Done():
		}

		controller.StopWait()

		return controller.Archiver.RunError()
	},
}

func parseRefs(args []string, inputFile string) (refs []fetch.ContractRef, err error) {
	for _, arg := range args {
		ref, err := parseRef(arg)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	if inputFile == "" {
		return
	}

	file, err := os.Open(inputFile)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ref, err := parseRef(line)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	err = scanner.Err()
	return
}

func parseRef(s string) (ref fetch.ContractRef, err error) {
	chainName, address, found := strings.Cut(s, ":")
	if !found || chainName == "" || address == "" {
		err = fmt.Errorf("malformed contract reference %q, expected chain:address", s)
		return
	}
	ref = fetch.ContractRef{ChainName: chainName, Address: address}
	return
}
