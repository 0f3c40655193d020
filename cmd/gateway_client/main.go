package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/ruteri/cas-gateway/api/clients"
	"github.com/urfave/cli/v2"
)

var flagServerAddr *cli.StringFlag = &cli.StringFlag{
	Name:    "server-addr",
	Value:   "http://127.0.0.1:8080",
	EnvVars: []string{"GATEWAY_ADDR"},
	Usage:   "Gateway server address to request",
}

var flagTimeout *cli.DurationFlag = &cli.DurationFlag{
	Name:  "timeout",
	Value: 0,
	Usage: "request timeout, 0 uses the client default",
}

func newClient(cCtx *cli.Context) *clients.GatewayClient {
	if timeout := cCtx.Duration(flagTimeout.Name); timeout > 0 {
		return clients.NewGatewayClient(cCtx.String(flagServerAddr.Name), timeout)
	}
	return clients.NewGatewayClient(cCtx.String(flagServerAddr.Name))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func requireArgs(cCtx *cli.Context, n int) error {
	if cCtx.NArg() < n {
		return fmt.Errorf("%s: expected at least %d argument(s), see --help", cCtx.Command.Name, n)
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "gateway client",
		Usage: "Store and retrieve content through a cas-gateway server",
		Flags: []cli.Flag{
			flagServerAddr,
			flagTimeout,
		},
		Commands: []*cli.Command{
			{
				Name:      "upload-file",
				Usage:     "Upload a file and print its address",
				ArgsUsage: "<path>",
				Action: func(cCtx *cli.Context) error {
					if err := requireArgs(cCtx, 1); err != nil {
						return err
					}
					path := cCtx.Args().First()
					data, err := os.ReadFile(path)
					if err != nil {
						return err
					}

					cid, err := newClient(cCtx).UploadFile(cCtx.Context, filepath.Base(path), data)
					if err != nil {
						return err
					}
					fmt.Println(cid)
					return nil
				},
			},
			{
				Name:      "upload-record",
				Usage:     "Upload a JSON record from a file (or - for stdin) and print its address",
				ArgsUsage: "<path|->",
				Action: func(cCtx *cli.Context) error {
					if err := requireArgs(cCtx, 1); err != nil {
						return err
					}

					var (
						data []byte
						err  error
					)
					if path := cCtx.Args().First(); path == "-" {
						data, err = io.ReadAll(os.Stdin)
					} else {
						data, err = os.ReadFile(path)
					}
					if err != nil {
						return err
					}
					if !json.Valid(data) {
						return fmt.Errorf("record is not valid JSON")
					}

					cid, err := newClient(cCtx).UploadRecord(cCtx.Context, data)
					if err != nil {
						return err
					}
					fmt.Println(cid)
					return nil
				},
			},
			{
				Name:      "get-file",
				Usage:     "Fetch a file and write it to stdout or --out",
				ArgsUsage: "<cid>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Usage: "write the file here instead of stdout"},
				},
				Action: func(cCtx *cli.Context) error {
					if err := requireArgs(cCtx, 1); err != nil {
						return err
					}
					data, err := newClient(cCtx).GetFile(cCtx.Context, cCtx.Args().First())
					if err != nil {
						return err
					}
					if out := cCtx.String("out"); out != "" {
						return os.WriteFile(out, data, 0o644)
					}
					_, err = os.Stdout.Write(data)
					return err
				},
			},
			{
				Name:      "get-record",
				Usage:     "Fetch a record and print it",
				ArgsUsage: "<cid>",
				Action: func(cCtx *cli.Context) error {
					if err := requireArgs(cCtx, 1); err != nil {
						return err
					}
					record, err := newClient(cCtx).GetRecord(cCtx.Context, cCtx.Args().First())
					if err != nil {
						return err
					}
					return printJSON(record)
				},
			},
			{
				Name:      "get-records",
				Usage:     "Fetch several records and print them in order",
				ArgsUsage: "<cid> [<cid>...]",
				Action: func(cCtx *cli.Context) error {
					if err := requireArgs(cCtx, 1); err != nil {
						return err
					}
					records, err := newClient(cCtx).GetRecords(cCtx.Context, cCtx.Args().Slice())
					if err != nil {
						return err
					}
					return printJSON(records)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
