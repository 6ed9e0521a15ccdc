package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/innovites/cableaudit/internal/bootstrap"
	"github.com/innovites/cableaudit/internal/core"
	"github.com/innovites/cableaudit/internal/data/referencedata"
	"github.com/innovites/cableaudit/internal/domain/model"
	"github.com/innovites/cableaudit/internal/pipeline"
)

func (a *app) seedReferenceCommand() *cobra.Command {
	var (
		file  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "seed-reference",
		Short: "Load the conductor and insulation reference tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := connectDB(a.logger, &a.cfg)
			if err != nil {
				return err
			}
			defer closeQuietly(a.logger, "database", db)

			redisClient, err := maybeConnectRedis(a.logger, &a.cfg.Redis)
			if err != nil {
				return err
			}
			defer closeQuietly(a.logger, "redis", redisClient)

			store, err := bootstrap.NewReferenceStore(db, redisClient, a.cfg.Reference, a.logger)
			if err != nil {
				return err
			}
			if file == "" {
				file = a.cfg.Reference.SeedFile
			}
			seeded, err := bootstrap.SeedReference(cmd.Context(), store, bootstrap.SeedOptions{
				File:   file,
				Force:  force,
				Logger: a.logger,
			})
			if err != nil {
				return err
			}
			if !seeded {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "reference tables already populated; use --force to replace")
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "reference tables replaced")
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML dataset to load instead of the embedded one")
	cmd.Flags().BoolVar(&force, "force", false, "replace the tables even when they already hold rows")
	return cmd
}

// inputFlags are shared by the commands that take a design description.
type inputFlags struct {
	mode string
	text string
	file string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.mode, "mode", string(model.InputModeFreeText), "input mode: free_text or structured")
	cmd.Flags().StringVar(&f.text, "text", "", "free-text design description")
	cmd.Flags().StringVar(&f.file, "file", "", "read the description or structured JSON from a file (- for stdin)")
	cmd.MarkFlagsMutuallyExclusive("text", "file")
}

// request builds a submission from the flags. Free text is wrapped as {"description": ...};
// structured input is passed through as-is.
func (f *inputFlags) request(stdin io.Reader) (*model.SubmitRequest, error) {
	var mode model.InputMode
	if err := mode.UnmarshalText([]byte(f.mode)); err != nil {
		return nil, err
	}

	var raw []byte
	switch {
	case f.text != "":
		raw = []byte(f.text)
	case f.file == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = b
	case f.file != "":
		b, err := os.ReadFile(f.file)
		if err != nil {
			return nil, fmt.Errorf("read input file: %w", err)
		}
		raw = b
	default:
		return nil, errors.New("one of --text or --file is required")
	}

	if mode == model.InputModeStructured {
		return &model.SubmitRequest{InputMode: mode, Data: json.RawMessage(raw)}, nil
	}
	data, err := json.Marshal(model.FreeTextData{Description: strings.TrimSpace(string(raw))})
	if err != nil {
		return nil, err
	}
	return &model.SubmitRequest{InputMode: mode, Data: data}, nil
}

func (a *app) validateCommand() *cobra.Command {
	var (
		in    inputFlags
		useDB bool
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the validation pipeline inline and print the audit report",
		Long: "Runs extraction, reference lookup and audit in-process without creating a job. " +
			"Reference data comes from the embedded dataset unless --use-db is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := in.request(cmd.InOrStdin())
			if err != nil {
				return err
			}

			var refs core.ReferenceReader
			if useDB {
				db, dbErr := connectDB(a.logger, &a.cfg)
				if dbErr != nil {
					return dbErr
				}
				defer closeQuietly(a.logger, "database", db)
				store, storeErr := bootstrap.NewReferenceStore(db, nil, a.cfg.Reference, a.logger)
				if storeErr != nil {
					return storeErr
				}
				refs = store.Reader
			} else {
				ds, loadErr := referencedata.LoadFile(a.cfg.Reference.SeedFile)
				if loadErr != nil {
					return loadErr
				}
				refs = referencedata.NewIndex(ds)
			}

			orch, err := bootstrap.BuildPipeline(bootstrap.PipelineOptions{
				Config:     a.cfg.Pipeline,
				References: refs,
				Logger:     a.logger,
			})
			if err != nil {
				return err
			}

			report, err := orch.Run(cmd.Context(), req.InputMode, req.Data)
			if err != nil {
				var stageErr *pipeline.StageError
				if errors.As(err, &stageErr) {
					return fmt.Errorf("%w (%s)", stageErr, stageErr.Kind)
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	in.register(cmd)
	cmd.Flags().BoolVar(&useDB, "use-db", false, "read reference data from Postgres instead of the embedded dataset")
	return cmd
}
