package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tensorplex-labs/novelty/internal/corpus"
)

const ingestBatchSize = 1000

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Load papers from a JSON lines file (or stdin) into the document store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := io.Reader(os.Stdin)
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		a, _, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := ingest(ctx, in, func(batch []corpus.Paper) error {
			return a.docs.PutPapers(ctx, batch)
		})
		if err != nil {
			return err
		}
		log.Info().Int("papers", n).Msg("ingest complete")
		return nil
	},
}

// ingest decodes one paper per line and hands them to put in batches.
func ingest(ctx context.Context, r io.Reader, put func([]corpus.Paper) error) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1<<20), 64<<20)

	var (
		batch = make([]corpus.Paper, 0, ingestBatchSize)
		total int
		line  int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := put(batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return total, err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var p corpus.Paper
		if err := sonic.Unmarshal(raw, &p); err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		if p.ID == "" {
			log.Warn().Int("line", line).Msg("skipping paper without id")
			continue
		}
		batch = append(batch, p)
		if len(batch) == ingestBatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, err
	}
	return total, flush()
}
