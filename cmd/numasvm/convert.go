package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/hogwild"
	"github.com/hupe1980/hogwild/dataset"
)

func (a *app) newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [flags] <input file> <output file>",
		Short: "Rewrite a dataset in another record format",
		Long: `Rewrite a dataset, typically TSV into the compact binary record format.

The output is compressed according to --compress, or by its suffix
(.zst, .gz, .lz4) when --compress is not set.`,
		Args:          exactArgs(2),
		PreRunE:       a.bindFlags,
		RunE:          a.runConvert,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetFlagErrorFunc(usageError)

	f := cmd.Flags()
	f.String("from", "tsv", "input format (tsv, matlab-tsv, binary)")
	f.String("to", "binary", "output format (tsv, matlab-tsv, binary)")
	f.String("compress", "", "output compression (none, zstd, gzip, lz4)")
	return cmd
}

func (a *app) runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	from, err := dataset.ParseFormat(a.v.GetString("from"))
	if err != nil {
		return fmt.Errorf("%w: %w", hogwild.ErrUsage, err)
	}
	to, err := dataset.ParseFormat(a.v.GetString("to"))
	if err != nil {
		return fmt.Errorf("%w: %w", hogwild.ErrUsage, err)
	}
	compression := dataset.CompressionFromName(args[1])
	if c := a.v.GetString("compress"); c != "" {
		if compression, err = dataset.ParseCompression(c); err != nil {
			return fmt.Errorf("%w: %w", hogwild.ErrUsage, err)
		}
	}

	src, err := a.openSource(ctx, args[0], nil)
	if err != nil {
		return err
	}
	sc, err := dataset.Open(ctx, src, from)
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer sc.Close()

	out, err := os.Create(args[1])
	if err != nil {
		return err
	}
	n, err := convert(cmd, out, compression, to, sc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Join(fmt.Errorf("convert %s: %w", args[0], err), os.Remove(args[1]))
	}

	_, _ = fmt.Fprintf(a.stdout, "Converted %d records from %s (%s) to %s (%s, %s)\n",
		n, args[0], from, args[1], to, compression)
	return nil
}

func convert(cmd *cobra.Command, out *os.File, c dataset.Compression, to dataset.Format, sc dataset.Scanner) (int, error) {
	cw, err := dataset.NewCompressWriter(out, c)
	if err != nil {
		return 0, err
	}
	w, err := dataset.NewWriter(cw, to)
	if err != nil {
		return 0, errors.Join(err, cw.Close())
	}
	n, err := dataset.Copy(cmd.Context(), w, sc)
	if cerr := cw.Close(); err == nil {
		err = cerr
	}
	return n, err
}
