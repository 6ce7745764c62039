// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/purchaseloader/internal/generator"
)

func init() {
	var count int
	var dir string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a random purchase CSV for testing",
		Long: fmt.Sprintf(`Write a header-less purchase CSV with a random twelve letter name into
--dir. Without --count it holds between %d and %d rows, all dated within the
current hour. Use --dir - to write to stdout instead.`, generator.MinCount, generator.MaxCount),
		RunE: func(c *cobra.Command, _ []string) error {
			return runGenerate(c.OutOrStdout(), dir, count)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 0, "Number of purchases; random when 0")
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Output directory, or - for stdout")

	rootCmd.AddCommand(cmd)
}

func runGenerate(out io.Writer, dir string, count int) error {
	if count < 0 {
		return fmt.Errorf("count must not be negative: %d", count)
	}
	opts := generator.Options{Count: count}

	if dir == "-" {
		return generator.Write(out, generator.Generate(opts))
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	path, n, err := generator.WriteFile(dir, opts)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "wrote %d purchases to %s\n", n, path)
	return err
}
